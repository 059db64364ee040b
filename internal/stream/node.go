package stream

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Node is the JSON description of one layer: its name, layer specific fields in
// insertion order, and either child nodes (containers) or a single wrapped
// module (decorators such as Residual).
type Node struct {
	Name     string
	Fields   []Field
	Children []Node
	Module   *Node
}

// Field is one named value of a Node.
type Field struct {
	Key   string
	Value any
}

// NewNode starts a node description.
func NewNode(name string) Node { return Node{Name: name} }

// With returns n with an extra field appended.
func (n Node) With(key string, value any) Node {
	n.Fields = append(append([]Field(nil), n.Fields...), Field{Key: key, Value: value})
	return n
}

// Field looks up a field by key.
func (n Node) Field(key string) (any, bool) {
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes {"name":..., fields..., "children"|"module":...} keeping
// field order stable.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	if err := writeValue(&buf, n.Name); err != nil {
		return nil, err
	}
	for _, f := range n.Fields {
		buf.WriteByte(',')
		if err := writeValue(&buf, f.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeValue(&buf, f.Value); err != nil {
			return nil, err
		}
	}
	if n.Children != nil {
		buf.WriteString(`,"children":`)
		if err := writeValue(&buf, n.Children); err != nil {
			return nil, err
		}
	}
	if n.Module != nil {
		buf.WriteString(`,"module":`)
		if err := writeValue(&buf, n.Module); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Boundary is implemented by containers whose first and last layers carry
// different descriptors.
type Boundary interface {
	BoundaryInfo() (in, out Info)
}

// DescribePipeline returns the description of a whole pipeline: the root
// module's node with the descriptors of its first and last layers attached as
// inInfo and outInfo.
func DescribePipeline(m Module) Node {
	in, out := m.Info(), m.Info()
	if b, ok := m.(Boundary); ok {
		in, out = b.BoundaryInfo()
	}
	return m.Describe().With("inInfo", in).With("outInfo", out)
}

// MarshalDescription renders DescribePipeline as indented JSON.
func MarshalDescription(m Module) ([]byte, error) {
	return json.MarshalIndent(DescribePipeline(m), "", "  ")
}
