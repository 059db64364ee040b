package stream

import "fmt"

// DataType tags the element type of a parameter or of an elementwise operation.
type DataType int

const (
	Uninitialized DataType = iota
	Float32
	Float16
	Int8
	Int16
	Int32
)

var dataTypeNames = [...]string{
	Uninitialized: "uninitialized",
	Float32:       "float32",
	Float16:       "float16",
	Int8:          "int8",
	Int16:         "int16",
	Int32:         "int32",
}

func (d DataType) String() string {
	if d < 0 || int(d) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(d))
	}
	return dataTypeNames[d]
}

// Size returns the byte width of one element, or 0 for Uninitialized.
func (d DataType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float16, Int16:
		return 2
	case Int8:
		return 1
	default:
		return 0
	}
}

// ParseDataType maps a name produced by String back to its DataType.
func ParseDataType(s string) (DataType, error) {
	for i, name := range dataTypeNames {
		if name == s {
			return DataType(i), nil
		}
	}
	return Uninitialized, fmt.Errorf("%w: unknown data type %q", ErrInvalidArgument, s)
}

func (d DataType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DataType) UnmarshalText(text []byte) error {
	v, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
