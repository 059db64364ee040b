package tensor

import (
	"fmt"
	"strings"

	"golang.org/x/sys/cpu"
)

// Op says how the source data handed to PackF16 is laid out.
type Op int

const (
	// NoTranspose: data is the k x n matrix in row-major order.
	NoTranspose Op = iota
	// Transpose: data is the n x k matrix in row-major order (B^T).
	Transpose
)

func (o Op) String() string {
	if o == Transpose {
		return "Transpose"
	}
	return "NoTranspose"
}

const maxBlockColumns = 16

var defaultBlockColumns = selectBlockColumns()

// selectBlockColumns picks the column block width from the vector width the
// host offers, so one block row fills the widest register available.
func selectBlockColumns() int {
	switch {
	case cpu.X86.HasAVX512F:
		return 16
	case cpu.X86.HasAVX2, cpu.ARM64.HasASIMD:
		return 8
	default:
		return 4
	}
}

// PackedF16 is a k x n matrix stored as binary16 in column blocks of width
// Block. Within a block the k rows are contiguous, each holding Block
// entries; the last block is zero padded. Callers must not assume the layout
// and go through Addr instead.
type PackedF16 struct {
	k, n  int
	block int
	alpha float32
	data  []uint16
}

var (
	errBadShape     = fmtError("packed matrix: non-positive dimension")
	errDataMismatch = fmtError("packed matrix: data length does not match k*n")
	errBlockColumns = fmtError("packed matrix: block width out of range")
)

// PackF16 packs alpha*B into half precision. data holds k*n floats laid out
// as described by op.
func PackF16(op Op, k, n int, alpha float32, data []float32) (*PackedF16, error) {
	return PackF16Block(op, k, n, alpha, data, defaultBlockColumns)
}

// PackF16Block is PackF16 with an explicit column block width in [1, 16].
func PackF16Block(op Op, k, n int, alpha float32, data []float32, block int) (*PackedF16, error) {
	if k <= 0 || n <= 0 {
		return nil, errBadShape
	}
	if len(data) != k*n {
		return nil, fmt.Errorf("%w: got %d want %d", errDataMismatch, len(data), k*n)
	}
	if block < 1 || block > maxBlockColumns {
		return nil, errBlockColumns
	}
	p := &PackedF16{
		k:     k,
		n:     n,
		block: block,
		alpha: alpha,
		data:  make([]uint16, numBlocks(n, block)*k*block),
	}
	for i := 0; i < k; i++ {
		for j := 0; j < n; j++ {
			var v float32
			if op == Transpose {
				v = data[j*k+i]
			} else {
				v = data[i*n+j]
			}
			p.data[p.Addr(i, j)] = EncodeF16(alpha * v)
		}
	}
	return p, nil
}

func numBlocks(n, block int) int {
	return (n + block - 1) / block
}

// Rows returns k.
func (p *PackedF16) Rows() int { return p.k }

// Cols returns n.
func (p *PackedF16) Cols() int { return p.n }

// Block returns the column block width.
func (p *PackedF16) Block() int { return p.block }

// Alpha returns the scale folded into the packed values.
func (p *PackedF16) Alpha() float32 { return p.alpha }

// Addr maps logical (i, j) to an offset into Raw.
func (p *PackedF16) Addr(i, j int) int {
	return (j/p.block)*p.k*p.block + i*p.block + j%p.block
}

// Raw exposes the packed storage for read-only inspection.
func (p *PackedF16) Raw() []uint16 { return p.data }

// At decodes the (i, j) entry.
func (p *PackedF16) At(i, j int) float32 {
	return DecodeF16(p.data[p.Addr(i, j)])
}

// Unpack decodes the matrix into a k x n row-major float32 slice.
func (p *PackedF16) Unpack() []float32 {
	out := make([]float32, p.k*p.n)
	for i := 0; i < p.k; i++ {
		for j := 0; j < p.n; j++ {
			out[i*p.n+j] = p.At(i, j)
		}
	}
	return out
}

func (p *PackedF16) String() string {
	return p.Describe(false)
}

// Describe returns a debug string, optionally followed by the decoded values.
func (p *PackedF16) Describe(withContent bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PackedF16{k=%d n=%d block=%d alpha=%g", p.k, p.n, p.block, p.alpha)
	if withContent {
		sb.WriteString(" data=[")
		for i := 0; i < p.k; i++ {
			if i > 0 {
				sb.WriteString("; ")
			}
			for j := 0; j < p.n; j++ {
				if j > 0 {
					sb.WriteByte(' ')
				}
				fmt.Fprintf(&sb, "%g", p.At(i, j))
			}
		}
		sb.WriteByte(']')
	}
	sb.WriteByte('}')
	return sb.String()
}

type fmtError string

func (e fmtError) Error() string { return string(e) }
