package graph

import (
	"fmt"
	"strings"
)

// Type describes one tensor edge: element kind, dimensions and, for
// quantized kinds, scale/offset. Types are immutable once attached to a
// node; rewrites attach fresh types instead of mutating.
type Type struct {
	Elem   ElemKind
	Dims   []int
	Scale  float64
	Offset int32
}

// NewType returns an unquantized type.
func NewType(elem ElemKind, dims ...int) *Type {
	return &Type{Elem: elem, Dims: dims}
}

// NewQuantizedType returns a type carrying quantization parameters.
func NewQuantizedType(elem ElemKind, scale float64, offset int32, dims ...int) *Type {
	return &Type{Elem: elem, Dims: dims, Scale: scale, Offset: offset}
}

// WithDims returns a copy of t with different dimensions but the same
// element kind and quantization parameters.
func (t *Type) WithDims(dims ...int) *Type {
	return &Type{Elem: t.Elem, Dims: dims, Scale: t.Scale, Offset: t.Offset}
}

// NumElements returns the total element count.
func (t *Type) NumElements() int {
	n := 1
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Rank returns the number of dimensions.
func (t *Type) Rank() int { return len(t.Dims) }

// IsQuantized reports whether the element kind is quantized.
func (t *Type) IsQuantized() bool { return t.Elem.IsQuantized() }

// Equal reports structural equality of two types, including quantization
// parameters.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Elem != o.Elem || len(t.Dims) != len(o.Dims) {
		return false
	}
	for i := range t.Dims {
		if t.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return t.Scale == o.Scale && t.Offset == o.Offset
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(t.Elem.String())
	b.WriteByte('[')
	for i, d := range t.Dims {
		if i > 0 {
			b.WriteByte('x')
		}
		fmt.Fprintf(&b, "%d", d)
	}
	b.WriteByte(']')
	if t.IsQuantized() && (t.Scale != 0 || t.Offset != 0) {
		fmt.Fprintf(&b, "{s=%g,o=%d}", t.Scale, t.Offset)
	}
	return b.String()
}
