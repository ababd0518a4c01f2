package graph

// ElemKind is the element type of a tensor edge.
//
// The set is closed: the constraint tables in internal/legalize and the
// descriptor table in internal/estimate enumerate every member, and adding a
// kind here without extending those tables is a bug the tables surface as
// fail-closed rejection (legalize) or a hard error (estimate).
type ElemKind int

const (
	// Float32 is standard single precision floating point.
	Float32 ElemKind = iota
	// Float16 is half precision floating point.
	Float16
	// Int8Q is 8-bit signed quantized (scale/offset carried on the Type).
	Int8Q
	// UInt8Q is 8-bit unsigned quantized.
	UInt8Q
	// Int32Q is 32-bit signed quantized, used for quantized bias operands.
	Int32Q
	// Int32 is a 32-bit signed index/integer type.
	Int32
	// Int64 is a 64-bit signed index/integer type.
	Int64
	// UInt8FusedQ is rowwise quantized uint8 with fused fp32 scale/offset.
	UInt8FusedQ
	// UInt8FusedFP16Q is rowwise quantized uint8 with fused fp16 scale/offset.
	UInt8FusedFP16Q
	// UInt4FusedFP16Q is rowwise quantized uint4 with fused fp16 scale/offset.
	UInt4FusedFP16Q
	// Bool is a boolean predicate type.
	Bool
)

var elemKindNames = [...]string{
	Float32:         "float32",
	Float16:         "float16",
	Int8Q:           "i8q",
	UInt8Q:          "u8q",
	Int32Q:          "i32q",
	Int32:           "i32",
	Int64:           "i64",
	UInt8FusedQ:     "u8fq",
	UInt8FusedFP16Q: "u8ffp16q",
	UInt4FusedFP16Q: "u4ffp16q",
	Bool:            "bool",
}

func (k ElemKind) String() string {
	if int(k) < 0 || int(k) >= len(elemKindNames) {
		return "invalid"
	}
	return elemKindNames[k]
}

// ElemKindByName maps a serialized element-kind name back to its kind.
func ElemKindByName(name string) (ElemKind, bool) {
	for k, s := range elemKindNames {
		if s == name {
			return ElemKind(k), true
		}
	}
	return 0, false
}

// IsQuantized reports whether the kind carries quantization parameters.
func (k ElemKind) IsQuantized() bool {
	switch k {
	case Int8Q, UInt8Q, Int32Q, UInt8FusedQ, UInt8FusedFP16Q, UInt4FusedFP16Q:
		return true
	}
	return false
}

// IsFloat reports whether the kind is a floating point variant.
func (k ElemKind) IsFloat() bool {
	return k == Float32 || k == Float16
}
