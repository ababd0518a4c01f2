// Package estimate builds device tensor descriptors and queries the
// adapter's cost model for sparse-lengths embedding operations.
package estimate

import (
	"github.com/pkg/errors"

	"nacc/internal/graph"
	"nacc/internal/legalize"
)

// Precision is the device-side storage precision of a tensor.
type Precision int

const (
	PrecisionFloat32 Precision = iota
	PrecisionFloat16
	PrecisionInt8
	PrecisionUInt8
	PrecisionInt32
	PrecisionBoolean
)

// QuantScheme is the device-side quantization scheme of a tensor.
type QuantScheme int

const (
	QuantNone QuantScheme = iota
	QuantGemmLowp
	QuantGemmLowpPCQFused
	QuantGemmLowpPCQFusedFP16
	QuantGemmLowpPCQ4BitFused
)

// TensorDesc carries the shape and quantization facts the cost model needs.
// Scale and offset values are irrelevant for estimation and not carried.
type TensorDesc struct {
	Dims      []int
	Precision Precision
	Scheme    QuantScheme
}

// descForType maps a graph type onto a device descriptor. Every element
// kind must have an explicit row here; an unknown kind is a hard error,
// never a silent default.
func descForType(t *graph.Type) (TensorDesc, error) {
	d := TensorDesc{Dims: append([]int(nil), t.Dims...)}
	switch t.Elem {
	case graph.Float32:
		d.Precision, d.Scheme = PrecisionFloat32, QuantNone
	case graph.Float16:
		d.Precision, d.Scheme = PrecisionFloat16, QuantNone
	case graph.Int8Q:
		d.Precision, d.Scheme = PrecisionInt8, QuantGemmLowp
	case graph.UInt8Q:
		d.Precision, d.Scheme = PrecisionUInt8, QuantGemmLowp
	case graph.Int32, graph.Int64:
		// 64-bit indices narrow to 32 bits at device compile time.
		d.Precision, d.Scheme = PrecisionInt32, QuantNone
	case graph.Int32Q:
		d.Precision, d.Scheme = PrecisionInt32, QuantGemmLowp
	case graph.UInt8FusedQ:
		d.Precision, d.Scheme = PrecisionUInt8, QuantGemmLowpPCQFused
	case graph.UInt8FusedFP16Q:
		d.Precision, d.Scheme = PrecisionUInt8, QuantGemmLowpPCQFusedFP16
	case graph.UInt4FusedFP16Q:
		d.Precision, d.Scheme = PrecisionUInt8, QuantGemmLowpPCQ4BitFused
	case graph.Bool:
		d.Precision, d.Scheme = PrecisionBoolean, QuantNone
	default:
		return TensorDesc{}, errors.Errorf("no descriptor mapping for element kind %s", t.Elem)
	}
	return d, nil
}

// LengthsMode describes what the caller knows about the lengths operand.
type LengthsMode int

const (
	// LengthsVariable makes no assumption about segment lengths.
	LengthsVariable LengthsMode = iota
	// LengthsAllOne asserts every segment has exactly one element.
	LengthsAllOne
)

// Params carries the estimation knobs alongside the node.
type Params struct {
	FP32Accumulation bool
	LengthsMode      LengthsMode
	AverageLength    float64
}

// Query is the fully resolved estimation request handed to the cost model.
type Query struct {
	Input   TensorDesc
	Output  TensorDesc
	Weights *TensorDesc // nil for unweighted variants
	Indices TensorDesc
	Lengths TensorDesc

	FP32Accumulation  bool
	UseLengthAsOffset bool
	AverageLength     float64
	LengthsMode       LengthsMode
}

// CostModel is the adapter service answering estimation queries. A negative
// result means the model declined to estimate.
type CostModel interface {
	EstimateSparseLengthsOp(q Query) (float64, error)
}

// embeddingSlots names the operand indices feeding the five descriptor
// slots for one sparse-lengths node kind.
type embeddingSlots struct {
	weights int // -1 when the variant is unweighted
	indices int
	lengths int
	offsets bool // lengths operand is an offsets vector
}

var embeddingKinds = map[graph.Kind]embeddingSlots{
	graph.KindSparseLengthsSum: {
		weights: -1,
		indices: graph.SparseLengthsSumIndicesIdx,
		lengths: graph.SparseLengthsSumLengthsIdx,
	},
	graph.KindSparseLengthsWeightedSum: {
		weights: graph.SparseLengthsWeightedSumWeightsIdx,
		indices: graph.SparseLengthsWeightedSumIndicesIdx,
		lengths: graph.SparseLengthsWeightedSumLengthsIdx,
	},
	graph.KindRowwiseQuantizedSparseLengthsWeightedSum: {
		weights: graph.RowwiseQuantizedSparseLengthsWeightedSumWeightsIdx,
		indices: graph.RowwiseQuantizedSparseLengthsWeightedSumIndicesIdx,
		lengths: graph.RowwiseQuantizedSparseLengthsWeightedSumLengthsIdx,
	},
	graph.KindFusedRowwiseQuantizedSparseLengthsSum: {
		weights: -1,
		indices: graph.FusedRowwiseQuantizedSparseLengthsSumIndicesIdx,
		lengths: graph.FusedRowwiseQuantizedSparseLengthsSumLengthsIdx,
	},
	graph.KindFusedRowwiseQuantizedSparseLengthsWeightedSum: {
		weights: graph.FusedRowwiseQuantizedSparseLengthsWeightedSumWeightsIdx,
		indices: graph.FusedRowwiseQuantizedSparseLengthsWeightedSumIndicesIdx,
		lengths: graph.FusedRowwiseQuantizedSparseLengthsWeightedSumLengthsIdx,
	},
	graph.KindEmbeddingBag: {
		weights: graph.EmbeddingBagWeightsIdx,
		indices: graph.EmbeddingBagIndicesIdx,
		lengths: graph.EmbeddingBagOffsetsIdx,
		offsets: true,
	},
	graph.KindEmbeddingBagByteRowwiseOffsets: {
		weights: graph.EmbeddingBagByteRowwiseOffsetsWeightsIdx,
		indices: graph.EmbeddingBagByteRowwiseOffsetsIndicesIdx,
		lengths: graph.EmbeddingBagByteRowwiseOffsetsOffsetsIdx,
		offsets: true,
	},
}

// EstimateEmbeddingOp prices one sparse-lengths embedding node with the
// adapter's cost model. Returns -1 without error when the node cannot be
// estimated at all: an operation the device rejects, or a kind outside the
// embedding family. Descriptor construction failures and cost-model
// failures are errors.
func EstimateEmbeddingOp(model CostModel, n *graph.Node, p Params) (float64, error) {
	if !legalize.IsSupported(n) {
		return -1, nil
	}
	slots, ok := embeddingKinds[n.Kind()]
	if !ok {
		return -1, nil
	}

	q := Query{
		FP32Accumulation:  p.FP32Accumulation,
		UseLengthAsOffset: slots.offsets,
		AverageLength:     p.AverageLength,
		LengthsMode:       p.LengthsMode,
	}
	var err error
	if q.Input, err = descForType(n.InputType(0)); err != nil {
		return 0, errors.Wrapf(err, "node %s input", n.Name())
	}
	if q.Output, err = descForType(n.ResultType(0)); err != nil {
		return 0, errors.Wrapf(err, "node %s output", n.Name())
	}
	if slots.weights >= 0 {
		w, err := descForType(n.InputType(slots.weights))
		if err != nil {
			return 0, errors.Wrapf(err, "node %s weights", n.Name())
		}
		q.Weights = &w
	}
	if q.Indices, err = descForType(n.InputType(slots.indices)); err != nil {
		return 0, errors.Wrapf(err, "node %s indices", n.Name())
	}
	if q.Lengths, err = descForType(n.InputType(slots.lengths)); err != nil {
		return 0, errors.Wrapf(err, "node %s lengths", n.Name())
	}

	cost, err := model.EstimateSparseLengthsOp(q)
	if err != nil {
		return 0, errors.Wrapf(err, "estimating %s", n.Name())
	}
	return cost, nil
}
