package lower

import (
	"nacc/internal/graph"
)

// Policy decides, per node instance, whether the node must be decomposed
// before execution.
//
// DeviceLowering mirrors the backend execution mode: sparse-lengths-sum has
// no native implementation in device mode yet and must be lowered there,
// while the reference path keeps it whole. The flag is an explicit input
// here rather than ambient backend state.
type Policy struct {
	DeviceLowering bool
}

// ShouldLower reports whether n must be rewritten into simpler primitives.
// Kinds without an explicit rule are lowered.
func (p Policy) ShouldLower(n *graph.Node) bool {
	switch n.Kind() {
	case graph.KindClip:
		// Keep clips only in the precisions the hardware clamps natively.
		k := n.ResultType(0).Elem
		return k != graph.Float16 && k != graph.Int8Q

	case graph.KindConvolution:
		return convolutionIsFullyConnected(n)

	case graph.KindSparseLengthsSum:
		return p.DeviceLowering

	case graph.KindLogit:
		// The native kernel is fp16 only; fp32 logit goes through lowering.
		return n.InputType(0).Elem == graph.Float32 && n.ResultType(0).Elem == graph.Float32

	case graph.KindFullyConnected,
		graph.KindConcat,
		graph.KindSigmoid,
		graph.KindTanh,
		graph.KindRelu,
		graph.KindTile,
		graph.KindLog,
		graph.KindReplaceNaN,
		graph.KindLocalResponseNormalization,
		graph.KindBatchedReduceMean,
		graph.KindBatchedReduceMin,
		graph.KindBatchMatMul,
		graph.KindBatchNormalization,
		graph.KindAdaptiveAvgPool,
		graph.KindEmbeddingBag,
		graph.KindEmbeddingBagByteRowwiseOffsets,
		graph.KindLayerNormalization,
		graph.KindFusedRowwiseQuantizedSparseLengthsSum,
		graph.KindPRelu:
		return false

	default:
		return true
	}
}

// convolutionIsFullyConnected reports whether the convolution degenerates
// to a matrix multiply: the filter spans the whole spatial extent of the
// input and the result has collapsed to 1x1 spatially. Such convolutions
// are lowered so the fully-connected path handles them.
func convolutionIsFullyConnected(n *graph.Node) bool {
	in := n.InputType(graph.ConvolutionInputIdx)
	filter := n.InputType(graph.ConvolutionFilterIdx)
	out := n.ResultType(0)
	if in.Rank() != 4 || filter.Rank() != 4 || out.Rank() != 4 {
		return false
	}
	return filter.Dims[1] == in.Dims[1] &&
		filter.Dims[2] == in.Dims[2] &&
		out.Dims[1] == 1 && out.Dims[2] == 1
}
