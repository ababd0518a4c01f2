package legalize

import (
	"github.com/sirupsen/logrus"

	"nacc/internal/graph"
)

// maxLookupIndices is the hardware index-width limit for sparse-lookup
// operations: the index tensor must address at most 64k rows.
const maxLookupIndices = 1 << 16

// lookupIndicesValid reports whether a sparse-lookup indices tensor is
// rank-1 and within the hardware index width.
func lookupIndicesValid(t *graph.Type) bool {
	return t.Rank() == 1 && t.Dims[0] < maxLookupIndices
}

// isUnaryLookup reports whether a lookup data tensor is 2-dimensional with a
// trailing dimension of 1. Usually the data input of a sparse-lengths sum is
// passed in here.
func isUnaryLookup(t *graph.Type) bool {
	if t.Rank() != 2 {
		return false
	}
	return t.Dims[1] == 1
}

// IsSupported reports whether the accelerator can execute the operation
// instance at all, based on its element kinds and shapes. Kinds with no rule
// are rejected, and the rejection is logged with a dump of the node.
func IsSupported(n *graph.Node) bool {
	switch n.Kind() {
	case graph.KindConvolution:
		if !n.InputType(graph.ConvolutionInputIdx).IsQuantized() {
			return sameElemKind(n, fpKinds, nil, nil)
		}
		biasKind := n.InputType(graph.ConvolutionBiasIdx).Elem
		return sameElemKind(n, []graph.ElemKind{graph.Int8Q}, []int{graph.ConvolutionBiasIdx}, nil) &&
			(biasKind == graph.Int32Q || biasKind == graph.Float32)

	case graph.KindFullyConnected:
		if !n.InputType(graph.FullyConnectedInputIdx).IsQuantized() {
			return sameElemKind(n, fpKinds, nil, nil)
		}
		biasKind := n.InputType(graph.FullyConnectedBiasIdx).Elem
		return sameElemKind(n, []graph.ElemKind{graph.Int8Q}, []int{graph.FullyConnectedBiasIdx}, nil) &&
			(biasKind == graph.Int32Q || biasKind == graph.Float32)

	case graph.KindQuantize:
		in := n.InputType(graph.QuantizeInputIdx).Elem
		return (in == graph.Float32 || in == graph.Float16) &&
			n.ResultType(graph.QuantizeResultIdx).Elem == graph.Int8Q

	case graph.KindDequantize:
		out := n.ResultType(graph.DequantizeResultIdx).Elem
		return n.InputType(graph.DequantizeInputIdx).Elem == graph.Int8Q &&
			(out == graph.Float32 || out == graph.Float16)

	case graph.KindConvertTo:
		return conversionSupported(n.InputType(graph.ConvertToInputIdx).Elem) &&
			conversionSupported(n.ResultType(graph.ConvertToResultIdx).Elem)

	case graph.KindMaxPool:
		return sameElemKind(n, computeKinds, nil, []int{graph.MaxPoolArgmaxIdx}) &&
			n.ResultType(graph.MaxPoolArgmaxIdx).Elem == graph.Int64

	case graph.KindTopK:
		return sameElemKind(n, computeKinds, nil, []int{graph.TopKIndicesIdx}) &&
			n.ResultType(graph.TopKIndicesIdx).Elem == graph.Int64

	case graph.KindArgMax:
		return n.ResultType(graph.ArgMaxResultIdx).Elem == graph.Int64

	case graph.KindGather:
		idxKind := n.InputType(graph.GatherIndicesIdx).Elem
		return sameElemKind(n,
			[]graph.ElemKind{graph.Float32, graph.Float16, graph.Int64, graph.Int8Q},
			[]int{graph.GatherIndicesIdx}, nil) &&
			(idxKind == graph.Int32 || idxKind == graph.Int64)

	case graph.KindCmpEQ, graph.KindCmpLT, graph.KindCmpLTE:
		return sameElemKind(n, mathKinds, nil, []int{graph.CmpResultIdx}) &&
			n.ResultType(graph.CmpResultIdx).Elem == graph.Bool

	case graph.KindSelect:
		return sameElemKind(n, computeKinds, []int{graph.SelectCondIdx}, nil) &&
			n.InputType(graph.SelectCondIdx).Elem == graph.Bool

	case graph.KindSoftMax:
		return sameElemKind(n, computeKinds, []int{graph.SoftMaxSelectedIdx}, nil) &&
			n.InputType(graph.SoftMaxSelectedIdx).Elem == graph.Int64

	case graph.KindBatchOneHot:
		return sameElemKind(n, mathKinds, []int{graph.BatchOneHotLengthsIdx}, nil) &&
			n.InputType(graph.BatchOneHotLengthsIdx).Elem == graph.Int32

	case graph.KindSparseLengthsSum:
		idxKind := n.InputType(graph.SparseLengthsSumIndicesIdx).Elem
		return lookupIndicesValid(n.InputType(graph.SparseLengthsSumIndicesIdx)) &&
			sameElemKind(n, computeKinds,
				[]int{graph.SparseLengthsSumIndicesIdx, graph.SparseLengthsSumLengthsIdx}, nil) &&
			(idxKind == graph.Int64 || idxKind == graph.Int32) &&
			n.InputType(graph.SparseLengthsSumLengthsIdx).Elem == graph.Int32

	case graph.KindSparseLengthsWeightedSum:
		idxKind := n.InputType(graph.SparseLengthsWeightedSumIndicesIdx).Elem
		return lookupIndicesValid(n.InputType(graph.SparseLengthsWeightedSumIndicesIdx)) &&
			sameElemKind(n, computeKinds,
				[]int{graph.SparseLengthsWeightedSumIndicesIdx, graph.SparseLengthsWeightedSumLengthsIdx}, nil) &&
			(idxKind == graph.Int64 || idxKind == graph.Int32) &&
			n.InputType(graph.SparseLengthsWeightedSumLengthsIdx).Elem == graph.Int32

	case graph.KindEmbeddingBag:
		return lookupIndicesValid(n.InputType(graph.EmbeddingBagIndicesIdx)) &&
			sameElemKind(n, computeKinds,
				[]int{graph.EmbeddingBagIndicesIdx, graph.EmbeddingBagOffsetsIdx}, nil) &&
			n.InputType(graph.EmbeddingBagIndicesIdx).Elem == graph.Int64 &&
			n.InputType(graph.EmbeddingBagOffsetsIdx).Elem == graph.Int64

	case graph.KindEmbeddingBagByteRowwiseOffsets:
		dataKind := n.InputType(graph.EmbeddingBagByteRowwiseOffsetsDataIdx).Elem
		resultKind := n.ResultType(0).Elem
		return lookupIndicesValid(n.InputType(graph.EmbeddingBagByteRowwiseOffsetsIndicesIdx)) &&
			containsKind(fusedKinds, dataKind) &&
			(resultKind == graph.Float32 || resultKind == graph.Float16) &&
			n.InputType(graph.EmbeddingBagByteRowwiseOffsetsIndicesIdx).Elem == graph.Int64 &&
			n.InputType(graph.EmbeddingBagByteRowwiseOffsetsOffsetsIdx).Elem == graph.Int64

	case graph.KindFusedRowwiseQuantizedSparseLengthsSum:
		dataKind := n.InputType(graph.FusedRowwiseQuantizedSparseLengthsSumDataIdx).Elem
		idxKind := n.InputType(graph.FusedRowwiseQuantizedSparseLengthsSumIndicesIdx).Elem
		resultKind := n.ResultType(0).Elem
		return lookupIndicesValid(n.InputType(graph.FusedRowwiseQuantizedSparseLengthsSumIndicesIdx)) &&
			containsKind(fusedKinds, dataKind) &&
			(resultKind == graph.Float32 || resultKind == graph.Float16) &&
			(idxKind == graph.Int64 || idxKind == graph.Int32) &&
			n.InputType(graph.FusedRowwiseQuantizedSparseLengthsSumLengthsIdx).Elem == graph.Int32

	case graph.KindFusedRowwiseQuantizedSparseLengthsWeightedSum:
		dataKind := n.InputType(graph.FusedRowwiseQuantizedSparseLengthsWeightedSumDataIdx).Elem
		weightsKind := n.InputType(graph.FusedRowwiseQuantizedSparseLengthsWeightedSumWeightsIdx).Elem
		idxKind := n.InputType(graph.FusedRowwiseQuantizedSparseLengthsWeightedSumIndicesIdx).Elem
		resultKind := n.ResultType(0).Elem
		return lookupIndicesValid(n.InputType(graph.FusedRowwiseQuantizedSparseLengthsWeightedSumIndicesIdx)) &&
			containsKind(fusedKinds, dataKind) &&
			(weightsKind == graph.Float32 || weightsKind == graph.Float16) &&
			(resultKind == graph.Float32 || resultKind == graph.Float16) &&
			(idxKind == graph.Int64 || idxKind == graph.Int32) &&
			n.InputType(graph.FusedRowwiseQuantizedSparseLengthsWeightedSumLengthsIdx).Elem == graph.Int32

	case graph.KindRowwiseQuantizedSparseLengthsWeightedSum:
		idxKind := n.InputType(graph.RowwiseQuantizedSparseLengthsWeightedSumIndicesIdx).Elem
		return lookupIndicesValid(n.InputType(graph.RowwiseQuantizedSparseLengthsWeightedSumIndicesIdx)) &&
			sameElemKind(n, fpKinds,
				[]int{
					graph.RowwiseQuantizedSparseLengthsWeightedSumDataIdx,
					graph.RowwiseQuantizedSparseLengthsWeightedSumIndicesIdx,
					graph.RowwiseQuantizedSparseLengthsWeightedSumLengthsIdx,
				}, nil) &&
			n.InputType(graph.RowwiseQuantizedSparseLengthsWeightedSumDataIdx).Elem == graph.UInt8Q &&
			(idxKind == graph.Int64 || idxKind == graph.Int32) &&
			n.InputType(graph.RowwiseQuantizedSparseLengthsWeightedSumLengthsIdx).Elem == graph.Int32

	case graph.KindCustom:
		// Custom kernels carry their own contract.
		return true

	default:
		if c, ok := uniformConstraints[n.Kind()]; ok {
			return sameElemKind(n, c.sameKinds, c.inExempt, c.outExempt)
		}
		logrus.Debugf("unsupported operation: %s", n)
		return false
	}
}

func conversionSupported(k graph.ElemKind) bool {
	switch k {
	case graph.Float32, graph.Float16, graph.Int32, graph.Int64:
		return true
	}
	return false
}

func containsKind(s []graph.ElemKind, k graph.ElemKind) bool {
	for _, e := range s {
		if e == k {
			return true
		}
	}
	return false
}

// AcceptForExecution applies the execution filter on top of IsSupported:
// sparse-lengths lookups over unary data (trailing dimension 1) are refused
// for performance unless acceptUnaryLookup overrides.
func AcceptForExecution(n *graph.Node, acceptUnaryLookup bool) bool {
	if !IsSupported(n) {
		return false
	}

	switch n.Kind() {
	case graph.KindSparseLengthsSum:
		return acceptUnaryLookup || !isUnaryLookup(n.InputType(graph.SparseLengthsSumDataIdx))
	case graph.KindSparseLengthsWeightedSum:
		return acceptUnaryLookup || !isUnaryLookup(n.InputType(graph.SparseLengthsWeightedSumDataIdx))
	default:
		return true
	}
}
