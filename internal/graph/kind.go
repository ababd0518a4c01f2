package graph

// Kind is the closed enumeration of operation kinds. Legalization, lowering
// and parallelization-eligibility are total functions over this enumeration
// with an explicit default arm.
type Kind int

const (
	KindAdd Kind = iota
	KindSub
	KindMul
	KindDiv
	KindMax
	KindMin
	KindPow
	KindRelu
	KindPRelu
	KindClip
	KindSigmoid
	KindTanh
	KindLog
	KindExp
	KindLogit
	KindReplaceNaN
	KindSplat
	KindMatMul
	KindBatchMatMul
	KindFullyConnected
	KindConvolution
	KindBatchedAdd
	KindBatchedReduceAdd
	KindBatchedReduceMean
	KindBatchedReduceMin
	KindLocalResponseNormalization
	KindLayerNormalization
	KindBatchNormalization
	KindAvgPool
	KindAdaptiveAvgPool
	KindMaxPool
	KindQuantize
	KindDequantize
	KindRescaleQuantized
	KindConvertTo
	KindConcat
	KindSlice
	KindReshape
	KindTranspose
	KindTile
	KindSave
	KindSelect
	KindCmpEQ
	KindCmpLT
	KindCmpLTE
	KindSoftMax
	KindTopK
	KindArgMax
	KindGather
	KindSparseLengthsSum
	KindSparseLengthsWeightedSum
	KindEmbeddingBag
	KindEmbeddingBagByteRowwiseOffsets
	KindFusedRowwiseQuantizedSparseLengthsSum
	KindFusedRowwiseQuantizedSparseLengthsWeightedSum
	KindRowwiseQuantizedSparseLengthsWeightedSum
	KindBatchOneHot
	KindSpaceToDepth
	KindLengthsRangeFill
	KindCustom

	// Kinds below exist in the IR but have no backend execution rule; the
	// legalization checker rejects them and the compiler driver falls back.
	KindFlip
	KindCumSum
	KindGatherRanges

	numKinds // keep last
)

var kindNames = [...]string{
	KindAdd:                        "Add",
	KindSub:                        "Sub",
	KindMul:                        "Mul",
	KindDiv:                        "Div",
	KindMax:                        "Max",
	KindMin:                        "Min",
	KindPow:                        "Pow",
	KindRelu:                       "Relu",
	KindPRelu:                      "PRelu",
	KindClip:                       "Clip",
	KindSigmoid:                    "Sigmoid",
	KindTanh:                       "Tanh",
	KindLog:                        "Log",
	KindExp:                        "Exp",
	KindLogit:                      "Logit",
	KindReplaceNaN:                 "ReplaceNaN",
	KindSplat:                      "Splat",
	KindMatMul:                     "MatMul",
	KindBatchMatMul:                "BatchMatMul",
	KindFullyConnected:             "FullyConnected",
	KindConvolution:                "Convolution",
	KindBatchedAdd:                 "BatchedAdd",
	KindBatchedReduceAdd:           "BatchedReduceAdd",
	KindBatchedReduceMean:          "BatchedReduceMean",
	KindBatchedReduceMin:           "BatchedReduceMin",
	KindLocalResponseNormalization: "LocalResponseNormalization",
	KindLayerNormalization:         "LayerNormalization",
	KindBatchNormalization:         "BatchNormalization",
	KindAvgPool:                    "AvgPool",
	KindAdaptiveAvgPool:            "AdaptiveAvgPool",
	KindMaxPool:                    "MaxPool",
	KindQuantize:                   "Quantize",
	KindDequantize:                 "Dequantize",
	KindRescaleQuantized:           "RescaleQuantized",
	KindConvertTo:                  "ConvertTo",
	KindConcat:                     "Concat",
	KindSlice:                      "Slice",
	KindReshape:                    "Reshape",
	KindTranspose:                  "Transpose",
	KindTile:                       "Tile",
	KindSave:                       "Save",
	KindSelect:                     "Select",
	KindCmpEQ:                      "CmpEQ",
	KindCmpLT:                      "CmpLT",
	KindCmpLTE:                     "CmpLTE",
	KindSoftMax:                    "SoftMax",
	KindTopK:                       "TopK",
	KindArgMax:                     "ArgMax",
	KindGather:                     "Gather",
	KindSparseLengthsSum:           "SparseLengthsSum",
	KindSparseLengthsWeightedSum:   "SparseLengthsWeightedSum",
	KindEmbeddingBag:               "EmbeddingBag",
	KindEmbeddingBagByteRowwiseOffsets:                "EmbeddingBagByteRowwiseOffsets",
	KindFusedRowwiseQuantizedSparseLengthsSum:         "FusedRowwiseQuantizedSparseLengthsSum",
	KindFusedRowwiseQuantizedSparseLengthsWeightedSum: "FusedRowwiseQuantizedSparseLengthsWeightedSum",
	KindRowwiseQuantizedSparseLengthsWeightedSum:      "RowwiseQuantizedSparseLengthsWeightedSum",
	KindBatchOneHot:      "BatchOneHot",
	KindSpaceToDepth:     "SpaceToDepth",
	KindLengthsRangeFill: "LengthsRangeFill",
	KindCustom:           "Custom",
	KindFlip:             "Flip",
	KindCumSum:           "CumSum",
	KindGatherRanges:     "GatherRanges",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// KindByName resolves an operation kind from its canonical name. It is the
// inverse of Kind.String and is used at serialization boundaries.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Operand index constants. These mirror each kind's fixed operand layout and
// are the names the constraint tables use to exempt individual operands.
const (
	// Unary/elementwise ops and activations: single input, single result.
	UnaryInputIdx  = 0
	UnaryResultIdx = 0

	FullyConnectedInputIdx   = 0
	FullyConnectedWeightsIdx = 1
	FullyConnectedBiasIdx    = 2

	ConvolutionInputIdx  = 0
	ConvolutionFilterIdx = 1
	ConvolutionBiasIdx   = 2

	MaxPoolInputIdx   = 0
	MaxPoolResultIdx  = 0
	MaxPoolArgmaxIdx  = 1
	TopKInputIdx      = 0
	TopKValuesIdx     = 0
	TopKIndicesIdx    = 1
	ArgMaxResultIdx   = 0
	SoftMaxInputIdx   = 0
	SoftMaxSelectedIdx = 1

	GatherDataIdx    = 0
	GatherIndicesIdx = 1

	SelectCondIdx = 0
	SelectLHSIdx  = 1
	SelectRHSIdx  = 2

	CmpResultIdx = 0

	QuantizeInputIdx    = 0
	QuantizeResultIdx   = 0
	DequantizeInputIdx  = 0
	DequantizeResultIdx = 0
	ConvertToInputIdx   = 0
	ConvertToResultIdx  = 0

	SparseLengthsSumDataIdx    = 0
	SparseLengthsSumIndicesIdx = 1
	SparseLengthsSumLengthsIdx = 2

	SparseLengthsWeightedSumDataIdx    = 0
	SparseLengthsWeightedSumWeightsIdx = 1
	SparseLengthsWeightedSumIndicesIdx = 2
	SparseLengthsWeightedSumLengthsIdx = 3

	EmbeddingBagDataIdx    = 0
	EmbeddingBagWeightsIdx = 1
	EmbeddingBagIndicesIdx = 2
	EmbeddingBagOffsetsIdx = 3

	EmbeddingBagByteRowwiseOffsetsDataIdx    = 0
	EmbeddingBagByteRowwiseOffsetsWeightsIdx = 1
	EmbeddingBagByteRowwiseOffsetsIndicesIdx = 2
	EmbeddingBagByteRowwiseOffsetsOffsetsIdx = 3

	FusedRowwiseQuantizedSparseLengthsSumDataIdx    = 0
	FusedRowwiseQuantizedSparseLengthsSumIndicesIdx = 1
	FusedRowwiseQuantizedSparseLengthsSumLengthsIdx = 2

	FusedRowwiseQuantizedSparseLengthsWeightedSumDataIdx    = 0
	FusedRowwiseQuantizedSparseLengthsWeightedSumWeightsIdx = 1
	FusedRowwiseQuantizedSparseLengthsWeightedSumIndicesIdx = 2
	FusedRowwiseQuantizedSparseLengthsWeightedSumLengthsIdx = 3

	RowwiseQuantizedSparseLengthsWeightedSumDataIdx    = 0
	RowwiseQuantizedSparseLengthsWeightedSumWeightsIdx = 1
	RowwiseQuantizedSparseLengthsWeightedSumIndicesIdx = 2
	RowwiseQuantizedSparseLengthsWeightedSumLengthsIdx = 3

	BatchOneHotLengthsIdx = 2

	BatchMatMulLHSIdx = 0
	BatchMatMulRHSIdx = 1

	ConcatResultIdx = 0
	SliceInputIdx   = 0
)

// isActivation reports whether the kind is a single-input activation whose
// input and result share operand index 0.
func (k Kind) isActivation() bool {
	switch k {
	case KindRelu, KindSigmoid, KindTanh:
		return true
	}
	return false
}
