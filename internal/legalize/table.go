package legalize

import (
	"nacc/internal/graph"
)

// constraint is one row of the type-constraint table: the admissible element
// kinds shared by all inputs and outputs, minus the exempt operand/result
// indices (which are checked separately by the caller, if at all).
type constraint struct {
	sameKinds []graph.ElemKind
	inExempt  []int
	outExempt []int
}

var (
	fpKinds      = []graph.ElemKind{graph.Float32, graph.Float16}
	mathKinds    = []graph.ElemKind{graph.Float32, graph.Float16, graph.Int8Q, graph.Int32, graph.Int64}
	computeKinds = []graph.ElemKind{graph.Float32, graph.Float16, graph.Int8Q}
	moveKinds    = []graph.ElemKind{graph.Float32, graph.Float16, graph.Int8Q, graph.Int32, graph.Int64, graph.Bool}
	shapeKinds   = []graph.ElemKind{graph.Float32, graph.Float16, graph.Int8Q, graph.Int64}
	fusedKinds   = []graph.ElemKind{graph.UInt8FusedQ, graph.UInt8FusedFP16Q, graph.UInt4FusedFP16Q}
)

// uniformConstraints covers every kind whose legality is purely "all inputs
// and outputs share one admissible element kind". Kinds needing exact
// per-operand rules are handled in IsSupported directly.
var uniformConstraints = map[graph.Kind]constraint{
	// General math.
	graph.KindAdd:                        {sameKinds: mathKinds},
	graph.KindSub:                        {sameKinds: mathKinds},
	graph.KindMul:                        {sameKinds: mathKinds},
	graph.KindMax:                        {sameKinds: mathKinds},
	graph.KindMin:                        {sameKinds: mathKinds},
	graph.KindPow:                        {sameKinds: mathKinds},
	graph.KindRelu:                       {sameKinds: mathKinds},
	graph.KindReplaceNaN:                 {sameKinds: mathKinds},
	graph.KindMatMul:                     {sameKinds: mathKinds},
	graph.KindBatchedAdd:                 {sameKinds: mathKinds},
	graph.KindBatchedReduceAdd:           {sameKinds: mathKinds},
	graph.KindBatchedReduceMean:          {sameKinds: mathKinds},
	graph.KindBatchedReduceMin:           {sameKinds: mathKinds},
	graph.KindLocalResponseNormalization: {sameKinds: mathKinds},
	graph.KindTanh:                       {sameKinds: mathKinds},
	graph.KindLog:                        {sameKinds: mathKinds},
	graph.KindSigmoid:                    {sameKinds: mathKinds},
	graph.KindSplat:                      {sameKinds: mathKinds},
	graph.KindExp:                        {sameKinds: mathKinds},

	graph.KindDiv: {sameKinds: []graph.ElemKind{graph.Float32, graph.Float16, graph.Int8Q, graph.Int64}},

	// Normalization and pooling.
	graph.KindLayerNormalization: {sameKinds: computeKinds},
	graph.KindBatchNormalization: {sameKinds: computeKinds},
	graph.KindAvgPool:            {sameKinds: computeKinds},
	graph.KindAdaptiveAvgPool:    {sameKinds: computeKinds},

	// Reduced-precision only.
	graph.KindBatchMatMul: {sameKinds: []graph.ElemKind{graph.Int8Q, graph.Float16}},
	graph.KindPRelu:       {sameKinds: []graph.ElemKind{graph.Int8Q, graph.Float16}},
	graph.KindClip:        {sameKinds: []graph.ElemKind{graph.Int8Q, graph.Float16}},

	// Data movement.
	graph.KindSave:      {sameKinds: moveKinds},
	graph.KindConcat:    {sameKinds: moveKinds},
	graph.KindTile:      {sameKinds: moveKinds},
	graph.KindTranspose: {sameKinds: moveKinds},

	graph.KindSlice:        {sameKinds: shapeKinds},
	graph.KindReshape:      {sameKinds: shapeKinds},
	graph.KindSpaceToDepth: {sameKinds: mathKinds},

	graph.KindRescaleQuantized: {sameKinds: []graph.ElemKind{graph.Int8Q}},
	graph.KindLengthsRangeFill: {sameKinds: []graph.ElemKind{graph.Int32}},
	graph.KindLogit:            {sameKinds: fpKinds},
}

// sameElemKind reports whether every non-exempt input and output of n
// carries one shared element kind drawn from kinds. This is the core check
// behind the type-constraint table.
func sameElemKind(n *graph.Node, kinds []graph.ElemKind, inExempt, outExempt []int) bool {
	var shared graph.ElemKind
	seen := false

	consider := func(k graph.ElemKind) bool {
		if !seen {
			shared = k
			seen = true
			return true
		}
		return k == shared
	}

	for i := 0; i < n.NumInputs(); i++ {
		if containsIdx(inExempt, i) {
			continue
		}
		if !consider(n.InputType(i).Elem) {
			return false
		}
	}
	for i := 0; i < n.NumResults(); i++ {
		if containsIdx(outExempt, i) {
			continue
		}
		if !consider(n.ResultType(i).Elem) {
			return false
		}
	}
	if !seen {
		return false
	}
	for _, k := range kinds {
		if k == shared {
			return true
		}
	}
	return false
}

func containsIdx(s []int, i int) bool {
	for _, e := range s {
		if e == i {
			return true
		}
	}
	return false
}
