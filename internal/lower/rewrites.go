package lower

import (
	"nacc/internal/graph"
)

// Lowerer is the surrounding compiler's generic lowering pass: it rewrites
// one node into an equivalent subgraph of simpler primitives. The backend
// only decides *which* nodes need it.
type Lowerer interface {
	LowerNode(f *graph.Function, n *graph.Node)
}

// RequiredNodesOptions controls LowerRequiredNodes.
type RequiredNodesOptions struct {
	// LowerAllBatchMatMul forces every batched matmul into a series of
	// matmuls, instead of only the fp32 ones.
	LowerAllBatchMatMul bool
}

// RemoveClipsBlockingFusion looks for
//
//	FullyConnected -> Clip(a) -> {Relu|Sigmoid|Tanh} -> Clip(b)
//
// with identical bounds on both clips, and elides Clip(a) so that the
// activation can later fuse into the fully-connected op. Reports whether
// the graph changed.
func RemoveClipsBlockingFusion(f *graph.Function) bool {
	changed := false
	for _, n := range f.Nodes() {
		if n.Kind() != graph.KindClip {
			continue
		}
		clipActivation := n
		activation := clipActivation.InputNode(graph.UnaryInputIdx)
		switch activation.Kind() {
		case graph.KindRelu, graph.KindSigmoid, graph.KindTanh:
		default:
			continue
		}
		clipFC := activation.InputNode(graph.UnaryInputIdx)
		if clipFC.Kind() != graph.KindClip {
			continue
		}
		if clipFC.ClipMin() != clipActivation.ClipMin() ||
			clipFC.ClipMax() != clipActivation.ClipMax() {
			continue
		}
		fc := clipFC.InputNode(graph.UnaryInputIdx)
		if fc.Kind() != graph.KindFullyConnected {
			continue
		}
		clipFC.Result(0).ReplaceAllUsesWith(fc.Result(0))
		changed = true
	}
	return changed
}

// LowerRequiredNodes hands nodes the backend cannot or will not run whole
// to the generic lowering pass, and rewrites boolean-to-float conversions
// into a select over constant splats (the hardware has no direct bool cast).
// Reports whether the graph changed.
func LowerRequiredNodes(f *graph.Function, lw Lowerer, opts RequiredNodesOptions) bool {
	changed := false
	for _, n := range f.Nodes() {
		switch n.Kind() {
		case graph.KindBatchMatMul:
			if !opts.LowerAllBatchMatMul && !allFloat32(n) {
				continue
			}
			lw.LowerNode(f, n)
			changed = true

		case graph.KindFusedRowwiseQuantizedSparseLengthsSum:
			if n.ResultType(0).Elem == graph.Float16 {
				continue
			}
			lw.LowerNode(f, n)
			changed = true

		case graph.KindPRelu:
			if n.ResultType(0).Elem == graph.Float16 {
				continue
			}
			lw.LowerNode(f, n)
			changed = true

		case graph.KindConvertTo:
			outKind := n.ResultType(graph.ConvertToResultIdx).Elem
			if !outKind.IsFloat() || n.InputType(graph.ConvertToInputIdx).Elem != graph.Bool {
				continue
			}
			outTy := n.ResultType(graph.ConvertToResultIdx)
			zeros := f.CreateSplat(n.Name()+"_s0", outTy, 0.0)
			ones := f.CreateSplat(n.Name()+"_s1", outTy, 1.0)
			sel := f.CreateSelect(n.Name()+"_sel",
				n.Input(graph.ConvertToInputIdx), ones.Result(0), zeros.Result(0))
			n.Result(graph.ConvertToResultIdx).ReplaceAllUsesWith(sel.Result(0))
			changed = true
		}
	}
	return changed
}

// EliminateConcatSlice removes Slice(Concat) chains where the slice window
// covers exactly one concat operand, replacing the slice with that operand.
// Parallelization followed by re-parallelization of a consumer creates these
// chains; they block fusion downstream. Reports whether the graph changed.
func EliminateConcatSlice(f *graph.Function) bool {
	changed := false
	for _, n := range f.Nodes() {
		if n.Kind() != graph.KindSlice || n.NumUsers() == 0 {
			continue
		}
		cc := n.InputNode(graph.SliceInputIdx)
		if cc.Kind() != graph.KindConcat {
			continue
		}
		if in, ok := concatOperandForSlice(cc, n); ok {
			n.Result(0).ReplaceAllUsesWith(in)
			changed = true
		}
	}
	return changed
}

// concatOperandForSlice returns the concat operand whose extent equals the
// slice window, if there is one.
func concatOperandForSlice(cc, slice *graph.Node) (graph.NodeValue, bool) {
	axis := cc.Axis()
	start := slice.Start()
	outTy := slice.ResultType(0)

	for d := range start {
		if d == axis {
			continue
		}
		if start[d] != 0 || outTy.Dims[d] != cc.ResultType(0).Dims[d] {
			return graph.NodeValue{}, false
		}
	}

	off := 0
	for _, in := range cc.Inputs() {
		extent := in.Type().Dims[axis]
		if off == start[axis] && extent == outTy.Dims[axis] {
			return in, true
		}
		off += extent
	}
	return graph.NodeValue{}, false
}

// DeadCodeElimination erases nodes with no users and no side effects until
// none remain. Reports whether the graph changed.
func DeadCodeElimination(f *graph.Function) bool {
	changed := false
	for {
		erasedAny := false
		for _, n := range f.Nodes() {
			if n.NumUsers() != 0 || n.Kind() == graph.KindSave {
				continue
			}
			if err := f.EraseNode(n); err == nil {
				erasedAny = true
				changed = true
			}
		}
		if !erasedAny {
			return changed
		}
	}
}

func allFloat32(n *graph.Node) bool {
	for i := 0; i < n.NumInputs(); i++ {
		if n.InputType(i).Elem != graph.Float32 {
			return false
		}
	}
	for i := 0; i < n.NumResults(); i++ {
		if n.ResultType(i).Elem != graph.Float32 {
			return false
		}
	}
	return true
}
