package parallelize

import (
	"fmt"

	"github.com/pkg/errors"

	"nacc/internal/graph"
)

// chunkWindows splits dim into chunks contiguous windows of near-equal
// size, front-loading the remainder. dim must be at least chunks.
func chunkWindows(dim, chunks int) (starts, sizes []int) {
	base := dim / chunks
	rem := dim % chunks
	starts = make([]int, chunks)
	sizes = make([]int, chunks)
	off := 0
	for i := 0; i < chunks; i++ {
		sz := base
		if i < rem {
			sz++
		}
		starts[i] = off
		sizes[i] = sz
		off += sz
	}
	return starts, sizes
}

// parallelizeOps performs the split-and-join surgery for every directed
// node: each one is replaced by chunks replicas whose inputs are slices of
// the original operands and whose results are rejoined by a Concat. The
// original node is left in the graph with zero users for the caller (and
// dead-code elimination) to account for. Returns the original-to-concat
// replacement map.
func parallelizeOps(f *graph.Function, numChunks map[*graph.Node]int, parKinds map[*graph.Node]TransformKind) (map[*graph.Node]*graph.Node, error) {
	replaced := make(map[*graph.Node]*graph.Node, len(numChunks))

	// Dependency order matters: a directed consumer of a directed
	// producer must see the producer's concat as its input before it is
	// itself sliced apart.
	for _, n := range f.PostOrder() {
		chunks, ok := numChunks[n]
		if !ok {
			continue
		}
		kind, ok := parKinds[n]
		if !ok {
			return nil, errors.Errorf("node %s: chunk count without a transform kind", n.Name())
		}
		cc, err := splitNode(f, n, kind, chunks)
		if err != nil {
			return nil, errors.Wrapf(err, "parallelizing %s", n.Name())
		}
		if !cc.ResultType(0).Equal(n.ResultType(0)) {
			return nil, errors.Errorf("parallelizing %s: result type changed from %s to %s",
				n.Name(), n.ResultType(0), cc.ResultType(0))
		}
		n.Result(0).ReplaceAllUsesWith(cc.Result(0))
		replaced[n] = cc
	}
	return replaced, nil
}

// sliceOperand cuts one contiguous window out of operand v along axis.
func sliceOperand(f *graph.Function, name string, v graph.NodeValue, axis, start, size int) (graph.NodeValue, error) {
	t := v.Type()
	starts := make([]int, t.Rank())
	dims := append([]int(nil), t.Dims...)
	starts[axis] = start
	dims[axis] = size
	s, err := f.CreateSlice(name, v, starts, dims)
	if err != nil {
		return graph.NodeValue{}, err
	}
	return s.Result(0), nil
}

func splitNode(f *graph.Function, n *graph.Node, kind TransformKind, chunks int) (*graph.Node, error) {
	switch n.Kind() {
	case graph.KindFullyConnected:
		if kind == Model {
			return splitFullyConnectedModel(f, n, chunks)
		}
		return splitBatch(f, n, chunks, []int{0})

	case graph.KindBatchMatMul:
		if kind != Data {
			return nil, errors.Errorf("%s split not supported for %s", kind, n.Kind())
		}
		return splitBatch(f, n, chunks, []int{graph.BatchMatMulLHSIdx, graph.BatchMatMulRHSIdx})

	case graph.KindMul, graph.KindAdd, graph.KindSub, graph.KindDiv, graph.KindMax, graph.KindMin:
		if kind != Data {
			return nil, errors.Errorf("%s split not supported for %s", kind, n.Kind())
		}
		return splitBatch(f, n, chunks, []int{0, 1})

	case graph.KindTranspose:
		if kind != Data {
			return nil, errors.Errorf("%s split not supported for %s", kind, n.Kind())
		}
		return splitTranspose(f, n, chunks)

	default:
		axis := 0
		if kind == Model {
			axis = 1
		}
		return splitElementwise(f, n, chunks, axis)
	}
}

// splitFullyConnectedModel partitions the output features: the weight
// matrix is cut along its columns, the bias along its only dimension, and
// the replica outputs are rejoined column-wise. The activation operand is
// shared untouched across replicas.
func splitFullyConnectedModel(f *graph.Function, n *graph.Node, chunks int) (*graph.Node, error) {
	in := n.Input(0)
	w := n.Input(graph.FullyConnectedWeightsIdx)
	b := n.Input(graph.FullyConnectedBiasIdx)
	if w.Type().Rank() != 2 || b.Type().Rank() != 1 {
		return nil, errors.Errorf("weights %s / bias %s are not rank 2 / rank 1", w.Type(), b.Type())
	}
	features := w.Dims()[1]
	if features < chunks {
		return nil, errors.Errorf("cannot split %d output features into %d chunks", features, chunks)
	}

	starts, sizes := chunkWindows(features, chunks)
	parts := make([]graph.NodeValue, chunks)
	outDims := append([]int(nil), n.ResultType(0).Dims...)
	for i := 0; i < chunks; i++ {
		ws, err := sliceOperand(f, fmt.Sprintf("%s.w%d", n.Name(), i), w, 1, starts[i], sizes[i])
		if err != nil {
			return nil, err
		}
		bs, err := sliceOperand(f, fmt.Sprintf("%s.b%d", n.Name(), i), b, 0, starts[i], sizes[i])
		if err != nil {
			return nil, err
		}
		outDims[1] = sizes[i]
		rep := f.CloneWithNewInputs(n, fmt.Sprintf("%s.par%d", n.Name(), i),
			[]graph.NodeValue{in, ws, bs},
			[]*graph.Type{n.ResultType(0).WithDims(outDims...)})
		parts[i] = rep.Result(0)
	}
	return f.CreateConcat(n.Name()+".merge", parts, 1)
}

// splitBatch cuts the operands listed in splitIdx along their leading
// dimension, keeping the rest shared, and rejoins the replica results along
// the result's leading dimension.
func splitBatch(f *graph.Function, n *graph.Node, chunks int, splitIdx []int) (*graph.Node, error) {
	batch := n.InputType(splitIdx[0]).Dims[0]
	for _, idx := range splitIdx {
		t := n.InputType(idx)
		if t.Rank() == 0 || t.Dims[0] != batch {
			return nil, errors.Errorf("operand %d type %s does not share batch dimension %d", idx, t, batch)
		}
	}
	if batch < chunks {
		return nil, errors.Errorf("cannot split batch of %d into %d chunks", batch, chunks)
	}

	starts, sizes := chunkWindows(batch, chunks)
	parts := make([]graph.NodeValue, chunks)
	outDims := append([]int(nil), n.ResultType(0).Dims...)
	for i := 0; i < chunks; i++ {
		ins := n.Inputs()
		for _, idx := range splitIdx {
			s, err := sliceOperand(f, fmt.Sprintf("%s.in%d_%d", n.Name(), idx, i), ins[idx], 0, starts[i], sizes[i])
			if err != nil {
				return nil, err
			}
			ins[idx] = s
		}
		outDims[0] = sizes[i]
		rep := f.CloneWithNewInputs(n, fmt.Sprintf("%s.par%d", n.Name(), i),
			ins, []*graph.Type{n.ResultType(0).WithDims(outDims...)})
		parts[i] = rep.Result(0)
	}
	return f.CreateConcat(n.Name()+".merge", parts, 0)
}

// splitElementwise cuts operand zero along axis and passes any remaining
// operands (per-feature scales, bounds) through unchanged. The result is
// rejoined along the same axis, which is sound for any shape-preserving
// elementwise node.
func splitElementwise(f *graph.Function, n *graph.Node, chunks, axis int) (*graph.Node, error) {
	in := n.Input(0)
	t := in.Type()
	if axis >= t.Rank() {
		return nil, errors.Errorf("split axis %d out of range for %s", axis, t)
	}
	if rt := n.ResultType(0); rt.Rank() != t.Rank() || rt.Dims[axis] != t.Dims[axis] {
		return nil, errors.Errorf("%s does not preserve dimension %d (%s -> %s)", n.Kind(), axis, t, rt)
	}
	dim := t.Dims[axis]
	if dim < chunks {
		return nil, errors.Errorf("cannot split dimension of %d into %d chunks", dim, chunks)
	}

	starts, sizes := chunkWindows(dim, chunks)
	parts := make([]graph.NodeValue, chunks)
	outDims := append([]int(nil), n.ResultType(0).Dims...)
	for i := 0; i < chunks; i++ {
		s, err := sliceOperand(f, fmt.Sprintf("%s.in%d", n.Name(), i), in, axis, starts[i], sizes[i])
		if err != nil {
			return nil, err
		}
		ins := n.Inputs()
		ins[0] = s
		outDims[axis] = sizes[i]
		rep := f.CloneWithNewInputs(n, fmt.Sprintf("%s.par%d", n.Name(), i),
			ins, []*graph.Type{n.ResultType(0).WithDims(outDims...)})
		parts[i] = rep.Result(0)
	}
	return f.CreateConcat(n.Name()+".merge", parts, axis)
}

// splitTranspose cuts the input batch-wise; since the permutation moves
// the leading dimension elsewhere, the replica results are rejoined along
// whichever output axis the leading input dimension landed on.
func splitTranspose(f *graph.Function, n *graph.Node, chunks int) (*graph.Node, error) {
	in := n.Input(0)
	batch := in.Dims()[0]
	if batch < chunks {
		return nil, errors.Errorf("cannot split batch of %d into %d chunks", batch, chunks)
	}
	joinAxis := -1
	for i, s := range n.Shuffle() {
		if s == 0 {
			joinAxis = i
			break
		}
	}
	if joinAxis < 0 {
		return nil, errors.Errorf("permutation %v does not map the batch dimension", n.Shuffle())
	}

	starts, sizes := chunkWindows(batch, chunks)
	parts := make([]graph.NodeValue, chunks)
	outDims := append([]int(nil), n.ResultType(0).Dims...)
	for i := 0; i < chunks; i++ {
		s, err := sliceOperand(f, fmt.Sprintf("%s.in%d", n.Name(), i), in, 0, starts[i], sizes[i])
		if err != nil {
			return nil, err
		}
		outDims[joinAxis] = sizes[i]
		rep := f.CloneWithNewInputs(n, fmt.Sprintf("%s.par%d", n.Name(), i),
			[]graph.NodeValue{s}, []*graph.Type{n.ResultType(0).WithDims(outDims...)})
		parts[i] = rep.Result(0)
	}
	return f.CreateConcat(n.Name()+".merge", parts, joinAxis)
}
