package graph

import (
	"fmt"
)

// Function is the node arena: it owns every node of one compile-time
// dataflow graph. Rewrites mutate nodes in place, add nodes, and erase
// nodes that are no longer used.
type Function struct {
	name    string
	nodes   []*Node
	byName  map[string]*Node
	nameSeq map[string]int
}

// NewFunction returns an empty Function.
func NewFunction(name string) *Function {
	return &Function{
		name:    name,
		byName:  make(map[string]*Node),
		nameSeq: make(map[string]int),
	}
}

// Name returns the function's name.
func (f *Function) Name() string { return f.name }

// NumNodes returns the live node count.
func (f *Function) NumNodes() int { return len(f.nodes) }

// Nodes returns a snapshot of the live nodes in insertion order. The
// snapshot stays valid while the caller adds or erases nodes, which is the
// normal shape of a rewrite loop.
func (f *Function) Nodes() []*Node {
	out := make([]*Node, len(f.nodes))
	copy(out, f.nodes)
	return out
}

// NodeByName returns the live node with the given name.
func (f *Function) NodeByName(name string) (*Node, bool) {
	n, ok := f.byName[name]
	return n, ok
}

// uniqueName returns name, or name with a numeric suffix if taken.
func (f *Function) uniqueName(name string) string {
	if name == "" {
		name = "node"
	}
	if _, taken := f.byName[name]; !taken {
		return name
	}
	for {
		f.nameSeq[name]++
		cand := fmt.Sprintf("%s.%d", name, f.nameSeq[name])
		if _, taken := f.byName[cand]; !taken {
			return cand
		}
	}
}

// AddNode creates a node of the given kind with explicit operand edges and
// result types. Typed helpers below cover kinds that carry attributes or
// computed result types; AddNode is the generic path used by loaders and
// tests.
func (f *Function) AddNode(kind Kind, name string, ins []NodeValue, outs []*Type) *Node {
	n := &Node{
		kind: kind,
		name: f.uniqueName(name),
		fn:   f,
		outs: outs,
	}
	n.ins = make([]NodeValue, len(ins))
	for i, in := range ins {
		n.ins[i] = in
		in.Node.users = append(in.Node.users, Use{User: n, Idx: i})
	}
	f.nodes = append(f.nodes, n)
	f.byName[n.name] = n
	return n
}

// CreateSplat creates a constant-fill node of the given type.
func (f *Function) CreateSplat(name string, ty *Type, value float64) *Node {
	n := f.AddNode(KindSplat, name, nil, []*Type{ty})
	n.splatVal = value
	return n
}

// CreateSelect creates an elementwise select over a boolean condition. The
// result type follows the true-branch operand.
func (f *Function) CreateSelect(name string, cond, lhs, rhs NodeValue) *Node {
	return f.AddNode(KindSelect, name, []NodeValue{cond, lhs, rhs}, []*Type{lhs.Type()})
}

// CreateClip creates a clip node bounding in to [min, max].
func (f *Function) CreateClip(name string, in NodeValue, min, max float64) *Node {
	n := f.AddNode(KindClip, name, []NodeValue{in}, []*Type{in.Type()})
	n.clipMin = min
	n.clipMax = max
	return n
}

// CreateSave creates an output pin for v. Save nodes are never dead.
func (f *Function) CreateSave(name string, v NodeValue) *Node {
	return f.AddNode(KindSave, name, []NodeValue{v}, []*Type{v.Type()})
}

// CreateConcat creates a concatenation of ins along axis. All operands must
// agree on rank, element kind and every dimension except axis.
func (f *Function) CreateConcat(name string, ins []NodeValue, axis int) (*Node, error) {
	if len(ins) == 0 {
		return nil, invalidf("concat %q: no inputs", name)
	}
	first := ins[0].Type()
	if axis < 0 || axis >= first.Rank() {
		return nil, invalidf("concat %q: axis %d out of range for rank %d", name, axis, first.Rank())
	}
	dims := append([]int(nil), first.Dims...)
	for i, in := range ins[1:] {
		t := in.Type()
		if t.Elem != first.Elem || t.Rank() != first.Rank() {
			return nil, invalidf("concat %q: operand %d type %s incompatible with %s", name, i+1, t, first)
		}
		for d := 0; d < t.Rank(); d++ {
			if d == axis {
				continue
			}
			if t.Dims[d] != first.Dims[d] {
				return nil, invalidf("concat %q: operand %d dim %d mismatch (%d vs %d)", name, i+1, d, t.Dims[d], first.Dims[d])
			}
		}
		dims[axis] += t.Dims[axis]
	}
	n := f.AddNode(KindConcat, name, ins, []*Type{first.WithDims(dims...)})
	n.axis = axis
	return n, nil
}

// CreateSlice creates a slice of in starting at start with the given output
// dimensions.
func (f *Function) CreateSlice(name string, in NodeValue, start, outDims []int) (*Node, error) {
	t := in.Type()
	if len(start) != t.Rank() || len(outDims) != t.Rank() {
		return nil, invalidf("slice %q: start/out rank mismatch with input rank %d", name, t.Rank())
	}
	for d := range start {
		if start[d] < 0 || outDims[d] < 1 || start[d]+outDims[d] > t.Dims[d] {
			return nil, invalidf("slice %q: window [%d, %d) out of bounds for dim %d of %s",
				name, start[d], start[d]+outDims[d], d, t)
		}
	}
	n := f.AddNode(KindSlice, name, []NodeValue{in}, []*Type{t.WithDims(outDims...)})
	n.start = append([]int(nil), start...)
	return n, nil
}

// CreateTranspose creates a transpose of in under the given permutation.
func (f *Function) CreateTranspose(name string, in NodeValue, shuffle []int) (*Node, error) {
	t := in.Type()
	if len(shuffle) != t.Rank() {
		return nil, invalidf("transpose %q: permutation rank %d does not match input rank %d", name, len(shuffle), t.Rank())
	}
	dims := make([]int, t.Rank())
	seen := make([]bool, t.Rank())
	for i, s := range shuffle {
		if s < 0 || s >= t.Rank() || seen[s] {
			return nil, invalidf("transpose %q: invalid permutation %v", name, shuffle)
		}
		seen[s] = true
		dims[i] = t.Dims[s]
	}
	n := f.AddNode(KindTranspose, name, []NodeValue{in}, []*Type{t.WithDims(dims...)})
	n.shuffle = append([]int(nil), shuffle...)
	return n, nil
}

// CloneWithNewInputs creates a node of the same kind and attributes as
// orig, wired to new operand edges and carrying new result types. This is
// how the parallelization executor stamps out structurally equivalent
// replicas.
func (f *Function) CloneWithNewInputs(orig *Node, name string, ins []NodeValue, outs []*Type) *Node {
	n := f.AddNode(orig.kind, name, ins, outs)
	n.axis = orig.axis
	n.start = append([]int(nil), orig.start...)
	n.shuffle = append([]int(nil), orig.shuffle...)
	n.clipMin = orig.clipMin
	n.clipMax = orig.clipMax
	n.splatVal = orig.splatVal
	return n
}

// EraseNode removes a node with no remaining users from the arena,
// detaching its operand edges.
func (f *Function) EraseNode(n *Node) error {
	if n.NumUsers() != 0 {
		return &BuildError{Kind: ErrNodeInUse, Msg: fmt.Sprintf("%s has %d users", n.name, n.NumUsers())}
	}
	for i, in := range n.ins {
		in.Node.removeUse(Use{User: n, Idx: i})
	}
	n.ins = nil
	n.erased = true
	for i, e := range f.nodes {
		if e == n {
			f.nodes = append(f.nodes[:i], f.nodes[i+1:]...)
			break
		}
	}
	delete(f.byName, n.name)
	return nil
}

// PostOrder returns the nodes in a dependency-respecting order: every node
// appears after all of its operand producers. Deterministic for a given
// insertion order.
func (f *Function) PostOrder() []*Node {
	visited := make(map[*Node]bool, len(f.nodes))
	order := make([]*Node, 0, len(f.nodes))

	var visit func(n *Node)
	visit = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, in := range n.ins {
			visit(in.Node)
		}
		order = append(order, n)
	}

	for _, n := range f.nodes {
		visit(n)
	}
	return order
}
