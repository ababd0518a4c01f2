package graph

import (
	"fmt"
	"strings"
)

// NodeValue identifies one result of a node; it is the edge type of the IR.
type NodeValue struct {
	Node *Node
	Res  int
}

// Type returns the tensor type carried on the edge.
func (v NodeValue) Type() *Type {
	return v.Node.ResultType(v.Res)
}

// ElemKind returns the element kind carried on the edge.
func (v NodeValue) ElemKind() ElemKind {
	return v.Type().Elem
}

// Dims returns the dimensions carried on the edge.
func (v NodeValue) Dims() []int {
	return v.Type().Dims
}

// Use is a back-reference from a produced value to one consumer operand.
type Use struct {
	User *Node
	Idx  int
}

// Node is a typed vertex in the dataflow graph. Nodes are created through
// and owned by a Function; the zero value is not usable.
//
// The attribute fields after the wiring fields are kind-specific; only the
// fields relevant to the node's kind are meaningful.
type Node struct {
	kind Kind
	name string
	fn   *Function

	ins   []NodeValue
	outs  []*Type
	users []Use

	axis     int     // Concat join axis, SpaceToDepth block handling
	start    []int   // Slice start offsets
	shuffle  []int   // Transpose permutation
	clipMin  float64 // Clip lower bound
	clipMax  float64 // Clip upper bound
	splatVal float64 // Splat fill value
	erased   bool
}

// Kind returns the node's operation kind.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the node's diagnostic name, unique within its Function.
func (n *Node) Name() string { return n.name }

// Function returns the owning Function.
func (n *Node) Function() *Function { return n.fn }

// NumInputs returns the operand count.
func (n *Node) NumInputs() int { return len(n.ins) }

// Input returns the i-th operand edge.
func (n *Node) Input(i int) NodeValue { return n.ins[i] }

// InputNode returns the producer of the i-th operand.
func (n *Node) InputNode(i int) *Node { return n.ins[i].Node }

// InputType returns the type of the i-th operand.
func (n *Node) InputType(i int) *Type { return n.ins[i].Type() }

// Inputs returns a copy of the operand edges.
func (n *Node) Inputs() []NodeValue {
	out := make([]NodeValue, len(n.ins))
	copy(out, n.ins)
	return out
}

// NumResults returns the result count.
func (n *Node) NumResults() int { return len(n.outs) }

// Result returns the i-th result as an edge value.
func (n *Node) Result(i int) NodeValue { return NodeValue{Node: n, Res: i} }

// ResultType returns the type of the i-th result.
func (n *Node) ResultType(i int) *Type { return n.outs[i] }

// NumUsers returns how many operand slots consume any result of this node.
func (n *Node) NumUsers() int { return len(n.users) }

// Users returns a copy of the use-list.
func (n *Node) Users() []Use {
	out := make([]Use, len(n.users))
	copy(out, n.users)
	return out
}

// ClipMin returns the lower clip bound. Meaningful for Clip nodes only.
func (n *Node) ClipMin() float64 { return n.clipMin }

// ClipMax returns the upper clip bound. Meaningful for Clip nodes only.
func (n *Node) ClipMax() float64 { return n.clipMax }

// SplatValue returns the fill value. Meaningful for Splat nodes only.
func (n *Node) SplatValue() float64 { return n.splatVal }

// Axis returns the join axis. Meaningful for Concat nodes only.
func (n *Node) Axis() int { return n.axis }

// Start returns the slice start offsets. Meaningful for Slice nodes only.
func (n *Node) Start() []int { return n.start }

// Shuffle returns the permutation. Meaningful for Transpose nodes only.
func (n *Node) Shuffle() []int { return n.shuffle }

// hasSideEffects reports whether the node must be kept alive even with zero
// users. Save nodes pin function outputs.
func (n *Node) hasSideEffects() bool { return n.kind == KindSave }

// setOperand rewires operand i to v, maintaining both use-lists.
func (n *Node) setOperand(i int, v NodeValue) {
	old := n.ins[i]
	old.Node.removeUse(Use{User: n, Idx: i})
	n.ins[i] = v
	v.Node.users = append(v.Node.users, Use{User: n, Idx: i})
}

func (n *Node) removeUse(u Use) {
	for i, e := range n.users {
		if e.User == u.User && e.Idx == u.Idx {
			n.users = append(n.users[:i], n.users[i+1:]...)
			return
		}
	}
}

// ReplaceAllUsesWith redirects every consumer of v to nv. The replacement
// value must carry the same type as the replaced one; rewrites must not
// change the meaning of surviving edges.
func (v NodeValue) ReplaceAllUsesWith(nv NodeValue) {
	for _, u := range v.Node.Users() {
		if u.User.ins[u.Idx] == v {
			u.User.setOperand(u.Idx, nv)
		}
	}
}

// String renders a one-line human-readable dump of the node: kind, name,
// operand types and result types. This is the diagnostic attached to
// legalization rejections.
func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", n.kind, n.name)
	if len(n.ins) > 0 {
		b.WriteString(" in:")
		for _, in := range n.ins {
			fmt.Fprintf(&b, " %s", in.Type())
		}
	}
	b.WriteString(" out:")
	for _, out := range n.outs {
		fmt.Fprintf(&b, " %s", out)
	}
	fmt.Fprintf(&b, " users:%d", len(n.users))
	return b.String()
}
