package deploy

// DAGNode is one compiled sub-network in the deployment graph. Children are
// dependencies and may be shared between parents; the graph is acyclic but
// not necessarily a tree.
type DAGNode struct {
	Name        string
	BackendName string
	Children    []*DAGNode
}

// PostOrder returns the DAG reachable from root with every child listed
// before its parents, visiting shared children once. Dependency order
// matters at bind time: a transfer destination must have its resources
// created before the source that will drive the copy.
func PostOrder(root *DAGNode) []*DAGNode {
	visited := make(map[*DAGNode]bool)
	var order []*DAGNode

	var visit func(n *DAGNode)
	visit = func(n *DAGNode) {
		visited[n] = true
		for _, c := range n.Children {
			if !visited[c] {
				visit(c)
			}
		}
		order = append(order, n)
	}

	visit(root)
	return order
}
