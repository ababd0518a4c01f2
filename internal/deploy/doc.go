// Package deploy binds per-device execution contexts to the nodes of a
// partitioned deployment DAG.
//
// The DAG is the post-partitioning picture: each node is one compiled
// sub-network tagged with the backend that owns it, distinct from the
// compile-time operation graph. Binding aggregates placeholder usage across
// every device binding first, rejects concurrent-write hazards up front,
// and only then walks the DAG issuing one bind call per owned node. Any
// failure aborts the whole operation; there is no partial-success state.
package deploy
