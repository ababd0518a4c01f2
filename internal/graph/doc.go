// Package graph defines the mutable dataflow IR the backend compiler
// operates on.
//
// It is intentionally split into:
//   - Immutable edge types (Type): element kind + dimensions + quantization
//   - Mutable nodes (Node) owned by a single Function node arena
//
// Every node result carries a use-list of (consumer, operand-index)
// back-references, so "replace all uses" and user counting are O(uses).
// Nodes are owned solely by their Function; the use-list is a weak,
// non-owning relation.
//
// A Function is owned exclusively by one compilation thread. Nothing in this
// package locks.
package graph
