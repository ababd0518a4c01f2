// Package parallelize splits compute-heavy nodes into parallel chunks.
//
// Planning and execution are separate: a planner produces two node-keyed
// maps (replica count and transform kind) either from size heuristics or by
// replaying an externally recorded per-node directive table, and the
// executor then performs the graph surgery, replacing each directed node
// with N structurally equivalent replicas joined by a Concat. After a
// replay run, a validator cross-checks the structural result against what
// the directive table promised.
package parallelize
