package parallelize

import (
	"sort"

	"github.com/pkg/errors"

	"nacc/internal/graph"
	"nacc/internal/nodeinfo"
)

// ErrValidation marks a mismatch between the recorded directive table and
// the structural outcome of a replay run.
var ErrValidation = errors.New("parallelization validation failed")

func validationf(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// validateReplay cross-checks a replay run against its directive table:
// every replaced node must be fully detached and its concat must carry
// exactly the promised replica count. Checked entries are consumed from fi;
// any placement or parallelization annotation left on a surviving node
// afterwards is stale and rejected.
func validateReplay(f *graph.Function, replaced map[*graph.Node]*graph.Node, fi nodeinfo.FunctionInfo) error {
	origs := make([]*graph.Node, 0, len(replaced))
	for n := range replaced {
		origs = append(origs, n)
	}
	sort.Slice(origs, func(i, j int) bool { return origs[i].Name() < origs[j].Name() })

	for _, orig := range origs {
		cc := replaced[orig]
		if orig.NumUsers() != 0 {
			return validationf("node %s still has %d users after replacement", orig.Name(), orig.NumUsers())
		}
		want, err := fi.IntValue(orig, nodeinfo.NumParallelChunksKey)
		if err != nil {
			return err
		}
		if got := cc.NumInputs(); got != want {
			return validationf("node %s: directive promised %d replicas, merge joins %d", orig.Name(), want, got)
		}
		fi.Delete(orig)
	}

	for _, n := range f.Nodes() {
		if fi.Has(n, nodeinfo.ParallelTransformKindKey) {
			raw, err := fi.SingleValue(n, nodeinfo.ParallelTransformKindKey)
			if err != nil {
				return err
			}
			if raw != None.String() {
				return validationf("node %s: unconsumed %s %s", n.Name(), nodeinfo.ParallelTransformKindKey, raw)
			}
		}
		// A None kind may survive (the directive asked for nothing), but
		// a replica count on an unreplaced node never may.
		if fi.Has(n, nodeinfo.NumParallelChunksKey) {
			return validationf("node %s: stale %s annotation", n.Name(), nodeinfo.NumParallelChunksKey)
		}
		for _, key := range nodeinfo.PlacementKeys {
			if fi.Has(n, key) {
				return validationf("node %s: stale %s annotation", n.Name(), key)
			}
		}
	}
	return nil
}
