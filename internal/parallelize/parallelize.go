package parallelize

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"nacc/internal/graph"
	"nacc/internal/nodeinfo"
)

// Function plans and executes parallelization over f. With fi nil the
// heuristic planner decides which nodes to split using the thresholds in
// opts; with fi non-nil the recorded directives in fi are replayed instead
// and the structural outcome is validated against them. Reports whether
// anything changed.
//
// The planner maps must stay in lockstep and every planned node must end
// up replaced; a mismatch means the plan and the surgery disagree and the
// graph cannot be trusted.
func Function(f *graph.Function, opts Options, fi nodeinfo.FunctionInfo) (bool, error) {
	numChunks := make(map[*graph.Node]int)
	parKinds := make(map[*graph.Node]TransformKind)

	if fi != nil {
		if err := replayConfigs(f, numChunks, parKinds, fi); err != nil {
			return false, errors.Wrap(err, "replaying parallelization directives")
		}
	} else {
		if opts.NumChunks <= 1 {
			return false, nil
		}
		heuristicConfigs(f, numChunks, parKinds, opts)
	}

	if len(numChunks) != len(parKinds) {
		return false, errors.Errorf("parallelization plan inconsistent: %d chunk counts vs %d transform kinds",
			len(numChunks), len(parKinds))
	}
	if len(numChunks) == 0 {
		return false, nil
	}

	replaced, err := parallelizeOps(f, numChunks, parKinds)
	if err != nil {
		return false, err
	}
	if len(replaced) != len(numChunks) {
		return false, errors.Errorf("parallelization incomplete: planned %d nodes, replaced %d",
			len(numChunks), len(replaced))
	}
	logrus.Debugf("parallelized %d nodes in %s", len(replaced), f.Name())

	if fi != nil {
		if err := validateReplay(f, replaced, fi); err != nil {
			return false, err
		}
	}
	return true, nil
}
