// Package nodeinfo models the backend-specific per-node annotation channel:
// an externally supplied mapping Function -> Node -> key -> ordered string
// values, shared across compile phases.
//
// The raw channel is a weakly typed property bag. Values are validated here,
// at the boundary where they are first read; transform code downstream only
// sees parsed values or an error.
package nodeinfo

import (
	"errors"
	"fmt"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"nacc/internal/graph"
)

// Recognized annotation keys. The parallelization keys are consumed by the
// parallelization phase; the placement keys belong to a later placement
// phase and must be absent while this subsystem runs.
const (
	ParallelTransformKindKey  = "parallelTransformKind"
	NumParallelChunksKey      = "numParallelChunks"
	CoreAssignmentsKey        = "coreAssignments"
	CoreAssignmentsSuffixKey  = "coreAssignmentsSuffix"
	ExtraEdgesTargetNameKey   = "extraEdgesTargetName"
	ExtraEdgesTargetSuffixKey = "extraEdgesTargetSuffix"
	ExtraEdgesSourceSuffixKey = "extraEdgesSourceSuffix"
)

// PlacementKeys are the keys that only the placement phase may set.
var PlacementKeys = []string{
	CoreAssignmentsKey,
	CoreAssignmentsSuffixKey,
	ExtraEdgesTargetNameKey,
	ExtraEdgesTargetSuffixKey,
	ExtraEdgesSourceSuffixKey,
}

// ErrMalformed marks an internally inconsistent annotation table.
var ErrMalformed = errors.New("malformed node info")

func malformedf(format string, args ...any) error {
	return pkgerrors.Wrap(ErrMalformed, fmt.Sprintf(format, args...))
}

// FunctionInfo holds the live annotations for the nodes of one Function.
// Parallelization consumes entries as it validates them.
type FunctionInfo map[*graph.Node]map[string][]string

// Map associates Functions with their per-node annotations.
type Map map[*graph.Function]FunctionInfo

// ForFunction returns the annotations for f.
func (m Map) ForFunction(f *graph.Function) (FunctionInfo, bool) {
	fi, ok := m[f]
	return fi, ok
}

// Values returns the raw values for a node/key pair.
func (fi FunctionInfo) Values(n *graph.Node, key string) ([]string, bool) {
	entry, ok := fi[n]
	if !ok {
		return nil, false
	}
	vals, ok := entry[key]
	return vals, ok
}

// Has reports whether the node carries the key at all.
func (fi FunctionInfo) Has(n *graph.Node, key string) bool {
	_, ok := fi.Values(n, key)
	return ok
}

// Delete removes a node's whole entry; used once its directives have been
// consumed.
func (fi FunctionInfo) Delete(n *graph.Node) {
	delete(fi, n)
}

// SingleValue returns the single value for a node/key pair, or a malformed
// error if the key is present with any other value count.
func (fi FunctionInfo) SingleValue(n *graph.Node, key string) (string, error) {
	vals, ok := fi.Values(n, key)
	if !ok {
		return "", malformedf("node %s: missing %s", n.Name(), key)
	}
	if len(vals) != 1 {
		return "", malformedf("node %s: expected a single value for %s, got %d", n.Name(), key, len(vals))
	}
	return vals[0], nil
}

// IntValue parses the single value for a node/key pair as an integer.
func (fi FunctionInfo) IntValue(n *graph.Node, key string) (int, error) {
	s, err := fi.SingleValue(n, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, malformedf("node %s: %s value %q is not an integer", n.Name(), key, s)
	}
	return v, nil
}

// Resolve converts a name-keyed serialized annotation table into a live
// FunctionInfo for f. Names that do not resolve to a live node are a
// malformed-annotation error.
func Resolve(f *graph.Function, byName map[string]map[string][]string) (FunctionInfo, error) {
	fi := make(FunctionInfo, len(byName))
	for name, entry := range byName {
		n, ok := f.NodeByName(name)
		if !ok {
			return nil, malformedf("function %s: annotation for unknown node %q", f.Name(), name)
		}
		copied := make(map[string][]string, len(entry))
		for k, vals := range entry {
			copied[k] = append([]string(nil), vals...)
		}
		fi[n] = copied
	}
	return fi, nil
}
