package parallelize

import (
	"github.com/pkg/errors"
)

// TransformKind selects the split dimension for a parallelized node.
type TransformKind int

const (
	// None leaves the node alone.
	None TransformKind = iota
	// Data splits along the batch dimension.
	Data
	// Model splits along the output-feature dimension.
	Model
)

var transformKindNames = map[TransformKind]string{
	None:  "None",
	Data:  "Data",
	Model: "Model",
}

func (k TransformKind) String() string {
	if s, ok := transformKindNames[k]; ok {
		return s
	}
	return "TransformKind(?)"
}

// ParseTransformKind maps the serialized directive value back to a kind.
func ParseTransformKind(s string) (TransformKind, error) {
	for k, name := range transformKindNames {
		if name == s {
			return k, nil
		}
	}
	return None, errors.Errorf("unknown parallel transform kind %q", s)
}

// Options tunes the heuristic planner.
type Options struct {
	// NumChunks is the replica count assigned to every node the
	// heuristics select. Values below 2 disable heuristic planning.
	NumChunks int

	// ModelSplitMin is the minimum contraction-dimension size for a
	// fully-connected node to take a model-parallel split.
	ModelSplitMin int

	// DataSplitMin is the minimum batch-dimension size for a
	// fully-connected node to take a data-parallel split.
	DataSplitMin int

	// FeatureSplitMin is the minimum feature-dimension size for
	// elementwise multiply and normalization activations to take a
	// data-parallel split.
	FeatureSplitMin int
}

// DefaultOptions returns the thresholds tuned for the target accelerator.
func DefaultOptions() Options {
	return Options{
		NumChunks:       0,
		ModelSplitMin:   512,
		DataSplitMin:    256,
		FeatureSplitMin: 4096,
	}
}
