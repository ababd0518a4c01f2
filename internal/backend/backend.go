// Package backend assembles the compile-time pieces into the surface the
// surrounding compiler drives: support queries, the post-lowering
// transform, the compile-time replay of recorded parallelization, and
// deployment binding.
package backend

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"nacc/internal/deploy"
	"nacc/internal/estimate"
	"nacc/internal/graph"
	"nacc/internal/legalize"
	"nacc/internal/lower"
	"nacc/internal/nodeinfo"
	"nacc/internal/parallelize"
)

// Name tags DAG nodes owned by this backend.
const Name = "nacc"

// NumParallelChunksOpt is the backend-specific option key consulted when
// Options.NumParallelChunks is unset.
const NumParallelChunksOpt = "NumParallelChunks"

// Adapter is the opaque hardware service: device discovery plus the cost
// model. Both are optional at construction; a nil adapter means reference
// execution with a single logical device and no estimation.
type Adapter interface {
	NumDevices() (int, error)
	estimate.CostModel
}

// Options carries the per-backend knobs shared across compile phases.
type Options struct {
	// DeviceLowering selects device-mode lowering decisions (sparse
	// lookups stay whole on device).
	DeviceLowering bool

	// LowerAllBatchMatMul forces batched matrix multiplies through
	// generic lowering regardless of precision.
	LowerAllBatchMatMul bool

	// AcceptUnaryLookup admits sparse lookups over unary data despite
	// their poor device utilization.
	AcceptUnaryLookup bool

	// DisableTransforms skips the whole post-lowering transform.
	DisableTransforms bool

	// NumParallelChunks is the heuristic replica count. Zero consults
	// BackendSpecificOpts[NumParallelChunksOpt]; a final value below 2
	// disables heuristic parallelization.
	NumParallelChunks int

	// Parallelization size thresholds. Zero values take the defaults.
	ModelSplitMin   int
	DataSplitMin    int
	FeatureSplitMin int

	// BackendSpecificOpts is the stringly-typed option channel shared
	// with the surrounding compiler.
	BackendSpecificOpts map[string]string

	// NodeInfo is the per-node annotation channel replayed at compile
	// time.
	NodeInfo nodeinfo.Map
}

// Backend is the top-level facade. The zero value is not usable; construct
// with New.
type Backend struct {
	adapter Adapter
	lowerer lower.Lowerer
}

// New returns a Backend using adapter for device access and lw for generic
// node lowering. Either may be nil: a nil adapter reports one reference
// device, a nil lowerer makes lowering directives no-ops.
func New(adapter Adapter, lw lower.Lowerer) *Backend {
	if lw == nil {
		lw = nopLowerer{}
	}
	return &Backend{adapter: adapter, lowerer: lw}
}

type nopLowerer struct{}

func (nopLowerer) LowerNode(*graph.Function, *graph.Node) {}

// IsSupported reports whether the device can execute n.
func (b *Backend) IsSupported(n *graph.Node) bool {
	return legalize.IsSupported(n)
}

// AcceptForExecution reports whether n should actually be placed on the
// device, applying the performance filter on top of IsSupported.
func (b *Backend) AcceptForExecution(n *graph.Node, opts Options) bool {
	return legalize.AcceptForExecution(n, opts.AcceptUnaryLookup)
}

// ShouldLower reports whether generic lowering should decompose n.
func (b *Backend) ShouldLower(n *graph.Node, opts Options) bool {
	return lower.Policy{DeviceLowering: opts.DeviceLowering}.ShouldLower(n)
}

// NumDevices reports how many physical devices are available. Adapter
// failures are logged and reported as zero devices rather than propagated;
// discovery runs in contexts that can only count.
func (b *Backend) NumDevices() int {
	if b.adapter == nil {
		return 1
	}
	n, err := b.adapter.NumDevices()
	if err != nil {
		logrus.WithError(err).Error("device discovery failed")
		return 0
	}
	return n
}

// EstimateEmbeddingOp prices a sparse-lengths embedding node. Without an
// adapter there is no cost model and every node reports -1.
func (b *Backend) EstimateEmbeddingOp(n *graph.Node, p estimate.Params) (float64, error) {
	if b.adapter == nil {
		return -1, nil
	}
	return estimate.EstimateEmbeddingOp(b.adapter, n, p)
}

// parallelizeOptions resolves the heuristic planner options from opts,
// falling back to the backend-specific option channel for the chunk count
// and to the built-in thresholds for unset minimums.
func parallelizeOptions(opts Options) (parallelize.Options, error) {
	po := parallelize.DefaultOptions()
	po.NumChunks = opts.NumParallelChunks
	if po.NumChunks == 0 {
		if raw, ok := opts.BackendSpecificOpts[NumParallelChunksOpt]; ok {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return po, errors.Wrapf(err, "option %s", NumParallelChunksOpt)
			}
			po.NumChunks = v
		}
	}
	if opts.ModelSplitMin > 0 {
		po.ModelSplitMin = opts.ModelSplitMin
	}
	if opts.DataSplitMin > 0 {
		po.DataSplitMin = opts.DataSplitMin
	}
	if opts.FeatureSplitMin > 0 {
		po.FeatureSplitMin = opts.FeatureSplitMin
	}
	return po, nil
}

// Parallelize splits f heuristically, or replays the recorded per-node
// directives when usePerNodeSpec is set. Reports whether f changed.
func (b *Backend) Parallelize(f *graph.Function, opts Options, usePerNodeSpec bool) (bool, error) {
	if usePerNodeSpec {
		fi, ok := opts.NodeInfo.ForFunction(f)
		if !ok {
			return false, nil
		}
		return parallelize.Function(f, parallelize.Options{}, fi)
	}
	po, err := parallelizeOptions(opts)
	if err != nil {
		return false, err
	}
	return parallelize.Function(f, po, nil)
}

// TransformPostLowering runs the backend transform pipeline: unblock
// fusion, force-lower the nodes the device cannot take as-is, then apply
// heuristic parallelization. Reports whether f changed.
func (b *Backend) TransformPostLowering(f *graph.Function, opts Options) (bool, error) {
	if opts.DisableTransforms {
		return false, nil
	}
	changed := lower.RemoveClipsBlockingFusion(f)
	changed = lower.LowerRequiredNodes(f, b.lowerer, lower.RequiredNodesOptions{
		LowerAllBatchMatMul: opts.LowerAllBatchMatMul,
	}) || changed
	parallelized, err := b.Parallelize(f, opts, false)
	if err != nil {
		return false, err
	}
	return changed || parallelized, nil
}

// Compile finalizes f for the device: recorded parallelization directives
// are replayed and validated, then the concat-slice seams left by the
// splits are cleaned up and dead nodes dropped.
func (b *Backend) Compile(f *graph.Function, opts Options) error {
	parallelized, err := b.Parallelize(f, opts, true)
	if err != nil {
		return errors.Wrapf(err, "compiling %s", f.Name())
	}
	if parallelized {
		lower.EliminateConcatSlice(f)
		for lower.DeadCodeElimination(f) {
		}
	}
	return nil
}

// BindContexts binds the deployment DAG nodes owned by this backend to
// their devices.
func (b *Backend) BindContexts(bindings []deploy.ContextBinding, root *deploy.DAGNode, enableP2P, enableDRT bool) error {
	return deploy.BindContexts(Name, bindings, root, enableP2P, enableDRT)
}
