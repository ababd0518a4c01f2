package parallelize

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"nacc/internal/graph"
	"nacc/internal/nodeinfo"
)

// heuristicConfigs fills numChunks and parKinds for the nodes worth
// splitting, judged by operand sizes against the thresholds in opts. Clip
// nodes inherit the exact decision made for their producer so that
// fused activation chains split identically.
func heuristicConfigs(f *graph.Function, numChunks map[*graph.Node]int, parKinds map[*graph.Node]TransformKind, opts Options) {
	direct := func(n *graph.Node, k TransformKind) {
		numChunks[n] = opts.NumChunks
		parKinds[n] = k
		logrus.Debugf("parallelize: %s -> %s x%d", n.Name(), k, opts.NumChunks)
	}

	for _, n := range f.PostOrder() {
		switch n.Kind() {
		case graph.KindFullyConnected:
			w := n.InputType(graph.FullyConnectedWeightsIdx)
			if w.Rank() == 2 && w.Dims[1] >= opts.ModelSplitMin {
				direct(n, Model)
				continue
			}
			in := n.InputType(0)
			if in.Rank() >= 1 && in.Dims[0] >= opts.DataSplitMin {
				direct(n, Data)
			}

		case graph.KindRelu:
			// A Relu fed by a fully-connected node mirrors its own
			// size decision so both halves of the pair split the same
			// way; otherwise it follows whatever split its producer
			// already took.
			prod := n.InputNode(0)
			if prod.Kind() != graph.KindFullyConnected {
				if _, ok := parKinds[prod]; ok {
					direct(n, Data)
				}
				continue
			}
			in := n.InputType(0)
			if in.Rank() < 2 {
				continue
			}
			if in.Dims[1] >= opts.ModelSplitMin {
				direct(n, Model)
				continue
			}
			if in.Dims[0] >= opts.DataSplitMin {
				direct(n, Data)
			}

		case graph.KindTranspose, graph.KindQuantize, graph.KindDequantize, graph.KindBatchMatMul:
			direct(n, Data)

		case graph.KindTanh, graph.KindMul:
			in := n.InputType(0)
			if in.Rank() >= 2 && in.Dims[1] >= opts.FeatureSplitMin {
				direct(n, Data)
			}

		case graph.KindClip:
			prod := n.InputNode(0)
			if k, ok := parKinds[prod]; ok {
				numChunks[n] = numChunks[prod]
				parKinds[n] = k
			}
		}
	}
}

// replayConfigs fills numChunks and parKinds from a recorded per-node
// directive table. A transform kind of None skips the node; any other kind
// must come paired with a replica count greater than one.
func replayConfigs(f *graph.Function, numChunks map[*graph.Node]int, parKinds map[*graph.Node]TransformKind, fi nodeinfo.FunctionInfo) error {
	for _, n := range f.PostOrder() {
		if !fi.Has(n, nodeinfo.ParallelTransformKindKey) {
			continue
		}
		raw, err := fi.SingleValue(n, nodeinfo.ParallelTransformKindKey)
		if err != nil {
			return err
		}
		kind, err := ParseTransformKind(raw)
		if err != nil {
			return errors.Wrapf(err, "node %s", n.Name())
		}
		if kind == None {
			continue
		}
		if !fi.Has(n, nodeinfo.NumParallelChunksKey) {
			return errors.Errorf("node %s: %s %s without %s",
				n.Name(), nodeinfo.ParallelTransformKindKey, raw, nodeinfo.NumParallelChunksKey)
		}
		chunks, err := fi.IntValue(n, nodeinfo.NumParallelChunksKey)
		if err != nil {
			return err
		}
		if chunks <= 1 {
			return errors.Errorf("node %s: %s must exceed 1, got %d",
				n.Name(), nodeinfo.NumParallelChunksKey, chunks)
		}
		numChunks[n] = chunks
		parKinds[n] = kind
	}
	return nil
}
