package backend

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"nacc/internal/estimate"
	"nacc/internal/graph"
	"nacc/internal/nodeinfo"
)

type fakeAdapter struct {
	devices int
	devErr  error
	cost    float64
}

func (a *fakeAdapter) NumDevices() (int, error) { return a.devices, a.devErr }

func (a *fakeAdapter) EstimateSparseLengthsOp(estimate.Query) (float64, error) {
	return a.cost, nil
}

func value(f *graph.Function, name string, ty *graph.Type) graph.NodeValue {
	return f.CreateSplat(name, ty, 0).Result(0)
}

func buildFC(f *graph.Function, batch, k, n int) (*graph.Node, *graph.Node) {
	fc := f.AddNode(graph.KindFullyConnected, "fc",
		[]graph.NodeValue{
			value(f, "in", graph.NewType(graph.Float32, batch, k)),
			value(f, "w", graph.NewType(graph.Float32, k, n)),
			value(f, "b", graph.NewType(graph.Float32, n)),
		},
		[]*graph.Type{graph.NewType(graph.Float32, batch, n)})
	save := f.CreateSave("out", fc.Result(0))
	return fc, save
}

func TestTransformPostLowering_DisabledIsUntouched(t *testing.T) {
	f := graph.NewFunction("off")
	fc, save := buildFC(f, 512, 256, 1024)

	changed, err := New(nil, nil).TransformPostLowering(f, Options{
		DisableTransforms: true,
		NumParallelChunks: 4,
	})
	if err != nil {
		t.Fatalf("TransformPostLowering: %v", err)
	}
	if changed || save.InputNode(0) != fc {
		t.Fatalf("disabled transform must leave the graph alone")
	}
}

func TestTransformPostLowering_ChunkCountFromOptionChannel(t *testing.T) {
	f := graph.NewFunction("opt")
	_, save := buildFC(f, 64, 256, 1024)

	changed, err := New(nil, nil).TransformPostLowering(f, Options{
		BackendSpecificOpts: map[string]string{NumParallelChunksOpt: "2"},
	})
	if err != nil {
		t.Fatalf("TransformPostLowering: %v", err)
	}
	if !changed {
		t.Fatalf("expected parallelization via the option channel")
	}
	if merge := save.InputNode(0); merge.Kind() != graph.KindConcat || merge.NumInputs() != 2 {
		t.Fatalf("expected a 2-way merge, got %s", merge)
	}
}

func TestTransformPostLowering_ExplicitChunkCountWins(t *testing.T) {
	f := graph.NewFunction("prec")
	_, save := buildFC(f, 64, 256, 1024)

	changed, err := New(nil, nil).TransformPostLowering(f, Options{
		NumParallelChunks:   4,
		BackendSpecificOpts: map[string]string{NumParallelChunksOpt: "2"},
	})
	if err != nil {
		t.Fatalf("TransformPostLowering: %v", err)
	}
	if !changed {
		t.Fatalf("expected parallelization")
	}
	if merge := save.InputNode(0); merge.NumInputs() != 4 {
		t.Fatalf("explicit chunk count should win over the option channel, got %d", merge.NumInputs())
	}
}

func TestTransformPostLowering_BadChunkOptionFails(t *testing.T) {
	f := graph.NewFunction("bad")
	buildFC(f, 64, 256, 1024)

	_, err := New(nil, nil).TransformPostLowering(f, Options{
		BackendSpecificOpts: map[string]string{NumParallelChunksOpt: "many"},
	})
	if err == nil || !strings.Contains(err.Error(), NumParallelChunksOpt) {
		t.Fatalf("want option parse error, got %v", err)
	}
}

func TestCompile_ReplaysDirectivesAndCleansSeams(t *testing.T) {
	f := graph.NewFunction("compile")
	fc, _ := buildFC(f, 8, 16, 16)
	relu := f.AddNode(graph.KindRelu, "relu",
		[]graph.NodeValue{fc.Result(0)}, []*graph.Type{fc.ResultType(0)})
	save := f.CreateSave("rout", relu.Result(0))

	fi, err := nodeinfo.Resolve(f, map[string]map[string][]string{
		"fc": {
			nodeinfo.ParallelTransformKindKey: {"Data"},
			nodeinfo.NumParallelChunksKey:     {"2"},
		},
		"relu": {
			nodeinfo.ParallelTransformKindKey: {"Data"},
			nodeinfo.NumParallelChunksKey:     {"2"},
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	opts := Options{NodeInfo: nodeinfo.Map{f: fi}}

	if err := New(nil, nil).Compile(f, opts); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	merge := save.InputNode(0)
	if merge.Kind() != graph.KindConcat || merge.NumInputs() != 2 {
		t.Fatalf("expected a 2-way merge feeding the save, got %s", merge)
	}
	// The slice-of-merge seams between producer and consumer replicas
	// align chunk for chunk, so cleanup wires each activation replica
	// straight to its producer replica.
	for i := 0; i < merge.NumInputs(); i++ {
		rep := merge.InputNode(i)
		if rep.Kind() != graph.KindRelu {
			t.Fatalf("replica %d is %s", i, rep.Kind())
		}
		if src := rep.InputNode(0); src.Kind() != graph.KindFullyConnected {
			t.Fatalf("replica %d still reads through a seam: %s", i, src)
		}
	}
	// Originals are dead after replacement and must be collected.
	if _, ok := f.NodeByName("fc"); ok {
		t.Fatalf("original node survived cleanup")
	}
	if _, ok := f.NodeByName("relu"); ok {
		t.Fatalf("original activation survived cleanup")
	}
}

func TestCompile_NoDirectivesIsANoOp(t *testing.T) {
	f := graph.NewFunction("plain")
	fc, save := buildFC(f, 8, 16, 16)

	if err := New(nil, nil).Compile(f, Options{}); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if save.InputNode(0) != fc {
		t.Fatalf("compile without directives must not rewrite")
	}
}

func TestNumDevices_AdapterHandling(t *testing.T) {
	if got := New(nil, nil).NumDevices(); got != 1 {
		t.Fatalf("reference mode should report one device, got %d", got)
	}
	if got := New(&fakeAdapter{devices: 6}, nil).NumDevices(); got != 6 {
		t.Fatalf("NumDevices = %d, want 6", got)
	}
	failing := &fakeAdapter{devErr: errors.New("driver not loaded")}
	if got := New(failing, nil).NumDevices(); got != 0 {
		t.Fatalf("discovery failure should count zero devices, got %d", got)
	}
}

func TestEstimate_WithoutAdapterDeclines(t *testing.T) {
	f := graph.NewFunction("est")
	sls := f.AddNode(graph.KindSparseLengthsSum, "sls",
		[]graph.NodeValue{
			value(f, "data", graph.NewType(graph.Float32, 100, 16)),
			value(f, "idx", graph.NewType(graph.Int64, 50)),
			value(f, "len", graph.NewType(graph.Int32, 5)),
		},
		[]*graph.Type{graph.NewType(graph.Float32, 5, 16)})

	if cost, err := New(nil, nil).EstimateEmbeddingOp(sls, estimate.Params{}); err != nil || cost != -1 {
		t.Fatalf("cost=%v err=%v, want -1 and nil", cost, err)
	}
	if cost, err := New(&fakeAdapter{cost: 7}, nil).EstimateEmbeddingOp(sls, estimate.Params{}); err != nil || cost != 7 {
		t.Fatalf("cost=%v err=%v, want 7 and nil", cost, err)
	}
}
