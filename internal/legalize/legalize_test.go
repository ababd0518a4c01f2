package legalize

import (
	"testing"

	"nacc/internal/graph"
)

func value(f *graph.Function, name string, ty *graph.Type) graph.NodeValue {
	return f.CreateSplat(name, ty, 0).Result(0)
}

func sparseLengthsSum(f *graph.Function, dataTy, idxTy, lenTy, outTy *graph.Type) *graph.Node {
	return f.AddNode(graph.KindSparseLengthsSum, "sls",
		[]graph.NodeValue{
			value(f, "data", dataTy),
			value(f, "indices", idxTy),
			value(f, "lengths", lenTy),
		},
		[]*graph.Type{outTy})
}

func TestIsSupported_SharedElemKindGroups(t *testing.T) {
	f := graph.NewFunction("groups")

	add := f.AddNode(graph.KindAdd, "add",
		[]graph.NodeValue{
			value(f, "a", graph.NewType(graph.Float16, 2, 2)),
			value(f, "b", graph.NewType(graph.Float16, 2, 2)),
		},
		[]*graph.Type{graph.NewType(graph.Float16, 2, 2)})
	if !IsSupported(add) {
		t.Fatalf("expected fp16 Add to be supported")
	}

	mixed := f.AddNode(graph.KindAdd, "mixed",
		[]graph.NodeValue{
			value(f, "c", graph.NewType(graph.Float16, 2, 2)),
			value(f, "d", graph.NewType(graph.Float32, 2, 2)),
		},
		[]*graph.Type{graph.NewType(graph.Float16, 2, 2)})
	if IsSupported(mixed) {
		t.Fatalf("expected mixed-kind Add to be rejected")
	}

	boolAdd := f.AddNode(graph.KindAdd, "booladd",
		[]graph.NodeValue{
			value(f, "e", graph.NewType(graph.Bool, 2)),
			value(f, "g", graph.NewType(graph.Bool, 2)),
		},
		[]*graph.Type{graph.NewType(graph.Bool, 2)})
	if IsSupported(boolAdd) {
		t.Fatalf("expected bool Add to be rejected (bool not in math set)")
	}

	// Clip only runs in reduced precision.
	clipFP32 := f.CreateClip("clip32", value(f, "h", graph.NewType(graph.Float32, 4)), 0, 6)
	if IsSupported(clipFP32) {
		t.Fatalf("expected fp32 Clip to be rejected")
	}
	clipFP16 := f.CreateClip("clip16", value(f, "i", graph.NewType(graph.Float16, 4)), 0, 6)
	if !IsSupported(clipFP16) {
		t.Fatalf("expected fp16 Clip to be supported")
	}
}

func TestIsSupported_UnlistedKindsFailClosed(t *testing.T) {
	f := graph.NewFunction("unlisted")
	in := value(f, "in", graph.NewType(graph.Float32, 2, 2))

	for _, k := range []graph.Kind{graph.KindFlip, graph.KindCumSum, graph.KindGatherRanges} {
		n := f.AddNode(k, "n", []graph.NodeValue{in}, []*graph.Type{in.Type()})
		if IsSupported(n) {
			t.Fatalf("expected kind %s to be rejected by default", k)
		}
	}
}

func TestIsSupported_QuantizeDirection(t *testing.T) {
	f := graph.NewFunction("quant")

	q := f.AddNode(graph.KindQuantize, "q",
		[]graph.NodeValue{value(f, "in", graph.NewType(graph.Float32, 8))},
		[]*graph.Type{graph.NewQuantizedType(graph.Int8Q, 0.1, 0, 8)})
	if !IsSupported(q) {
		t.Fatalf("expected fp32->i8q Quantize to be supported")
	}

	qBad := f.AddNode(graph.KindQuantize, "qbad",
		[]graph.NodeValue{value(f, "in64", graph.NewType(graph.Int64, 8))},
		[]*graph.Type{graph.NewQuantizedType(graph.Int8Q, 0.1, 0, 8)})
	if IsSupported(qBad) {
		t.Fatalf("expected i64->i8q Quantize to be rejected")
	}

	dq := f.AddNode(graph.KindDequantize, "dq",
		[]graph.NodeValue{value(f, "qin", graph.NewQuantizedType(graph.Int8Q, 0.1, 0, 8))},
		[]*graph.Type{graph.NewType(graph.Float16, 8)})
	if !IsSupported(dq) {
		t.Fatalf("expected i8q->fp16 Dequantize to be supported")
	}
}

func TestIsSupported_FullyConnectedDependsOnQuantization(t *testing.T) {
	f := graph.NewFunction("fc")

	fcFloat := f.AddNode(graph.KindFullyConnected, "fc32",
		[]graph.NodeValue{
			value(f, "in", graph.NewType(graph.Float32, 16, 64)),
			value(f, "w", graph.NewType(graph.Float32, 64, 32)),
			value(f, "b", graph.NewType(graph.Float32, 32)),
		},
		[]*graph.Type{graph.NewType(graph.Float32, 16, 32)})
	if !IsSupported(fcFloat) {
		t.Fatalf("expected float FC to be supported")
	}

	// Quantized FC allows a float or i32q bias, nothing else.
	mkQuantFC := func(name string, biasTy *graph.Type) *graph.Node {
		return f.AddNode(graph.KindFullyConnected, name,
			[]graph.NodeValue{
				value(f, name+"_in", graph.NewQuantizedType(graph.Int8Q, 0.2, 0, 16, 64)),
				value(f, name+"_w", graph.NewQuantizedType(graph.Int8Q, 0.2, 0, 64, 32)),
				value(f, name+"_b", biasTy),
			},
			[]*graph.Type{graph.NewQuantizedType(graph.Int8Q, 0.2, 0, 16, 32)})
	}
	if !IsSupported(mkQuantFC("fcq1", graph.NewQuantizedType(graph.Int32Q, 0.2, 0, 32))) {
		t.Fatalf("expected quantized FC with i32q bias to be supported")
	}
	if !IsSupported(mkQuantFC("fcq2", graph.NewType(graph.Float32, 32))) {
		t.Fatalf("expected quantized FC with float bias to be supported")
	}
	if IsSupported(mkQuantFC("fcq3", graph.NewType(graph.Int64, 32))) {
		t.Fatalf("expected quantized FC with i64 bias to be rejected")
	}
}

func TestIsSupported_LookupIndicesRankAndWidth(t *testing.T) {
	f := graph.NewFunction("sls")

	dataTy := graph.NewType(graph.Float32, 100, 16)
	lenTy := graph.NewType(graph.Int32, 10)
	outTy := graph.NewType(graph.Float32, 10, 16)

	ok := sparseLengthsSum(f, dataTy, graph.NewType(graph.Int64, 1000), lenTy, outTy)
	if !IsSupported(ok) {
		t.Fatalf("expected valid SparseLengthsSum to be supported")
	}

	// Indices at or past the 64k hardware limit are rejected regardless of
	// element kinds.
	wide := sparseLengthsSum(f, dataTy, graph.NewType(graph.Int64, 1<<16), lenTy, outTy)
	if IsSupported(wide) {
		t.Fatalf("expected >=64k indices to be rejected")
	}

	rank2 := sparseLengthsSum(f, dataTy, graph.NewType(graph.Int64, 10, 100), lenTy, outTy)
	if IsSupported(rank2) {
		t.Fatalf("expected rank-2 indices to be rejected")
	}

	badLen := sparseLengthsSum(f, dataTy, graph.NewType(graph.Int64, 1000), graph.NewType(graph.Int64, 10), outTy)
	if IsSupported(badLen) {
		t.Fatalf("expected i64 lengths to be rejected")
	}
}

func TestIsSupported_ResultExemptions(t *testing.T) {
	f := graph.NewFunction("argmax")

	pool := f.AddNode(graph.KindMaxPool, "pool",
		[]graph.NodeValue{value(f, "in", graph.NewType(graph.Float16, 1, 4, 4, 8))},
		[]*graph.Type{
			graph.NewType(graph.Float16, 1, 2, 2, 8),
			graph.NewType(graph.Int64, 1, 2, 2, 8),
		})
	if !IsSupported(pool) {
		t.Fatalf("expected MaxPool with i64 argmax to be supported")
	}

	poolBad := f.AddNode(graph.KindMaxPool, "poolbad",
		[]graph.NodeValue{value(f, "in2", graph.NewType(graph.Float16, 1, 4, 4, 8))},
		[]*graph.Type{
			graph.NewType(graph.Float16, 1, 2, 2, 8),
			graph.NewType(graph.Int32, 1, 2, 2, 8),
		})
	if IsSupported(poolBad) {
		t.Fatalf("expected MaxPool with i32 argmax to be rejected")
	}
}

func TestAcceptForExecution_UnaryLookupFilter(t *testing.T) {
	f := graph.NewFunction("unary")

	unary := sparseLengthsSum(f,
		graph.NewType(graph.Float32, 100, 1),
		graph.NewType(graph.Int64, 1000),
		graph.NewType(graph.Int32, 10),
		graph.NewType(graph.Float32, 10, 1))
	if !IsSupported(unary) {
		t.Fatalf("unary lookup should still pass IsSupported")
	}
	if AcceptForExecution(unary, false) {
		t.Fatalf("expected unary lookup to be filtered out")
	}
	if !AcceptForExecution(unary, true) {
		t.Fatalf("expected override to accept unary lookup")
	}

	wide := sparseLengthsSum(f,
		graph.NewType(graph.Float32, 100, 64),
		graph.NewType(graph.Int64, 1000),
		graph.NewType(graph.Int32, 10),
		graph.NewType(graph.Float32, 10, 64))
	if !AcceptForExecution(wide, false) {
		t.Fatalf("expected non-unary lookup to be accepted")
	}
}
