package estimate

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"nacc/internal/graph"
)

var errModelDown = errors.New("cost model unavailable")

type fakeModel struct {
	last Query
	cost float64
	err  error
}

func (m *fakeModel) EstimateSparseLengthsOp(q Query) (float64, error) {
	m.last = q
	return m.cost, m.err
}

func value(f *graph.Function, name string, ty *graph.Type) graph.NodeValue {
	return f.CreateSplat(name, ty, 0).Result(0)
}

func sparseSum(f *graph.Function) *graph.Node {
	return f.AddNode(graph.KindSparseLengthsSum, "sls",
		[]graph.NodeValue{
			value(f, "data", graph.NewType(graph.Float32, 100, 16)),
			value(f, "idx", graph.NewType(graph.Int64, 50)),
			value(f, "len", graph.NewType(graph.Int32, 5)),
		},
		[]*graph.Type{graph.NewType(graph.Float32, 5, 16)})
}

func TestEstimate_UnweightedSumQuery(t *testing.T) {
	f := graph.NewFunction("sls")
	n := sparseSum(f)
	m := &fakeModel{cost: 42.5}

	cost, err := EstimateEmbeddingOp(m, n, Params{AverageLength: 12, LengthsMode: LengthsAllOne})
	if err != nil {
		t.Fatalf("EstimateEmbeddingOp: %v", err)
	}
	if cost != 42.5 {
		t.Fatalf("cost = %v, want 42.5", cost)
	}
	q := m.last
	if q.Weights != nil {
		t.Fatalf("unweighted variant must not carry a weights descriptor")
	}
	if q.UseLengthAsOffset {
		t.Fatalf("lengths operand is not an offsets vector here")
	}
	if q.Input.Precision != PrecisionFloat32 || q.Input.Scheme != QuantNone {
		t.Fatalf("unexpected input descriptor %+v", q.Input)
	}
	if q.Indices.Precision != PrecisionInt32 {
		t.Fatalf("64-bit indices should narrow to int32, got %+v", q.Indices)
	}
	if q.AverageLength != 12 || q.LengthsMode != LengthsAllOne {
		t.Fatalf("estimation knobs not forwarded: %+v", q)
	}
}

func TestEstimate_WeightedAndOffsetVariants(t *testing.T) {
	f := graph.NewFunction("variants")
	slws := f.AddNode(graph.KindSparseLengthsWeightedSum, "slws",
		[]graph.NodeValue{
			value(f, "data", graph.NewType(graph.Float32, 100, 16)),
			value(f, "w", graph.NewType(graph.Float32, 50)),
			value(f, "idx", graph.NewType(graph.Int64, 50)),
			value(f, "len", graph.NewType(graph.Int32, 5)),
		},
		[]*graph.Type{graph.NewType(graph.Float32, 5, 16)})
	bag := f.AddNode(graph.KindEmbeddingBag, "bag",
		[]graph.NodeValue{
			value(f, "bdata", graph.NewType(graph.Float32, 100, 16)),
			value(f, "bw", graph.NewType(graph.Float32, 50)),
			value(f, "bidx", graph.NewType(graph.Int64, 50)),
			value(f, "boff", graph.NewType(graph.Int64, 6)),
		},
		[]*graph.Type{graph.NewType(graph.Float32, 5, 16)})

	m := &fakeModel{cost: 1}
	if _, err := EstimateEmbeddingOp(m, slws, Params{}); err != nil {
		t.Fatalf("weighted sum: %v", err)
	}
	if m.last.Weights == nil || m.last.UseLengthAsOffset {
		t.Fatalf("weighted sum query wrong: %+v", m.last)
	}
	if _, err := EstimateEmbeddingOp(m, bag, Params{}); err != nil {
		t.Fatalf("embedding bag: %v", err)
	}
	if m.last.Weights == nil || !m.last.UseLengthAsOffset {
		t.Fatalf("embedding bag query wrong: %+v", m.last)
	}
}

func TestEstimate_DeclinesWithoutError(t *testing.T) {
	f := graph.NewFunction("decline")
	m := &fakeModel{cost: 1}

	// Rejected by the device: rank-2 indices.
	bad := f.AddNode(graph.KindSparseLengthsSum, "bad",
		[]graph.NodeValue{
			value(f, "data", graph.NewType(graph.Float32, 100, 16)),
			value(f, "idx", graph.NewType(graph.Int64, 5, 10)),
			value(f, "len", graph.NewType(graph.Int32, 5)),
		},
		[]*graph.Type{graph.NewType(graph.Float32, 5, 16)})
	if cost, err := EstimateEmbeddingOp(m, bad, Params{}); err != nil || cost != -1 {
		t.Fatalf("rejected op: cost=%v err=%v, want -1 and nil", cost, err)
	}

	// Supported but outside the embedding family.
	ty := graph.NewType(graph.Float32, 4)
	add := f.AddNode(graph.KindAdd, "add",
		[]graph.NodeValue{value(f, "a", ty), value(f, "b", ty)}, []*graph.Type{ty})
	if cost, err := EstimateEmbeddingOp(m, add, Params{}); err != nil || cost != -1 {
		t.Fatalf("non-embedding op: cost=%v err=%v, want -1 and nil", cost, err)
	}
}

func TestEstimate_ModelFailurePropagates(t *testing.T) {
	f := graph.NewFunction("fail")
	n := sparseSum(f)
	m := &fakeModel{err: errModelDown}

	if _, err := EstimateEmbeddingOp(m, n, Params{}); err == nil || !strings.Contains(err.Error(), "estimating sls") {
		t.Fatalf("want wrapped model error, got %v", err)
	}
}

func TestDescForType_UnknownKindIsHardError(t *testing.T) {
	if _, err := descForType(graph.NewType(graph.ElemKind(99), 4)); err == nil {
		t.Fatalf("unknown element kind must not default silently")
	}

	d, err := descForType(graph.NewQuantizedType(graph.UInt4FusedFP16Q, 1, 0, 100, 8))
	if err != nil {
		t.Fatalf("descForType: %v", err)
	}
	if d.Precision != PrecisionUInt8 || d.Scheme != QuantGemmLowpPCQ4BitFused {
		t.Fatalf("4-bit fused row should map to uint8 storage, got %+v", d)
	}
}
