package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nacc/internal/graph"
	"nacc/internal/nodeinfo"
)

type typeSpec struct {
	Elem   string  `json:"elem"`
	Dims   []int   `json:"dims"`
	Scale  float64 `json:"scale,omitempty"`
	Offset int32   `json:"offset,omitempty"`
}

type nodeSpec struct {
	Name   string     `json:"name"`
	Kind   string     `json:"kind"`
	Inputs []string   `json:"inputs,omitempty"`
	Outs   []typeSpec `json:"outs,omitempty"`

	// Kind-specific attributes.
	Axis    *int     `json:"axis,omitempty"`
	Start   []int    `json:"start,omitempty"`
	Shuffle []int    `json:"shuffle,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

type graphFile struct {
	Function string                         `json:"function"`
	Nodes    []nodeSpec                     `json:"nodes"`
	NodeInfo map[string]map[string][]string `json:"nodeinfo,omitempty"`
}

func graphFailuref(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitGraphFailure, Message: fmt.Sprintf(format, args...)}
}

// LoadGraphFromFile reads and parses the graph definition at path, returning
// the function plus its per-node annotations (nil when the file carries
// none).
//
// Current supported format: JSON.
//
// The loader is deterministic:
//   - Disallows unknown fields (to avoid silent divergence).
//   - Does not consult environment variables.
func LoadGraphFromFile(path string) (*graph.Function, nodeinfo.FunctionInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, graphFailuref("read graph: %v", err)
	}
	var gf graphFile
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&gf); err != nil {
		return nil, nil, graphFailuref("parse graph json: %v", err)
	}
	// Ensure there is no trailing garbage (including a second JSON value).
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return nil, nil, graphFailuref("parse graph json: trailing data")
		}
		return nil, nil, graphFailuref("parse graph json: %v", err)
	}
	if len(gf.Nodes) == 0 {
		return nil, nil, graphFailuref("parse graph json: no nodes")
	}
	if gf.Function == "" {
		gf.Function = "main"
	}

	f := graph.NewFunction(gf.Function)
	for _, ns := range gf.Nodes {
		if err := addNode(f, ns); err != nil {
			return nil, nil, graphFailuref("node %q: %v", ns.Name, err)
		}
	}

	var fi nodeinfo.FunctionInfo
	if len(gf.NodeInfo) > 0 {
		fi, err = nodeinfo.Resolve(f, gf.NodeInfo)
		if err != nil {
			return nil, nil, graphFailuref("%v", err)
		}
	}
	return f, fi, nil
}

// resolveInput parses an operand reference of the form "name" or "name:res".
func resolveInput(f *graph.Function, ref string) (graph.NodeValue, error) {
	name, res := ref, 0
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		v, err := strconv.Atoi(ref[i+1:])
		if err != nil {
			return graph.NodeValue{}, fmt.Errorf("bad operand reference %q", ref)
		}
		name, res = ref[:i], v
	}
	n, ok := f.NodeByName(name)
	if !ok {
		return graph.NodeValue{}, fmt.Errorf("operand %q not defined before use", name)
	}
	if res < 0 || res >= n.NumResults() {
		return graph.NodeValue{}, fmt.Errorf("operand %q has no result %d", name, res)
	}
	return n.Result(res), nil
}

func parseType(ts typeSpec) (*graph.Type, error) {
	elem, ok := graph.ElemKindByName(ts.Elem)
	if !ok {
		return nil, fmt.Errorf("unknown element kind %q", ts.Elem)
	}
	if elem.IsQuantized() {
		return graph.NewQuantizedType(elem, ts.Scale, ts.Offset, ts.Dims...), nil
	}
	return graph.NewType(elem, ts.Dims...), nil
}

// checkDeclaredOuts verifies an optional declared result-type list against
// what the constructor actually produced.
func checkDeclaredOuts(n *graph.Node, outs []*graph.Type) error {
	if len(outs) == 0 {
		return nil
	}
	if len(outs) != n.NumResults() {
		return fmt.Errorf("declared %d output types, %s produces %d", len(outs), n.Kind(), n.NumResults())
	}
	for i, ty := range outs {
		if !n.ResultType(i).Equal(ty) {
			return fmt.Errorf("declared output type %s, %s produces %s", ty, n.Kind(), n.ResultType(i))
		}
	}
	return nil
}

func addNode(f *graph.Function, ns nodeSpec) error {
	kind, ok := graph.KindByName(ns.Kind)
	if !ok {
		return fmt.Errorf("unknown kind %q", ns.Kind)
	}
	if ns.Name == "" {
		return fmt.Errorf("missing name")
	}
	// Later operand references are by name, so silent renaming of a
	// duplicate would corrupt the wiring.
	if _, exists := f.NodeByName(ns.Name); exists {
		return fmt.Errorf("duplicate node name")
	}

	ins := make([]graph.NodeValue, len(ns.Inputs))
	for i, ref := range ns.Inputs {
		v, err := resolveInput(f, ref)
		if err != nil {
			return err
		}
		ins[i] = v
	}
	outs := make([]*graph.Type, len(ns.Outs))
	for i, ts := range ns.Outs {
		t, err := parseType(ts)
		if err != nil {
			return err
		}
		outs[i] = t
	}

	// Attribute-carrying kinds go through the validated constructors. Their
	// result types are derived from the inputs and attributes, so a declared
	// "outs" list is optional for them, but one that disagrees with what the
	// constructor produced is rejected rather than silently dropped.
	switch kind {
	case graph.KindSplat:
		if len(outs) != 1 || ns.Value == nil {
			return fmt.Errorf("splat needs one output type and a value")
		}
		f.CreateSplat(ns.Name, outs[0], *ns.Value)
		return nil
	case graph.KindClip:
		if len(ins) != 1 || ns.Min == nil || ns.Max == nil {
			return fmt.Errorf("clip needs one input and min/max bounds")
		}
		n := f.CreateClip(ns.Name, ins[0], *ns.Min, *ns.Max)
		return checkDeclaredOuts(n, outs)
	case graph.KindConcat:
		if ns.Axis == nil {
			return fmt.Errorf("concat needs an axis")
		}
		n, err := f.CreateConcat(ns.Name, ins, *ns.Axis)
		if err != nil {
			return err
		}
		return checkDeclaredOuts(n, outs)
	case graph.KindSlice:
		if len(ins) != 1 || len(outs) != 1 {
			return fmt.Errorf("slice needs one input and one output type")
		}
		n, err := f.CreateSlice(ns.Name, ins[0], ns.Start, outs[0].Dims)
		if err != nil {
			return err
		}
		return checkDeclaredOuts(n, outs)
	case graph.KindTranspose:
		if len(ins) != 1 {
			return fmt.Errorf("transpose needs one input")
		}
		n, err := f.CreateTranspose(ns.Name, ins[0], ns.Shuffle)
		if err != nil {
			return err
		}
		return checkDeclaredOuts(n, outs)
	case graph.KindSave:
		if len(ins) != 1 {
			return fmt.Errorf("save needs one input")
		}
		n := f.CreateSave(ns.Name, ins[0])
		return checkDeclaredOuts(n, outs)
	case graph.KindSelect:
		if len(ins) != 3 {
			return fmt.Errorf("select needs cond/lhs/rhs inputs")
		}
		n := f.CreateSelect(ns.Name, ins[0], ins[1], ins[2])
		return checkDeclaredOuts(n, outs)
	default:
		if len(outs) == 0 {
			return fmt.Errorf("missing output types")
		}
		f.AddNode(kind, ns.Name, ins, outs)
		return nil
	}
}
