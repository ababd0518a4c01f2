package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	icl "nacc/internal/cli"
)

func writeGraph(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write graph: %v", err)
	}
	return path
}

const fcGraph = `{
  "function": "main",
  "nodes": [
    {"name": "in", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [64, 256]}]},
    {"name": "w", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [256, 1024]}]},
    {"name": "b", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [1024]}]},
    {"name": "fc", "kind": "FullyConnected", "inputs": ["in", "w", "b"], "outs": [{"elem": "float32", "dims": [64, 1024]}]},
    {"name": "out", "kind": "Save", "inputs": ["fc"]}
  ]
}`

func run(t *testing.T, args ...string) (icl.Result, string, error) {
	t.Helper()
	var out bytes.Buffer
	res, err := icl.Run(args, &out)
	return res, out.String(), err
}

func TestRun_MissingWorkDirIsInvalidInvocation(t *testing.T) {
	res, _, err := run(t, "--graph", "g.json")
	if err == nil || res.ExitCode != icl.ExitInvalidInvocation {
		t.Fatalf("exit=%d err=%v, want invalid invocation", res.ExitCode, err)
	}
}

func TestRun_CheckReportsPerNodeVerdicts(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "g.json", `{
  "nodes": [
    {"name": "in", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [8, 4]}]},
    {"name": "flip", "kind": "Flip", "inputs": ["in"], "outs": [{"elem": "float32", "dims": [8, 4]}]},
    {"name": "keep", "kind": "Relu", "inputs": ["in"], "outs": [{"elem": "float32", "dims": [8, 4]}]},
    {"name": "out", "kind": "Save", "inputs": ["keep"]}
  ]
}`)

	res, out, err := run(t, "--workdir", dir, "--graph", "g.json", "--mode", "check")
	if err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit=%d err=%v", res.ExitCode, err)
	}
	if !strings.Contains(out, `unsupported Flip "flip"`) {
		t.Fatalf("report should flag the flip node:\n%s", out)
	}
	if !strings.Contains(out, `supported   Relu "keep"`) {
		t.Fatalf("report should accept the relu node:\n%s", out)
	}
}

func TestRun_TransformParallelizesWideLayer(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "g.json", fcGraph)

	res, out, err := run(t, "--workdir", dir, "--graph", "g.json", "--mode", "transform", "--chunks", "2")
	if err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit=%d err=%v", res.ExitCode, err)
	}
	if !strings.Contains(out, "transformed: true") {
		t.Fatalf("expected a rewrite:\n%s", out)
	}
	if !strings.Contains(out, "Concat") {
		t.Fatalf("dump should show the merge node:\n%s", out)
	}
}

func TestRun_CompileReplaysRecordedDirectives(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "g.json", `{
  "nodes": [
    {"name": "in", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [8, 16]}]},
    {"name": "w", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [16, 16]}]},
    {"name": "b", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [16]}]},
    {"name": "fc", "kind": "FullyConnected", "inputs": ["in", "w", "b"], "outs": [{"elem": "float32", "dims": [8, 16]}]},
    {"name": "out", "kind": "Save", "inputs": ["fc"]}
  ],
  "nodeinfo": {
    "fc": {"parallelTransformKind": ["Data"], "numParallelChunks": ["2"]}
  }
}`)

	res, out, err := run(t, "--workdir", dir, "--graph", "g.json", "--mode", "compile")
	if err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit=%d err=%v\n%s", res.ExitCode, err, out)
	}
	if !strings.Contains(out, "Concat") {
		t.Fatalf("dump should show the merge node:\n%s", out)
	}
	if strings.Contains(out, `FullyConnected "fc"`) {
		t.Fatalf("original node should be collected after compile:\n%s", out)
	}
}

func TestRun_MismatchedDeclaredOutputTypeIsGraphFailure(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "g.json", `{
  "nodes": [
    {"name": "in", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [8, 4]}]},
    {"name": "cap", "kind": "Clip", "inputs": ["in"], "min": 0, "max": 1, "outs": [{"elem": "float32", "dims": [4, 8]}]},
    {"name": "out", "kind": "Save", "inputs": ["cap"]}
  ]
}`)

	res, _, err := run(t, "--workdir", dir, "--graph", "g.json", "--mode", "check")
	if err == nil || res.ExitCode != icl.ExitGraphFailure {
		t.Fatalf("exit=%d err=%v, want graph failure", res.ExitCode, err)
	}
	if !strings.Contains(err.Error(), "declared output type") {
		t.Fatalf("error should describe the type disagreement: %v", err)
	}
}

func TestRun_MatchingDeclaredOutputTypeIsAccepted(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "g.json", `{
  "nodes": [
    {"name": "in", "kind": "Splat", "value": 0, "outs": [{"elem": "float32", "dims": [8, 4]}]},
    {"name": "cap", "kind": "Clip", "inputs": ["in"], "min": 0, "max": 1, "outs": [{"elem": "float32", "dims": [8, 4]}]},
    {"name": "out", "kind": "Save", "inputs": ["cap"]}
  ]
}`)

	res, _, err := run(t, "--workdir", dir, "--graph", "g.json", "--mode", "check")
	if err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit=%d err=%v", res.ExitCode, err)
	}
}

func TestRun_MalformedGraphIsGraphFailure(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, dir, "g.json", `{"nodes": [{"name": "x", "kind": "Relu", "surprise": true}]}`)

	res, _, err := run(t, "--workdir", dir, "--graph", "g.json", "--mode", "check")
	if err == nil || res.ExitCode != icl.ExitGraphFailure {
		t.Fatalf("exit=%d err=%v, want graph failure", res.ExitCode, err)
	}
}
