package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const (
	ExitSuccess           = 0
	ExitGraphFailure      = 1
	ExitInvalidInvocation = 2
	ExitInternalError     = 3
)

// RunMode selects what the tool does with the loaded graph.
type RunMode string

const (
	// RunModeCheck reports per-node device support and stops.
	RunModeCheck RunMode = "check"
	// RunModeTransform runs the post-lowering transform pipeline.
	RunModeTransform RunMode = "transform"
	// RunModeCompile replays recorded parallelization directives and
	// cleans up the result.
	RunModeCompile RunMode = "compile"
)

// Invocation is the fully canonicalized, deterministic description of a run.
//
// All paths are normalized and relative paths are resolved against WorkDir,
// which is required and must be absolute; nothing depends on the process
// current working directory.
type Invocation struct {
	GraphPath string
	WorkDir   string
	Mode      RunMode

	NumParallelChunks   int
	DeviceLowering      bool
	LowerAllBatchMatMul bool
	AcceptUnaryLookup   bool
	DisableTransforms   bool
	Verbose             bool

	OriginalGraph string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses CLI flags into a canonical Invocation.
//
// Determinism goals:
//   - Does not read env vars.
//   - Does not read/assume the process CWD.
//   - Requires WorkDir to be explicit and absolute.
func ParseInvocation(args []string) (Invocation, error) {
	fs := flag.NewFlagSet("nacc", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var workDir string
	var graphPath string
	var mode string
	inv := Invocation{}

	fs.StringVar(&workDir, "workdir", "", "Absolute working directory. Required.")
	fs.StringVar(&graphPath, "graph", "", "Graph source path. Required.")
	fs.StringVar(&mode, "mode", string(RunModeCheck), "Run mode: check|transform|compile")
	fs.IntVar(&inv.NumParallelChunks, "chunks", 0, "Heuristic replica count; below 2 disables heuristic parallelization.")
	fs.BoolVar(&inv.DeviceLowering, "device-lowering", false, "Use device-mode lowering decisions.")
	fs.BoolVar(&inv.LowerAllBatchMatMul, "lower-all-bmm", false, "Force all batched matmuls through generic lowering.")
	fs.BoolVar(&inv.AcceptUnaryLookup, "accept-unary-lookup", false, "Admit sparse lookups over unary data.")
	fs.BoolVar(&inv.DisableTransforms, "disable-transforms", false, "Skip the post-lowering transform pipeline.")
	fs.BoolVar(&inv.Verbose, "v", false, "Verbose diagnostics.")

	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}

	workDir = filepath.Clean(workDir)
	if workDir == "" || workDir == "." {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}
	if graphPath == "" {
		return Invocation{}, invalidInvocationf("--graph is required")
	}

	parsedMode, err := parseRunMode(mode)
	if err != nil {
		return Invocation{}, err
	}
	resolvedGraph, err := resolveUnderWorkDir(workDir, graphPath)
	if err != nil {
		return Invocation{}, err
	}

	inv.WorkDir = workDir
	inv.GraphPath = resolvedGraph
	inv.Mode = parsedMode
	inv.OriginalGraph = graphPath
	return inv, nil
}

func parseRunMode(raw string) (RunMode, error) {
	n := strings.ToLower(strings.TrimSpace(raw))
	switch RunMode(n) {
	case RunModeCheck, RunModeTransform, RunModeCompile:
		return RunMode(n), nil
	case "":
		return "", invalidInvocationf("--mode is required")
	default:
		return "", invalidInvocationf("invalid --mode %q (expected check|transform|compile)", raw)
	}
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	// WorkDir is required to be absolute, so Join does not consult the
	// process CWD.
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts a semantic exit code from an error. Unknown errors map
// to ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
