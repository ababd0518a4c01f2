package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"nacc/internal/backend"
	"nacc/internal/graph"
	"nacc/internal/nodeinfo"
)

// Result is the outcome of one CLI run.
type Result struct {
	ExitCode int
}

// Run is a high-level CLI entrypoint suitable for black-box tests. It
// accepts the argument slice (excluding argv[0]), writes the report to out,
// and returns the semantic exit code plus any error.
func Run(args []string, out io.Writer) (Result, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	return Execute(inv, out)
}

// Execute runs one canonical invocation against the graph it names.
func Execute(inv Invocation, out io.Writer) (Result, error) {
	if inv.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	f, fi, err := LoadGraphFromFile(inv.GraphPath)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}

	opts := backend.Options{
		DeviceLowering:      inv.DeviceLowering,
		LowerAllBatchMatMul: inv.LowerAllBatchMatMul,
		AcceptUnaryLookup:   inv.AcceptUnaryLookup,
		DisableTransforms:   inv.DisableTransforms,
		NumParallelChunks:   inv.NumParallelChunks,
	}
	if fi != nil {
		opts.NodeInfo = nodeinfo.Map{f: fi}
	}
	b := backend.New(nil, nil)

	switch inv.Mode {
	case RunModeCheck:
		reportSupport(b, f, opts, out)
		return Result{ExitCode: ExitSuccess}, nil

	case RunModeTransform:
		changed, err := b.TransformPostLowering(f, opts)
		if err != nil {
			err = graphFailuref("transform: %v", err)
			return Result{ExitCode: ExitCode(err)}, err
		}
		fmt.Fprintf(out, "transformed: %v\n", changed)
		dumpFunction(f, out)
		return Result{ExitCode: ExitSuccess}, nil

	case RunModeCompile:
		if err := b.Compile(f, opts); err != nil {
			err = graphFailuref("compile: %v", err)
			return Result{ExitCode: ExitCode(err)}, err
		}
		dumpFunction(f, out)
		return Result{ExitCode: ExitSuccess}, nil
	}
	// ParseInvocation only emits the modes above.
	err = invalidInvocationf("invalid mode %q", inv.Mode)
	return Result{ExitCode: ExitCode(err)}, err
}

// reportSupport prints one advisory line per node. A rejection is not a
// failure; the surrounding compiler decides what falls back to another
// backend.
func reportSupport(b *backend.Backend, f *graph.Function, opts backend.Options, out io.Writer) {
	for _, n := range f.Nodes() {
		verdict := "supported"
		switch {
		case !b.IsSupported(n):
			verdict = "unsupported"
		case !b.AcceptForExecution(n, opts):
			verdict = "declined"
		}
		fmt.Fprintf(out, "%-11s %s\n", verdict, n)
	}
}

func dumpFunction(f *graph.Function, out io.Writer) {
	for _, n := range f.Nodes() {
		fmt.Fprintln(out, n)
	}
}
