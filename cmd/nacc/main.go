package main

import (
	"errors"
	"fmt"
	"os"

	"nacc/internal/cli"
)

// main is a deterministic boundary: it canonicalizes all CLI inputs into an
// Invocation before any compiler logic is invoked.
func main() {
	result, err := cli.Run(os.Args[1:], os.Stdout)
	if err != nil {
		var invErr *cli.InvocationError
		if errors.As(err, &invErr) {
			fmt.Fprintln(os.Stderr, invErr.Message)
			os.Exit(invErr.ExitCode)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitInternalError)
	}
	os.Exit(result.ExitCode)
}
