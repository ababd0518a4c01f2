package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidNode marks structurally invalid node construction.
	ErrInvalidNode = errors.New("invalid node")
	// ErrNodeInUse marks an erase attempt on a node that still has users.
	ErrNodeInUse = errors.New("node still in use")
)

// BuildError wraps deterministic graph construction failures.
type BuildError struct {
	Kind error
	Msg  string
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *BuildError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &BuildError{Kind: ErrInvalidNode, Msg: fmt.Sprintf(format, args...)}
}
