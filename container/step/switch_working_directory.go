//go:build linux

package step

import (
	"fmt"
	"os"

	"github.com/fonsecagoncalo/tincan/container"
)

// SwitchWorkingDirectory calls chdir, then invokes Next.
type SwitchWorkingDirectory struct {
	Path string
	Next Step
}

type ChdirError struct {
	Path  string
	Cause error
}

func (e *ChdirError) Error() string {
	return fmt.Sprintf("chdir %s: %v", e.Path, e.Cause)
}

func (e *ChdirError) Unwrap() error { return e.Cause }

func (s *SwitchWorkingDirectory) Run(ctx *container.Context) (Result, error) {
	if err := os.Chdir(s.Path); err != nil {
		return Result{}, &ChdirError{Path: s.Path, Cause: err}
	}
	return s.Next.Run(ctx)
}
