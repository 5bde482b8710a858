//go:build linux

package step

import (
	"fmt"

	"github.com/fonsecagoncalo/tincan/container"
	"github.com/fonsecagoncalo/tincan/container/linux"
)

// SwitchUser calls seteuid/setegid, then invokes Next. No concurrency
// concerns, per spec section 4.5.
type SwitchUser struct {
	Uid, Gid uint32
	Next     Step
}

// SwitchUserStepError wraps a failed identity switch with whichever
// inner error the chain below Next produced, mirroring the step
// chain's nested error convention.
type SwitchUserStepError struct {
	Cause error
}

func (e *SwitchUserStepError) Error() string {
	return fmt.Sprintf("switch user step: %v", e.Cause)
}

func (e *SwitchUserStepError) Unwrap() error { return e.Cause }

func (s *SwitchUser) Run(ctx *container.Context) (Result, error) {
	if err := linux.SwitchUser(int(s.Uid), int(s.Gid)); err != nil {
		return Result{}, &SwitchUserStepError{Cause: err}
	}
	return s.Next.Run(ctx)
}
