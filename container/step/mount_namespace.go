//go:build linux

package step

import (
	"fmt"

	"github.com/fonsecagoncalo/tincan/container"
	"github.com/fonsecagoncalo/tincan/container/linux"
)

// MountNamespace unshares the mount namespace, applies Operations in
// order, then invokes Next. Per spec section 4.3 this step never forks
// a process: unshare(CLONE_NEWNS) affects the calling thread's mount
// view directly.
type MountNamespace struct {
	Operations []container.MountOperation
	Next       Step
}

// MountNamespaceError wraps either the unshare(2) failure or the first
// failing mount operation.
type MountNamespaceError struct {
	Cause error
}

func (e *MountNamespaceError) Error() string {
	return fmt.Sprintf("mount namespace step: %v", e.Cause)
}

func (e *MountNamespaceError) Unwrap() error { return e.Cause }

func (s *MountNamespace) Run(ctx *container.Context) (Result, error) {
	if err := linux.Unshare(int(linux.NewNS)); err != nil {
		return Result{}, &MountNamespaceError{Cause: err}
	}
	ctx.EnterMnt()

	if err := container.ApplyMountOperations(s.Operations); err != nil {
		return Result{}, &MountNamespaceError{Cause: err}
	}

	return s.Next.Run(ctx)
}
