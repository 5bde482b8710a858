//go:build linux

package step

import (
	"github.com/fonsecagoncalo/tincan/container"
	"github.com/fonsecagoncalo/tincan/container/linux"
)

// PidNamespace clones a new process into a fresh pid namespace and
// continues Remainder there. Unlike MountNamespace, entering a new pid
// namespace only affects processes forked afterward, so this step must
// spawn a child rather than merely unshare, per spec section 4.4.
type PidNamespace struct {
	Remainder *container.Container
}

func (s *PidNamespace) Run(ctx *container.Context) (Result, error) {
	return reexecRemainder(ctx, s.Remainder, reexecOptions{
		cloneFlags: linux.NewPID.AsCloneFlags(),
	}, ctx.EnterPid)
}
