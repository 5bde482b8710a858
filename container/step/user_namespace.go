//go:build linux

package step

import (
	"github.com/fonsecagoncalo/tincan/container"
	"github.com/fonsecagoncalo/tincan/container/linux"
)

// UserNamespace creates a new user namespace, installs the configured
// id maps, optionally switches the child to a mapped identity, then
// continues running Remainder inside it. Unlike the reference design's
// CLONE_VM-sharing child, this spawns a genuine re-exec'd process (see
// reexec.go); the rendezvous protocol from spec section 4.2 still
// applies, just across a pair of inherited eventfd channels instead of
// a shared address space.
type UserNamespace struct {
	Config    container.UserNamespaceConfig
	Remainder *container.Container
}

func (s *UserNamespace) Run(ctx *container.Context) (Result, error) {
	rendezvous := &rendezvousConfig{
		uidMap:   s.Config.UidMap,
		gidMap:   s.Config.GidMap,
		switchTo: s.Config.SwitchTo,
	}

	return reexecRemainder(ctx, s.Remainder, reexecOptions{
		cloneFlags: linux.NewUser.AsCloneFlags(),
		rendezvous: rendezvous,
	}, ctx.EnterUser)
}
