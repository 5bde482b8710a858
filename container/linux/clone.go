//go:build linux

package linux

import (
	"golang.org/x/sys/unix"
)

// NamespaceFlags is a bitset of the CLONE_NEW* namespace flags a step may
// request when spawning a namespace-entering child. The Go runtime cannot
// safely host a CLONE_VM-sharing child (a clone'd thread that shares the
// parent's address space cannot re-enter the Go scheduler or GC), so
// unlike the reference design this adapter only ever clones real child
// processes that immediately re-exec into a fresh address space; CLONE_VM
// is therefore never part of the flag set this package accepts.
type NamespaceFlags int

const (
	NewCGroup NamespaceFlags = unix.CLONE_NEWCGROUP
	NewIPC    NamespaceFlags = unix.CLONE_NEWIPC
	NewNS     NamespaceFlags = unix.CLONE_NEWNS
	NewNet    NamespaceFlags = unix.CLONE_NEWNET
	NewPID    NamespaceFlags = unix.CLONE_NEWPID
	NewTime   NamespaceFlags = unix.CLONE_NEWTIME
	NewUser   NamespaceFlags = unix.CLONE_NEWUSER
	NewUTS    NamespaceFlags = unix.CLONE_NEWUTS

	allNamespaceFlags = NewCGroup | NewIPC | NewNS | NewNet | NewPID | NewTime | NewUser | NewUTS
)

// Validate rejects any bit outside the known CLONE_NEW* set, matching the
// adapter boundary check described in spec section 6.
func (f NamespaceFlags) Validate() error {
	if f&^allNamespaceFlags != 0 {
		return &CloneError{Flags: int(f), Kind: CloneInvalidFlags, errno: unix.EINVAL}
	}
	return nil
}

// AsCloneFlags returns the value to assign to syscall.SysProcAttr.Cloneflags.
func (f NamespaceFlags) AsCloneFlags() uintptr {
	return uintptr(f)
}

// ClassifyStartError maps an exec.Cmd.Start failure that occurred while
// requesting flags into the same taxonomy Unshare uses, so callers can
// treat a failed clone the same way regardless of which syscall path
// produced it.
func ClassifyStartError(flags NamespaceFlags, err error) *CloneError {
	return &CloneError{Flags: int(flags), Kind: classifyCloneErrno(err), errno: err}
}
