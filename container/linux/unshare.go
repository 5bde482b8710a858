//go:build linux

package linux

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Unshare enters new instances of the namespaces named by flags for the
// calling thread. flags is a bitwise OR of the CLONE_NEW* constants.
func Unshare(flags int) error {
	if err := unix.Unshare(flags); err != nil {
		return &UnshareError{Flags: flags, Kind: classifyUnshareErrno(err), errno: err}
	}
	return nil
}

func classifyUnshareErrno(err error) UnshareErrorKind {
	switch {
	case errors.Is(err, unix.ENOMEM):
		return UnshareNotEnoughMemory
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EUSERS):
		return UnshareTooManyNamespaces
	case errors.Is(err, unix.EPERM):
		return UnshareMissingPermissions
	default:
		return UnshareUnsupportedFeature
	}
}

// classifyCloneErrno collapses ENOSPC/EUSERS into "too many namespaces" per
// spec section 7 item 3.
func classifyCloneErrno(err error) CloneErrorKind {
	switch {
	case errors.Is(err, unix.ENOMEM):
		return CloneNotEnoughMemory
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EUSERS):
		return CloneTooManyNamespaces
	case errors.Is(err, unix.EPERM):
		return CloneMissingPermissions
	default:
		return CloneInvalidFlags
	}
}
