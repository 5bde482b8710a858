//go:build linux

package linux

import (
	"errors"
	"fmt"
)

// UnshareError reports why unix.Unshare failed for a given flag set.
type UnshareError struct {
	Flags int
	Kind  UnshareErrorKind
	errno error
}

type UnshareErrorKind int

const (
	UnshareUnsupportedFeature UnshareErrorKind = iota
	UnshareNotEnoughMemory
	UnshareTooManyNamespaces
	UnshareMissingPermissions
)

func (e *UnshareError) Error() string {
	switch e.Kind {
	case UnshareNotEnoughMemory:
		return fmt.Sprintf("unshare 0x%x: not enough memory", e.Flags)
	case UnshareTooManyNamespaces:
		return fmt.Sprintf("unshare 0x%x: too many namespaces", e.Flags)
	case UnshareMissingPermissions:
		return fmt.Sprintf("unshare 0x%x: missing permissions", e.Flags)
	default:
		return fmt.Sprintf("unshare 0x%x: unsupported feature", e.Flags)
	}
}

func (e *UnshareError) Unwrap() error { return e.errno }

// CloneError reports why a clone(2)-backed process failed to start.
type CloneError struct {
	Flags int
	Kind  CloneErrorKind
	errno error
}

type CloneErrorKind int

const (
	CloneInvalidFlags CloneErrorKind = iota
	CloneNotEnoughMemory
	CloneTooManyNamespaces
	CloneMissingPermissions
)

func (e *CloneError) Error() string {
	switch e.Kind {
	case CloneNotEnoughMemory:
		return fmt.Sprintf("clone 0x%x: not enough memory", e.Flags)
	case CloneTooManyNamespaces:
		return fmt.Sprintf("clone 0x%x: too many namespaces", e.Flags)
	case CloneMissingPermissions:
		return fmt.Sprintf("clone 0x%x: missing permissions", e.Flags)
	default:
		return fmt.Sprintf("clone 0x%x: invalid flags", e.Flags)
	}
}

func (e *CloneError) Unwrap() error { return e.errno }

// SwitchUserProperty names which identity seteuid/setegid was changing.
type SwitchUserProperty int

const (
	PropertyUID SwitchUserProperty = iota
	PropertyGID
)

func (p SwitchUserProperty) String() string {
	if p == PropertyGID {
		return "gid"
	}
	return "uid"
}

// SwitchUserError reports why seteuid/setegid failed.
type SwitchUserError struct {
	Property SwitchUserProperty
	Kind     SwitchUserErrorKind
	errno    error
}

type SwitchUserErrorKind int

const (
	SwitchUserInvalidID SwitchUserErrorKind = iota
	SwitchUserMissingPermissions
)

func (e *SwitchUserError) Error() string {
	if e.Kind == SwitchUserMissingPermissions {
		return fmt.Sprintf("unable to set effective %s: missing permissions", e.Property)
	}
	return fmt.Sprintf("unable to set effective %s: invalid id", e.Property)
}

func (e *SwitchUserError) Unwrap() error { return e.errno }

// MountingError tags a failed mount-family syscall with the mount
// operation kind that triggered it: "overlay", "bind", "umount" or
// "mount". pivot_root failures are reported as PivotRootError instead.
type MountingError struct {
	Kind  string
	errno error
}

func (e *MountingError) Error() string {
	return fmt.Sprintf("mount operation %q failed: %v", e.Kind, e.errno)
}

func (e *MountingError) Unwrap() error { return e.errno }

func NewMountingError(kind string, err error) *MountingError {
	return &MountingError{Kind: kind, errno: err}
}

// PivotRootError disambiguates pivot_root(2) failures using the runtime
// probes described in spec section 7 item 7. The zero value Cause is
// always set; the sentinel errors below are returned via errors.Is.
type PivotRootError struct {
	Cause error
}

func (e *PivotRootError) Error() string { return fmt.Sprintf("pivot_root: %v", e.Cause) }
func (e *PivotRootError) Unwrap() error { return e.Cause }

var (
	ErrNewRootIsOldRoot          = errors.New("new root is the current root")
	ErrNewRootIsNotMountPoint    = errors.New("new root is not a mount point")
	ErrCurrentRootIsNotMountPoint = errors.New("current root (/) is not a mount point")
	ErrNewRootIsNotDir           = errors.New("new root is not a directory")
	ErrPutOldIsNotDir            = errors.New("put_old is not a directory")
	ErrMissingPermissions        = errors.New("missing permissions for pivot_root")
)
