//go:build linux

package linux

import (
	"errors"

	"golang.org/x/sys/unix"
)

// SwitchUser calls seteuid then setegid, in that order, matching the
// reference design. Leaving the process half-switched on gid failure is
// the documented behavior: the caller owns deciding whether to retry or
// abort the step chain.
func SwitchUser(uid, gid int) error {
	if err := unix.Seteuid(uid); err != nil {
		return &SwitchUserError{Property: PropertyUID, Kind: classifySwitchUserErrno(err), errno: err}
	}
	if err := unix.Setegid(gid); err != nil {
		return &SwitchUserError{Property: PropertyGID, Kind: classifySwitchUserErrno(err), errno: err}
	}
	return nil
}

func classifySwitchUserErrno(err error) SwitchUserErrorKind {
	switch {
	case errors.Is(err, unix.EPERM):
		return SwitchUserMissingPermissions
	default:
		return SwitchUserInvalidID
	}
}

// Getuid and Getgid expose the calling process's real ids, used to build
// the "map self" id-map convenience constructors.
func Getuid() int { return unix.Getuid() }
func Getgid() int { return unix.Getgid() }
