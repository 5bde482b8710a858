//go:build linux

package linux

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Mount is a direct, checked wrapper over mount(2). fsType and data may be
// empty. A zero-but-wrong return from the kernel cannot occur through this
// wrapper: unix.Mount already surfaces any nonzero errno as a Go error, so
// the missing "-1 check" bug noted in the design notes has no analog here.
func Mount(source, target, fsType string, flags uintptr, data string) error {
	if err := unix.Mount(source, target, fsType, flags, data); err != nil {
		return NewMountingError("mount", err)
	}
	return nil
}

// BindMount binds src onto target. An empty src binds target onto itself,
// used to turn a directory into a mount point before pivot_root.
func BindMount(src, target string) error {
	if src == "" {
		src = target
	}
	if err := unix.Mount(src, target, "", unix.MS_BIND, ""); err != nil {
		return NewMountingError("bind", err)
	}
	return nil
}

// OverlayMount assembles the kernel's lowerdir/upperdir/workdir option
// string verbatim from the supplied paths. Embedded commas in paths are
// not escaped; this mirrors the documented limitation of the reference
// design rather than silently working around it.
func OverlayMount(lower, upper, work, merged string) error {
	data := "lowerdir=" + lower + ",upperdir=" + upper + ",workdir=" + work
	if err := unix.Mount("overlay", merged, "overlay", 0, data); err != nil {
		return NewMountingError("overlay", err)
	}
	return nil
}

// Unmount detaches path, optionally lazily (MNT_DETACH).
func Unmount(path string, lazy bool) error {
	var flags int
	if lazy {
		flags = unix.MNT_DETACH
	}
	if err := unix.Unmount(path, flags); err != nil {
		return NewMountingError("umount", err)
	}
	return nil
}

// PivotRoot wraps pivot_root(2), mapping its errno to the sentinel errors
// of spec section 7 item 7. The ambiguous cases are disambiguated by
// probing: EINVAL against /proc/self/mountinfo, ENOTDIR with a stat of
// newRoot.
func PivotRoot(newRoot, putOld string) error {
	err := unix.PivotRoot(newRoot, putOld)
	if err == nil {
		return nil
	}
	cause := disambiguatePivotRootErrno(err, newRoot, putOld)
	return &PivotRootError{Cause: cause}
}

func disambiguatePivotRootErrno(err error, newRoot, putOld string) error {
	switch {
	case errors.Is(err, unix.EBUSY):
		return ErrNewRootIsOldRoot
	case errors.Is(err, unix.EINVAL):
		if !isMountPoint(newRoot) {
			return ErrNewRootIsNotMountPoint
		}
		if !isMountPoint("/") {
			return ErrCurrentRootIsNotMountPoint
		}
		return err
	case errors.Is(err, unix.ENOTDIR):
		if !isDir(newRoot) {
			return ErrNewRootIsNotDir
		}
		return ErrPutOldIsNotDir
	case errors.Is(err, unix.EPERM):
		return ErrMissingPermissions
	default:
		return err
	}
}

// isDir reports whether path exists and is a directory. A stat failure is
// treated as "not a directory", so disambiguatePivotRootErrno reports
// ErrNewRootIsNotDir when newRoot cannot be stat'ed.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// isMountPoint reports whether path appears as a mount point in
// /proc/self/mountinfo. Best-effort: a read failure is treated as "not a
// mount point" rather than panicking the caller.
func isMountPoint(path string) bool {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return false
	}
	defer f.Close()

	clean := strings.TrimSuffix(path, "/")
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// mountinfo field 5 (0-indexed 4) is the mount point.
		if len(fields) > 4 && strings.TrimSuffix(fields[4], "/") == clean {
			return true
		}
	}
	return false
}
