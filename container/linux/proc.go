//go:build linux

package linux

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// IDMapKind distinguishes which /proc/<pid> map file a write targets.
type IDMapKind int

const (
	KindUser IDMapKind = iota
	KindGroup
)

func (k IDMapKind) file() string {
	if k == KindGroup {
		return "gid_map"
	}
	return "uid_map"
}

// IDMapIOErrorStage names which step of writing an id map failed, per
// spec section 7 item 5.
type IDMapIOErrorStage int

const (
	StagePrepareProcess IDMapIOErrorStage = iota
	StageCreateFile
	StageWriteFile
)

// IDMapError reports a failure while installing a uid_map or gid_map.
type IDMapError struct {
	Kind  IDMapKind
	Stage IDMapIOErrorStage
	Cause error
}

func (e *IDMapError) Error() string {
	var kind string
	if e.Kind == KindGroup {
		kind = "group"
	} else {
		kind = "user"
	}
	return fmt.Sprintf("error while mapping %s id: %v", kind, e.Cause)
}

func (e *IDMapError) Unwrap() error { return e.Cause }

// WriteSetgroupsDeny writes "deny" to /proc/<pid>/setgroups. Per
// user_namespaces(7) this must happen before an unprivileged gid_map
// write, and the reference design performs it unconditionally ahead of
// every gid_map write, not only when the caller lacks CAP_SETGID.
func WriteSetgroupsDeny(pid int) error {
	path := filepath.Join("/proc", itoa(pid), "setgroups")
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return &IDMapError{Kind: KindGroup, Stage: StagePrepareProcess, Cause: err}
	}
	defer f.Close()
	if _, err := f.Write([]byte("deny")); err != nil {
		return &IDMapError{Kind: KindGroup, Stage: StagePrepareProcess, Cause: err}
	}
	return nil
}

// WriteIDMap writes a complete id map for pid in one shot. The kernel
// accepts exactly one write per map per process; a second call on the
// same pid returns an error, matching the single-shot invariant from
// spec section 3.
func WriteIDMap(pid int, kind IDMapKind, entries []IDMapEntry) error {
	path := filepath.Join("/proc", itoa(pid), kind.file())
	f, err := os.Create(path)
	if err != nil {
		return &IDMapError{Kind: kind, Stage: StageCreateFile, Cause: err}
	}
	defer f.Close()

	buf := make([]byte, 0, 32*len(entries))
	for _, e := range entries {
		buf = append(buf, fmt.Sprintf("%d %d %d\n", e.Internal, e.External, e.Length)...)
	}
	if _, err := f.Write(buf); err != nil {
		return &IDMapError{Kind: kind, Stage: StageWriteFile, Cause: err}
	}
	return nil
}

// IDMapEntry mirrors container.IdMapEntry without importing the container
// package, which would create an import cycle since container imports
// this adapter.
type IDMapEntry struct {
	Internal uint32
	External uint32
	Length   uint32
}

// PidfdOpen wraps the pidfd_open(2) syscall, returning an *os.File the
// caller owns.
func PidfdOpen(pid int) (*os.File, error) {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return nil, fmt.Errorf("pidfd_open(%d): %w", pid, err)
	}
	return os.NewFile(uintptr(fd), fmt.Sprintf("pidfd:%d", pid)), nil
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}
