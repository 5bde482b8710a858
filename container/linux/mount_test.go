//go:build linux

package linux

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestIsMountPointMissingFileIsFalse(t *testing.T) {
	// /proc/self/mountinfo always exists on Linux, but a path that can
	// never be a mount point should report false without error.
	if isMountPoint("/this/path/does/not/exist/ever") {
		t.Fatalf("expected non-existent path to not be a mount point")
	}
}

func TestOverlayMountFailureIsTaggedOverlay(t *testing.T) {
	// A real mount(2) against nonexistent paths must fail, and the
	// returned MountingError must carry the "overlay" kind.
	err := OverlayMount("/nonexistent-lower", "/nonexistent-upper", "/nonexistent-work", "/nonexistent-merged")
	if err == nil {
		t.Fatalf("expected overlay mount against nonexistent paths to fail")
	}
	me, ok := err.(*MountingError)
	if !ok {
		t.Fatalf("expected *MountingError, got %T", err)
	}
	if me.Kind != "overlay" {
		t.Fatalf("expected mount kind %q, got %q", "overlay", me.Kind)
	}
}

func TestDisambiguatePivotRootErrnoNewRootNotDir(t *testing.T) {
	dir := t.TempDir()
	notADir := filepath.Join(dir, "file")
	if err := os.WriteFile(notADir, nil, 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	cause := disambiguatePivotRootErrno(unix.ENOTDIR, notADir, dir)
	if !errors.Is(cause, ErrNewRootIsNotDir) {
		t.Fatalf("expected ErrNewRootIsNotDir, got %v", cause)
	}
}

func TestDisambiguatePivotRootErrnoPutOldNotDir(t *testing.T) {
	dir := t.TempDir()
	notADir := filepath.Join(dir, "file")
	if err := os.WriteFile(notADir, nil, 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	cause := disambiguatePivotRootErrno(unix.ENOTDIR, dir, notADir)
	if !errors.Is(cause, ErrPutOldIsNotDir) {
		t.Fatalf("expected ErrPutOldIsNotDir, got %v", cause)
	}
}
