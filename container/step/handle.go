//go:build linux

package step

import (
	"os/exec"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ProcessHandle is the parent-side record of a re-exec'd child spawned
// by a namespace-entering step: exclusively owned by whichever step
// created it, consumed by Join. A handle that is dropped without being
// joined sends SIGTERM and reaps the child rather than orphaning it, so
// a step that returns early on an error path must still call Kill. A
// finalizer backstops the case where a caller forgets either: it must
// not be relied upon for prompt cleanup, only to avoid leaking an
// orphaned process if one slips through.
type ProcessHandle struct {
	cmd    *exec.Cmd
	joined bool
}

func newProcessHandle(cmd *exec.Cmd) *ProcessHandle {
	h := &ProcessHandle{cmd: cmd}
	runtime.SetFinalizer(h, (*ProcessHandle).Kill)
	return h
}

// Pid returns the child's pid, valid once the handle has been created.
func (h *ProcessHandle) Pid() int {
	return h.cmd.Process.Pid
}

// Join waits for the child to exit and marks the handle consumed.
func (h *ProcessHandle) Join() error {
	runtime.SetFinalizer(h, nil)
	h.joined = true
	return h.cmd.Wait()
}

// Kill terminates an unjoined child and reaps it, best effort. It is
// safe to call on an already-joined handle, and safe to call as a
// finalizer.
func (h *ProcessHandle) Kill() {
	runtime.SetFinalizer(h, nil)
	if h.joined {
		return
	}
	if h.cmd.Process == nil {
		return
	}
	if err := h.cmd.Process.Signal(unix.SIGTERM); err != nil {
		logrus.WithError(err).WithField("pid", h.Pid()).Debug("failed to signal unjoined child")
	}
	_, _ = h.cmd.Process.Wait()
	h.joined = true
}
