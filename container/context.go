//go:build linux

package container

import (
	"os"

	"github.com/fonsecagoncalo/tincan/container/linux"
)

// Context tracks which namespaces the running process has actually
// entered, as opposed to which ones were requested, and the pidfd of
// the namespace-holding process once one exists. It is owned by a
// single process: each re-exec'd child gets its own Context rather than
// sharing one across the step chain, since namespace membership is
// process-local kernel state.
type Context struct {
	CGroup bool
	IPC    bool
	Mnt    bool
	Net    bool
	Pid    bool
	Time   bool
	User   bool
	UTS    bool

	// PidFD references the process that holds the namespaces entered so
	// far, so a later step (or the parent, after a re-exec) can join
	// them with setns(2) instead of re-deriving a pid.
	PidFD *os.File

	// OnStart, if set, is invoked exactly once with the pid of the
	// process that will run the remainder of the step chain: either the
	// current process, if no namespace step re-execs, or the first
	// re-exec'd child otherwise. It is cleared after firing so a second,
	// nested re-exec does not overwrite the report with a descendant's
	// pid.
	OnStart func(pid int)
}

// ReportStart fires OnStart with pid, if set, and clears it.
func (c *Context) ReportStart(pid int) {
	if c.OnStart == nil {
		return
	}
	c.OnStart(pid)
	c.OnStart = nil
}

// NewContext returns a Context with nothing entered yet.
func NewContext() *Context {
	return &Context{}
}

func (c *Context) refreshPidFD(pid int) error {
	if c.PidFD != nil {
		c.PidFD.Close()
		c.PidFD = nil
	}
	fd, err := linux.PidfdOpen(pid)
	if err != nil {
		return err
	}
	c.PidFD = fd
	return nil
}

// EnterUser marks the user namespace entered for pid, refreshing PidFD.
func (c *Context) EnterUser(pid int) error {
	if err := c.refreshPidFD(pid); err != nil {
		return err
	}
	c.User = true
	return nil
}

// EnterPid marks the pid namespace entered for pid, refreshing PidFD.
func (c *Context) EnterPid(pid int) error {
	if err := c.refreshPidFD(pid); err != nil {
		return err
	}
	c.Pid = true
	return nil
}

// EnterMnt marks the mount namespace entered. Unsharing the mount
// namespace does not spawn a new process, so there is no pid to refresh
// PidFD against.
func (c *Context) EnterMnt() {
	c.Mnt = true
}

// EnterNet marks the network namespace entered, in the same
// process-local fashion as EnterMnt.
func (c *Context) EnterNet() {
	c.Net = true
}

// Close releases the pidfd held by the context, if any.
func (c *Context) Close() error {
	if c.PidFD == nil {
		return nil
	}
	err := c.PidFD.Close()
	c.PidFD = nil
	return err
}
