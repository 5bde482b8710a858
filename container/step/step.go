//go:build linux

// Package step turns a Validated container.Container into a runnable
// chain of steps and executes it. Each step owns its successor; running
// the outermost step runs the whole chain.
package step

import (
	"fmt"
	"os"

	"github.com/fonsecagoncalo/tincan/container"
	"github.com/sirupsen/logrus"
)

// Step is one link of the chain: it may perform setup, invoke its
// successor at most once, then perform teardown. A leaf step (such as
// RunCommand) has no successor.
type Step interface {
	Run(ctx *container.Context) (Result, error)
}

// Result is what a leaf step's command produced, propagated back up
// through every wrapping step unchanged.
type Result struct {
	ExitCode int
}

// Build compiles a Validated container.Container into its runnable step
// chain. It panics if c is not Validated, matching the design invariant
// that only Validated configurations may be instantiated: callers are
// expected to call Validate and check its error before reaching Build.
//
// A user- or pid-namespace step requires a real clone(2), which the Go
// runtime can only do safely by re-exec'ing a fresh process (see
// reexec.go); Build therefore stops at the first such step and hands it
// the remainder of the configuration to hand to its re-exec'd child,
// rather than compiling the whole chain into one process-local tree.
func Build(c *container.Container) Step {
	if c.State() != container.Validated {
		panic(fmt.Sprintf("step.Build: container is %s, want validated", c.State()))
	}

	if c.UserNamespace != nil {
		return &UserNamespace{Config: *c.UserNamespace, Remainder: c.WithoutUserNamespace()}
	}

	return buildWithinProcess(c)
}

// buildWithinProcess compiles the portion of the chain that runs
// entirely in the current process: mount-namespace unsharing (which
// only affects the calling thread, not a child), a pid-namespace
// delegation if one remains, and the leaf identity/chdir/command steps.
func buildWithinProcess(c *container.Container) Step {
	if c.MountNamespace != nil {
		logrus.WithField("container", c.Id).Debug("applying mount namespace in process")
		return &MountNamespace{Operations: c.MountNamespace.Operations, Next: buildWithinProcess(c.WithoutMountNamespace())}
	}

	if c.PidNamespace != nil {
		return &PidNamespace{Remainder: c.WithoutPidNamespace()}
	}

	var s Step = &RunCommand{Config: c.Command}

	if c.WorkingDir != nil {
		s = &SwitchWorkingDirectory{Path: c.WorkingDir.Path, Next: s}
	}

	if c.SwitchUser != nil {
		s = &SwitchUser{Uid: c.SwitchUser.Uid, Gid: c.SwitchUser.Gid, Next: s}
	}

	return s
}

// Run builds and runs the chain for c in one call, the entry point
// exposed to driver programs. It returns a StateError if c has not
// already passed Validate.
//
// onStart, if non-nil, is called exactly once with the pid of the
// process that will run the remainder of the chain, as soon as that pid
// is known: immediately, with the caller's own pid, if no namespace
// step re-execs; otherwise with the first re-exec'd child's pid. A
// driver program uses this to record the init process pid before Run
// blocks until the chain finishes.
func Run(c *container.Container, onStart func(pid int)) (Result, error) {
	if c.State() != container.Validated {
		return Result{}, &container.StateError{Want: container.Validated, Got: c.State()}
	}
	chain := Build(c)
	ctx := container.NewContext()
	defer ctx.Close()
	ctx.OnStart = onStart

	if c.UserNamespace == nil && c.PidNamespace == nil {
		ctx.ReportStart(os.Getpid())
	}

	res, err := chain.Run(ctx)
	if err != nil {
		return res, err
	}
	if markErr := c.MarkCreated(); markErr != nil {
		logrus.WithError(markErr).Warn("failed to mark container created after successful run")
	}
	return res, nil
}
