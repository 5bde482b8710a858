//go:build linux

package step

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/fonsecagoncalo/tincan/container"
	"github.com/sirupsen/logrus"
)

// RunCommand is the leaf step: it spawns the configured program, waits
// for it, and reports its exit status. It never has a successor.
type RunCommand struct {
	Config container.CommandConfig
}

// CommandError wraps a failure to even start the configured program,
// distinct from the program running and exiting nonzero, which is
// reported through Result and is not an error.
type CommandError struct {
	Program string
	Cause   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("running %s: %v", e.Program, e.Cause)
}

func (e *CommandError) Unwrap() error { return e.Cause }

func (s *RunCommand) Run(ctx *container.Context) (Result, error) {
	cmd := exec.Command(s.Config.Program, s.Config.Args...)
	cmd.Env = s.Config.Env

	if s.Config.Stdin {
		cmd.Stdin = os.Stdin
	}
	if s.Config.Stdout {
		cmd.Stdout = os.Stdout
	}
	if s.Config.Stderr {
		cmd.Stderr = os.Stderr
	}

	logrus.WithField("program", s.Config.Program).Debug("running leaf command")

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return Result{ExitCode: exitErr.ExitCode()}, nil
	}

	return Result{}, &CommandError{Program: s.Config.Program, Cause: err}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
