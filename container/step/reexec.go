//go:build linux

package step

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/fonsecagoncalo/tincan/container"
	"github.com/fonsecagoncalo/tincan/container/linux"
	"github.com/sirupsen/logrus"
)

// ResumeMarkerArg is the argv[1] a re-exec'd continuation is started
// with; main.go checks for it before falling through to the normal CLI
// dispatch, mirroring the teacher's own init-stage re-exec convention
// generalized from two fixed stages to an arbitrary remainder chain.
const ResumeMarkerArg = "__tincan_resume__"

const (
	envResumeFD = "TINCAN_RESUME_FD"
	envResultFD = "TINCAN_RESULT_FD"
	envCtpFD    = "TINCAN_CTP_FD"
	envPtcFD    = "TINCAN_PTC_FD"
	envSwitchTo = "TINCAN_SWITCH_TO"
)

// resumePayload is the JSON message written to the child's inherited
// resume pipe: the remainder of the original container configuration,
// i.e. everything after the namespace the parent just entered on the
// child's behalf.
type resumePayload struct {
	Container *container.Container `json:"container"`
}

// resumeResult is the JSON message the child writes back once its step
// chain has finished, carrying the leaf command's exit code (never an
// error on its own) or a description of a step-chain failure.
type resumeResult struct {
	ExitCode int    `json:"exitCode"`
	ErrMsg   string `json:"errMsg,omitempty"`
}

// reexecOptions configures the one piece of re-exec behavior that
// differs between the user-namespace and pid-namespace steps: whether
// the child must wait for an id-map rendezvous before proceeding.
type reexecOptions struct {
	cloneFlags uintptr
	rendezvous *rendezvousConfig
}

type rendezvousConfig struct {
	uidMap   container.IdMap
	gidMap   container.IdMap
	switchTo *container.Identity
}

// reexecRemainder re-execs the current binary as a genuine child
// process entering the namespace(s) named by opts.cloneFlags, hands it
// remainder to continue running, and returns the leaf command's result
// once the child finishes. This is the Go-idiomatic replacement for the
// CLONE_VM-sharing child the original design relies on: the Go runtime
// cannot safely host such a child, so every namespace that requires
// clone(2) gets a real process instead, continuing the remaining step
// chain through a fresh invocation of Build rather than a shared
// address space.
func reexecRemainder(ctx *container.Context, remainder *container.Container, opts reexecOptions, enter func(pid int) error) (Result, error) {
	resumeR, resumeW, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("creating resume pipe: %w", err)
	}
	defer resumeR.Close()

	resultR, resultW, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("creating result pipe: %w", err)
	}
	defer resultW.Close()

	cmd := exec.Command("/proc/self/exe", ResumeMarkerArg)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{resumeR, resultW}
	env := append(os.Environ(),
		fmt.Sprintf("%s=%d", envResumeFD, 3),
		fmt.Sprintf("%s=%d", envResultFD, 4),
	)

	var ctp, ptc *linux.EventChannel
	if opts.rendezvous != nil {
		ctp, err = linux.NewEventChannel()
		if err != nil {
			return Result{}, fmt.Errorf("creating child->parent event channel: %w", err)
		}
		defer ctp.Close()
		ptc, err = linux.NewEventChannel()
		if err != nil {
			return Result{}, fmt.Errorf("creating parent->child event channel: %w", err)
		}
		defer ptc.Close()

		cmd.ExtraFiles = append(cmd.ExtraFiles, ctp.File(), ptc.File())
		env = append(env,
			fmt.Sprintf("%s=%d", envCtpFD, 5),
			fmt.Sprintf("%s=%d", envPtcFD, 6),
		)
		if opts.rendezvous.switchTo != nil {
			env = append(env, fmt.Sprintf("%s=%d,%d", envSwitchTo, opts.rendezvous.switchTo.Uid, opts.rendezvous.switchTo.Gid))
		}
	}
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: opts.cloneFlags}

	if err := cmd.Start(); err != nil {
		return Result{}, linux.ClassifyStartError(linux.NamespaceFlags(opts.cloneFlags), err)
	}
	handle := newProcessHandle(cmd)
	ctx.ReportStart(handle.Pid())

	// Close the ends only the child should hold.
	_ = resumeR.Close()
	_ = resultW.Close()

	if enter != nil {
		if err := enter(handle.Pid()); err != nil {
			handle.Kill()
			return Result{}, fmt.Errorf("recording entered namespace: %w", err)
		}
	}

	if opts.rendezvous != nil {
		if err := runIDMapRendezvous(handle.Pid(), ctp, ptc, *opts.rendezvous); err != nil {
			handle.Kill()
			return Result{}, err
		}
	}

	if err := json.NewEncoder(resumeW).Encode(resumePayload{Container: remainder}); err != nil {
		handle.Kill()
		return Result{}, fmt.Errorf("sending remainder to child: %w", err)
	}
	_ = resumeW.Close()

	var result resumeResult
	decodeErr := json.NewDecoder(resultR).Decode(&result)

	if err := handle.Join(); err != nil {
		logrus.WithError(err).Debug("re-exec'd child exited with non-nil wait error")
	}

	if decodeErr != nil {
		return Result{}, fmt.Errorf("reading child result: %w", decodeErr)
	}
	if result.ErrMsg != "" {
		return Result{}, fmt.Errorf("child step chain: %s", result.ErrMsg)
	}
	return Result{ExitCode: result.ExitCode}, nil
}

// runIDMapRendezvous implements the protocol from spec section 4.2:
// wait for the child's readiness signal, write its uid/gid maps
// (writing setgroups=deny before an unprivileged gid_map write), then
// release it.
func runIDMapRendezvous(pid int, ctp, ptc *linux.EventChannel, cfg rendezvousConfig) error {
	if _, err := ctp.Receive(); err != nil {
		return fmt.Errorf("waiting for child readiness: %w", err)
	}

	if err := linux.WriteSetgroupsDeny(pid); err != nil {
		return fmt.Errorf("writing setgroups=deny: %w", err)
	}
	if err := cfg.uidMap.Write(pid); err != nil {
		return err
	}
	if err := cfg.gidMap.Write(pid); err != nil {
		return err
	}

	if err := ptc.Send(1); err != nil {
		return fmt.Errorf("releasing child after id maps installed: %w", err)
	}
	return nil
}

// Resume is main.go's entry point when os.Args[1] == ResumeMarkerArg.
// It performs the child side of any pending rendezvous, decodes the
// remainder container from its inherited pipe, runs its step chain,
// and reports the outcome to the parent before exiting.
func Resume() {
	logrus.Debug("resuming as re-exec'd step-chain child")

	if fdStr := os.Getenv(envCtpFD); fdStr != "" {
		ctpFD, _ := strconv.Atoi(fdStr)
		ptcFD, _ := strconv.Atoi(os.Getenv(envPtcFD))
		ctp := linux.FromFD(uintptr(ctpFD), "ctp")
		ptc := linux.FromFD(uintptr(ptcFD), "ptc")

		if err := ctp.Send(1); err != nil {
			fatalResume(fmt.Errorf("signaling readiness: %w", err))
		}
		if _, err := ptc.Receive(); err != nil {
			fatalResume(fmt.Errorf("waiting for id maps: %w", err))
		}

		if sw := os.Getenv(envSwitchTo); sw != "" {
			var uid, gid int
			if _, err := fmt.Sscanf(sw, "%d,%d", &uid, &gid); err == nil {
				if err := linux.SwitchUser(uid, gid); err != nil {
					fatalResume(fmt.Errorf("switching to mapped identity: %w", err))
				}
			}
		}
	}

	resumeFD, _ := strconv.Atoi(os.Getenv(envResumeFD))
	in := os.NewFile(uintptr(resumeFD), "resume-in")
	defer in.Close()

	var payload resumePayload
	if err := json.NewDecoder(in).Decode(&payload); err != nil {
		fatalResume(fmt.Errorf("decoding remainder container: %w", err))
	}

	c := payload.Container
	c.MarkValidatedForResume()

	ctx := container.NewContext()
	defer ctx.Close()

	res, err := Build(c).Run(ctx)

	result := resumeResult{ExitCode: res.ExitCode}
	if err != nil {
		result.ErrMsg = err.Error()
	}
	writeResumeResult(result)
	os.Exit(0)
}

func writeResumeResult(result resumeResult) {
	resultFD, _ := strconv.Atoi(os.Getenv(envResultFD))
	out := os.NewFile(uintptr(resultFD), "resume-out")
	defer out.Close()
	if err := json.NewEncoder(out).Encode(result); err != nil {
		logrus.WithError(err).Error("failed to report result to parent")
	}
}

func fatalResume(err error) {
	writeResumeResult(resumeResult{ErrMsg: err.Error()})
	os.Exit(0)
}
