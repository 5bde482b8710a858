//go:build linux

package container

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// RunStatus is the lifecycle of a running instance, as distinct from a
// Container configuration's NotValidated/Validated/Created state. The
// CLI writes a RunRecord as RunCreated once a Container has passed
// Validate, moves it to RunRunning when the step chain reports its init
// pid, and to RunStopped when the chain returns.
type RunStatus int

const (
	RunCreated RunStatus = iota
	RunRunning
	RunStopped
)

func (s RunStatus) String() string {
	switch s {
	case RunCreated:
		return "created"
	case RunRunning:
		return "running"
	case RunStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RunRecord is the on-disk bookkeeping for one instantiated container:
// enough to find and signal its init process again after the driving
// CLI process has exited.
type RunRecord struct {
	Id             string    `json:"id"`
	InitProcessPid int       `json:"initProcessPid"`
	CreatedAt      time.Time `json:"createdAt"`
	Status         RunStatus `json:"status"`
	Config         *Container `json:"config"`
}

// baseStateDir is where run-record state directories are created. It is
// a variable so tests can override it.
var baseStateDir = "/run/tincan"

// StateDir returns the path to the state directory for a container id.
func StateDir(id string) string {
	return filepath.Join(baseStateDir, id)
}

// CreateStateDir ensures the state directory for id exists and returns
// its path.
func CreateStateDir(id string) (string, error) {
	dir := StateDir(id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating state dir: %w", err)
	}
	return dir, nil
}

// SaveState writes r to stateDir/state.json.
func SaveState(stateDir string, r *RunRecord) error {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	f, err := os.Create(filepath.Join(stateDir, "state.json"))
	if err != nil {
		return fmt.Errorf("creating state.json: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", " ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding run record: %w", err)
	}

	return f.Sync()
}

// LoadState reads the run record persisted at stateDir.
func LoadState(stateDir string) (*RunRecord, error) {
	f, err := os.Open(filepath.Join(stateDir, "state.json"))
	if err != nil {
		return nil, fmt.Errorf("opening state.json: %w", err)
	}
	defer f.Close()

	var r RunRecord
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding run record: %w", err)
	}
	return &r, nil
}

// StopRun signals SIGKILL to the init process of a previously started
// container and marks its run record stopped.
func StopRun(id string) error {
	stateDir := StateDir(id)
	r, err := LoadState(stateDir)
	if err != nil {
		return err
	}
	if r.Status != RunRunning {
		return fmt.Errorf("container %s is not running", id)
	}

	proc, err := os.FindProcess(r.InitProcessPid)
	if err != nil {
		return fmt.Errorf("finding process: %w", err)
	}
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("killing process: %w", err)
	}

	r.Status = RunStopped
	return SaveState(stateDir, r)
}
