//go:build linux

package container

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestSaveLoadState(t *testing.T) {
	dir := t.TempDir()

	r := &RunRecord{
		Id:             "test123",
		InitProcessPid: 42,
		CreatedAt:      time.Now().UTC().Round(time.Second),
		Status:         RunRunning,
		Config:         NewContainer("test123", CommandConfig{Program: "/bin/sh"}),
	}

	if err := SaveState(dir, r); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Fatalf("state.json not created: %v", err)
	}

	loaded, err := LoadState(dir)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	if loaded.Id != r.Id || loaded.InitProcessPid != r.InitProcessPid ||
		!loaded.CreatedAt.Equal(r.CreatedAt) || loaded.Status != r.Status {
		t.Fatalf("loaded state does not match saved state")
	}
}

func TestSaveStateCreatesDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "a", "b")

	r := &RunRecord{Id: "dirtest", CreatedAt: time.Now(), Status: RunCreated}

	if err := SaveState(dir, r); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Fatalf("state.json not created: %v", err)
	}
}

func TestLoadOCISpec(t *testing.T) {
	dir := t.TempDir()
	specJSON := `{"ociVersion":"1.0.2","root":{"path":"/tmp/rootfs"},"process":{"args":["/bin/sh"]}}`
	cfg := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfg, []byte(specJSON), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	spec, err := LoadOCISpec(cfg)
	if err != nil {
		t.Fatalf("LoadOCISpec failed: %v", err)
	}

	if spec.Root.Path != "/tmp/rootfs" {
		t.Fatalf("unexpected root path %s", spec.Root.Path)
	}
}

func TestStopRun(t *testing.T) {
	baseStateDir = t.TempDir()
	id := "stoptest"

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start dummy process: %v", err)
	}

	stateDir, err := CreateStateDir(id)
	if err != nil {
		t.Fatalf("failed to create state dir: %v", err)
	}
	r := &RunRecord{Id: id, InitProcessPid: cmd.Process.Pid, CreatedAt: time.Now(), Status: RunRunning}
	if err := SaveState(stateDir, r); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	if err := StopRun(id); err != nil {
		t.Fatalf("StopRun failed: %v", err)
	}

	_ = cmd.Wait()

	if err := cmd.Process.Signal(syscall.Signal(0)); err == nil {
		t.Fatalf("process still running after StopRun")
	}

	loaded, err := LoadState(stateDir)
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if loaded.Status != RunStopped {
		t.Fatalf("expected status RunStopped, got %v", loaded.Status)
	}
}

func TestValidateRejectsMountNamespaceWithoutRootMap(t *testing.T) {
	c := NewContainer("t", CommandConfig{Program: "/bin/sh"})
	if err := c.CreateUserNamespace(UserNamespaceConfig{
		UidMap: IdMap{Kind: UserIDMap, Entries: []IdMapEntry{{Internal: 1000, External: 1000, Length: 1}}},
		GidMap: IdMap{Kind: GroupIDMap, Entries: []IdMapEntry{{Internal: 1000, External: 1000, Length: 1}}},
	}); err != nil {
		t.Fatalf("CreateUserNamespace failed: %v", err)
	}
	c.CreateMountNamespace(MountNamespaceConfig{})

	err := c.Validate()
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	if ve.Kind != RootNotMapped {
		t.Fatalf("expected RootNotMapped, got %v", ve.Kind)
	}
}

func TestValidateAcceptsMappedRunAs(t *testing.T) {
	c := NewContainer("t", CommandConfig{Program: "/bin/sh"})
	if err := c.CreateUserNamespace(UserNamespaceConfig{
		UidMap: IdMap{Kind: UserIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
		GidMap: IdMap{Kind: GroupIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
	}); err != nil {
		t.Fatalf("CreateUserNamespace failed: %v", err)
	}
	c.SetSwitchUser(0, 0)

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c.State() != Validated {
		t.Fatalf("expected Validated, got %v", c.State())
	}
}

func TestValidateRejectsUnmappedUserNamespaceSwitchTo(t *testing.T) {
	c := NewContainer("t", CommandConfig{Program: "/bin/sh"})
	if err := c.CreateUserNamespace(UserNamespaceConfig{
		UidMap:   IdMap{Kind: UserIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
		GidMap:   IdMap{Kind: GroupIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
		SwitchTo: &Identity{Uid: 9999, Gid: 0},
	}); err != nil {
		t.Fatalf("CreateUserNamespace failed: %v", err)
	}

	err := c.Validate()
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	if ve.Kind != RunAsUidNotMapped {
		t.Fatalf("expected RunAsUidNotMapped, got %v", ve.Kind)
	}
}

func TestValidateAcceptsMappedUserNamespaceSwitchTo(t *testing.T) {
	c := NewContainer("t", CommandConfig{Program: "/bin/sh"})
	if err := c.CreateUserNamespace(UserNamespaceConfig{
		UidMap:   IdMap{Kind: UserIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
		GidMap:   IdMap{Kind: GroupIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}},
		SwitchTo: &Identity{Uid: 0, Gid: 0},
	}); err != nil {
		t.Fatalf("CreateUserNamespace failed: %v", err)
	}

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateTwiceFails(t *testing.T) {
	c := NewContainer("t", CommandConfig{Program: "/bin/sh"})
	if err := c.Validate(); err != nil {
		t.Fatalf("first Validate failed: %v", err)
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected second Validate to fail with a StateError")
	}
}
