//go:build linux

package integration

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fonsecagoncalo/tincan/container"
)

func buildTincan(t *testing.T) {
	t.Helper()
	build := exec.Command("go", "build", "-o", "tincan")
	build.Dir = ".."
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("failed to build tincan: %v\n%s", err, string(out))
	}
}

func TestUserNamespaceEchoesAsMappedRoot(t *testing.T) {
	if os.Getenv("IN_VM") != "1" {
		t.Skip("integration test only runs inside the VM")
	}
	buildTincan(t)

	runCmd := exec.Command("./tincan", "run", "echo_test",
		"--uid-map", "0:"+strconv.Itoa(os.Getuid())+":1",
		"--gid-map", "0:"+strconv.Itoa(os.Getgid())+":1",
		"--", "id", "-u")
	runCmd.Dir = ".."
	output, err := runCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to run container: %v\n%s", err, string(output))
	}
	if !strings.Contains(string(output), "0") {
		t.Fatalf("expected mapped uid 0 in output, got:\n%s", string(output))
	}
}

func TestStateFileRecordsConfig(t *testing.T) {
	if os.Getenv("IN_VM") != "1" {
		t.Skip("integration test only runs inside the VM")
	}
	buildTincan(t)

	id := "state_test"
	stateDir := filepath.Join("/run/tincan", id)
	_ = os.RemoveAll(stateDir)

	runCmd := exec.Command("./tincan", "run", id, "--", "true")
	runCmd.Dir = ".."
	if out, err := runCmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to run container: %v\n%s", err, string(out))
	}

	stateBytes, err := os.ReadFile(filepath.Join(stateDir, "state.json"))
	if err != nil {
		t.Fatalf("failed to read state.json: %v", err)
	}

	var r container.RunRecord
	if err := json.Unmarshal(stateBytes, &r); err != nil {
		t.Fatalf("failed to decode state.json: %v", err)
	}
	if r.Id != id {
		t.Fatalf("expected id %s, got %s", id, r.Id)
	}
	if r.Status != container.RunStopped {
		t.Fatalf("expected status RunStopped, got %v", r.Status)
	}
}

func TestMountNamespaceWithoutUserNamespaceFailsValidation(t *testing.T) {
	if os.Getenv("IN_VM") != "1" {
		t.Skip("integration test only runs inside the VM")
	}
	buildTincan(t)

	runCmd := exec.Command("./tincan", "run", "bad_mount", "--root", "/tmp/does-not-matter", "--", "true")
	runCmd.Dir = ".."
	out, err := runCmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected validation failure, container ran successfully:\n%s", out)
	}
	if !strings.Contains(string(out), "mount namespace requires a user namespace") {
		t.Fatalf("expected RootNotMapped validation error, got:\n%s", out)
	}
}
