//go:build linux

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fonsecagoncalo/tincan/container"
	"github.com/fonsecagoncalo/tincan/container/linux"
	"github.com/fonsecagoncalo/tincan/container/step"
	"github.com/fonsecagoncalo/tincan/container/subid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	uidMapFlags    []string
	gidMapFlags    []string
	switchUserFlag string
	newRoot        string
	putOld         string
	overlaySpec    string
	workDir        string
	pidNS          bool
	netNS          bool
	checkSubid     bool
	detach         bool
)

var runCmd = &cobra.Command{
	Use:   "run <container-id> -- <program> [args...]",
	Short: "Run a command inside a new set of namespaces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		commandArgs := args[1:]

		var c *container.Container
		var err error
		if configPath != "" {
			c, err = buildFromOCIConfig(id, configPath)
		} else {
			c, err = buildFromFlags(id, commandArgs)
		}
		if err != nil {
			return err
		}

		if checkSubid && c.UserNamespace != nil {
			if err := checkSubidContainment(*c.UserNamespace); err != nil {
				return err
			}
		}

		if err := c.Validate(); err != nil {
			return fmt.Errorf("validating container %s: %w", id, err)
		}

		stateDir, err := container.CreateStateDir(id)
		if err != nil {
			return err
		}
		record := &container.RunRecord{Id: id, Status: container.RunCreated, Config: c}
		if err := container.SaveState(stateDir, record); err != nil {
			return err
		}

		logrus.WithField("id", id).Info("running step chain")
		onStart := func(pid int) {
			record.InitProcessPid = pid
			record.Status = container.RunRunning
			if saveErr := container.SaveState(stateDir, record); saveErr != nil {
				logrus.WithError(saveErr).Warn("failed to persist running state")
			}
		}
		res, err := step.Run(c, onStart)
		record.Status = container.RunStopped
		if saveErr := container.SaveState(stateDir, record); saveErr != nil {
			logrus.WithError(saveErr).Warn("failed to persist final state")
		}
		if err != nil {
			return fmt.Errorf("running container %s: %w", id, err)
		}

		os.Exit(res.ExitCode)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to an OCI runtime config.json (alternative to the flags below)")
	runCmd.Flags().StringArrayVar(&uidMapFlags, "uid-map", nil, "uid map entry internal:external:length, repeatable")
	runCmd.Flags().StringArrayVar(&gidMapFlags, "gid-map", nil, "gid map entry internal:external:length, repeatable")
	runCmd.Flags().StringVar(&switchUserFlag, "switch-user", "", "uid:gid to switch to before running the command")
	runCmd.Flags().StringVar(&newRoot, "root", "", "new root filesystem path, pivoted into via a mount namespace")
	runCmd.Flags().StringVar(&putOld, "put-old", ".pivot_root_old", "relative put_old directory name under --root")
	runCmd.Flags().StringVar(&overlaySpec, "overlay", "", "lower:upper:work overlay sources merged onto --root before pivoting")
	runCmd.Flags().StringVar(&workDir, "workdir", "", "working directory inside the container")
	runCmd.Flags().BoolVar(&pidNS, "pid", false, "create a new pid namespace")
	runCmd.Flags().BoolVar(&netNS, "net", false, "record a network namespace request in the configuration; no network namespace is created")
	runCmd.Flags().BoolVar(&checkSubid, "check-subid", false, "validate uid/gid maps against /etc/subuid and /etc/subgid before running")
	runCmd.Flags().BoolVarP(&detach, "detach", "d", false, "reserved for future detached runs; currently always runs in the foreground")
}

func buildFromOCIConfig(id, path string) (*container.Container, error) {
	spec, err := container.LoadOCISpec(path)
	if err != nil {
		return nil, err
	}
	return container.FromOCISpec(id, spec)
}

func buildFromFlags(id string, commandArgs []string) (*container.Container, error) {
	if len(commandArgs) == 0 {
		return nil, fmt.Errorf("no command given; pass it after --")
	}

	cmdCfg := container.CommandConfig{
		Program: commandArgs[0],
		Args:    commandArgs[1:],
		Env:     os.Environ(),
		Stdin:   true,
		Stdout:  true,
		Stderr:  true,
	}
	c := container.NewContainer(id, cmdCfg)

	if len(uidMapFlags) > 0 || len(gidMapFlags) > 0 {
		uidMap, err := parseIdMapFlags(container.UserIDMap, uidMapFlags)
		if err != nil {
			return nil, err
		}
		gidMap, err := parseIdMapFlags(container.GroupIDMap, gidMapFlags)
		if err != nil {
			return nil, err
		}
		cfg := container.UserNamespaceConfig{UidMap: uidMap, GidMap: gidMap}
		if uidMap.MapsInternal(0) {
			cfg.SwitchTo = &container.Identity{Uid: 0, Gid: 0}
		}
		if err := c.CreateUserNamespace(cfg); err != nil {
			return nil, err
		}
	}

	if newRoot != "" {
		var ops []container.MountOperation
		if overlaySpec != "" {
			parts := strings.SplitN(overlaySpec, ":", 3)
			if len(parts) != 3 {
				return nil, fmt.Errorf("invalid --overlay %q, want lower:upper:work", overlaySpec)
			}
			ops = container.SwitchRootWithOverlay(parts[0], parts[1], parts[2], newRoot, putOld)
		} else {
			ops = container.SwitchRoot(newRoot, putOld)
		}
		c.CreateMountNamespace(container.MountNamespaceConfig{Operations: ops})
	}

	if pidNS {
		c.CreatePidNamespace()
	}
	if netNS {
		c.CreateNetNamespace()
	}
	if workDir != "" {
		c.SetWorkingDirectory(workDir)
	}
	if switchUserFlag != "" {
		uid, gid, err := parseUidGid(switchUserFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --switch-user: %w", err)
		}
		c.SetSwitchUser(uid, gid)
	}

	return c, nil
}

func parseIdMapFlags(kind container.IdMapKind, flags []string) (container.IdMap, error) {
	m := container.IdMap{Kind: kind}
	for _, f := range flags {
		parts := strings.Split(f, ":")
		if len(parts) != 3 {
			return container.IdMap{}, fmt.Errorf("invalid id map entry %q, want internal:external:length", f)
		}
		internal, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return container.IdMap{}, fmt.Errorf("invalid internal id in %q: %w", f, err)
		}
		external, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return container.IdMap{}, fmt.Errorf("invalid external id in %q: %w", f, err)
		}
		length, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return container.IdMap{}, fmt.Errorf("invalid length in %q: %w", f, err)
		}
		entry := container.IdMapEntry{Internal: uint32(internal), External: uint32(external), Length: uint32(length)}
		if entry.Overflows() {
			return container.IdMap{}, fmt.Errorf("id map entry %q overflows a 32-bit id space", f)
		}
		m.Entries = append(m.Entries, entry)
	}
	if len(m.Entries) == 0 {
		m = container.NewWithCurrentUserAsRoot(kind)
	}
	return m, nil
}

func parseUidGid(s string) (uint32, uint32, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want uid:gid, got %q", s)
	}
	uid, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	gid, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return uint32(uid), uint32(gid), nil
}

// checkSubidContainment validates the requested id maps against
// /etc/subuid and /etc/subgid for the invoking user, per spec section 6.
func checkSubidContainment(cfg container.UserNamespaceConfig) error {
	callerUID := linux.Getuid()

	if err := checkOneSubidFile("/etc/subuid", cfg.UidMap, callerUID); err != nil {
		return err
	}
	return checkOneSubidFile("/etc/subgid", cfg.GidMap, callerUID)
}

func checkOneSubidFile(path string, m container.IdMap, callerUID int) error {
	ranges, err := subid.ParseFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	allowed := subid.ForOwner(ranges, strconv.Itoa(callerUID), callerUID)

	entries := make([]subid.Entry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = subid.Entry{Internal: e.Internal, Length: e.Length}
	}
	if !subid.IsValid(entries, allowed) {
		return fmt.Errorf("requested id map is not contained in any %s range owned by uid %d", path, callerUID)
	}
	return nil
}
