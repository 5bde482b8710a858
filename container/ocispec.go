//go:build linux

package container

import (
	"encoding/json"
	"fmt"
	"os"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// LoadOCISpec reads an OCI runtime bundle's config.json.
func LoadOCISpec(configPath string) (*specs.Spec, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("opening OCI config: %w", err)
	}
	defer f.Close()

	var spec specs.Spec
	if err := json.NewDecoder(f).Decode(&spec); err != nil {
		return nil, fmt.Errorf("decoding OCI config: %w", err)
	}
	return &spec, nil
}

// FromOCISpec bridges an OCI runtime-spec bundle config into the
// engine's own Container configuration, so existing bundle-producing
// tooling can drive the step chain without needing to know about
// id-map entries or mount-operation variants directly.
func FromOCISpec(id string, spec *specs.Spec) (*Container, error) {
	if spec.Process == nil {
		return nil, fmt.Errorf("OCI spec has no process section")
	}

	cmd := CommandConfig{
		Program: spec.Process.Args[0],
		Args:    spec.Process.Args[1:],
		Env:     spec.Process.Env,
		Stdin:   spec.Process.Terminal,
		Stdout:  true,
		Stderr:  true,
	}
	c := NewContainer(id, cmd)

	if spec.Process.Cwd != "" {
		c.SetWorkingDirectory(spec.Process.Cwd)
	}

	if spec.Linux == nil {
		return c, nil
	}

	hasUserNS := false
	hasNetNS := false
	hasPidNS := false
	for _, ns := range spec.Linux.Namespaces {
		switch ns.Type {
		case specs.UserNamespace:
			hasUserNS = true
		case specs.NetworkNamespace:
			hasNetNS = true
		case specs.PIDNamespace:
			hasPidNS = true
		}
	}

	if hasUserNS {
		uidMap := IdMap{Kind: UserIDMap}
		for _, m := range spec.Linux.UIDMappings {
			uidMap.Entries = append(uidMap.Entries, IdMapEntry{
				Internal: m.ContainerID, External: m.HostID, Length: m.Size,
			})
		}
		gidMap := IdMap{Kind: GroupIDMap}
		for _, m := range spec.Linux.GIDMappings {
			gidMap.Entries = append(gidMap.Entries, IdMapEntry{
				Internal: m.ContainerID, External: m.HostID, Length: m.Size,
			})
		}
		cfg := UserNamespaceConfig{UidMap: uidMap, GidMap: gidMap}
		if uidMap.MapsInternal(0) {
			cfg.SwitchTo = &Identity{Uid: 0, Gid: 0}
		}
		if err := c.CreateUserNamespace(cfg); err != nil {
			return nil, fmt.Errorf("translating OCI id maps: %w", err)
		}
	}

	if hasPidNS {
		c.CreatePidNamespace()
	}
	if hasNetNS {
		c.CreateNetNamespace()
	}

	if spec.Root != nil && spec.Root.Path != "" {
		ops := SwitchRoot(spec.Root.Path, ".pivot_root_old")
		c.CreateMountNamespace(MountNamespaceConfig{Operations: ops})
	}

	if spec.Process.User.UID != 0 || spec.Process.User.GID != 0 {
		c.SetSwitchUser(spec.Process.User.UID, spec.Process.User.GID)
	}

	return c, nil
}
