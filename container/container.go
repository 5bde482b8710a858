//go:build linux

// Package container holds the data model the engine operates on: the
// namespace, mount, identity, and command configuration a driver
// program assembles, the lifecycle state that configuration moves
// through, and the pure validation rules that gate the move from
// NotValidated to Validated. Turning a Validated Container into running
// processes is the job of the sibling container/step package; this
// package intentionally has no knowledge of clone(2), setns(2), or
// process lifetimes, so it can be validated and serialized without a
// kernel.
package container

import (
	"github.com/fonsecagoncalo/tincan/container/linux/libcap"
)

// State is a Container's position in the NotValidated -> Validated ->
// Created lifecycle. Transitions are one-way: Validate consumes a
// NotValidated Container and returns a Validated one (or an error); the
// step package's Build is the only thing permitted to treat a Validated
// Container as runnable.
type State int

const (
	NotValidated State = iota
	Validated
	Created
)

func (s State) String() string {
	switch s {
	case NotValidated:
		return "not-validated"
	case Validated:
		return "validated"
	case Created:
		return "created"
	default:
		return "unknown"
	}
}

// Identity is a (uid, gid) pair.
type Identity struct {
	Uid, Gid uint32
}

// UserNamespaceConfig describes a user-namespace step: the id maps to
// install and, optionally, the identity the child should switch to
// once they're in place.
type UserNamespaceConfig struct {
	UidMap   IdMap
	GidMap   IdMap
	SwitchTo *Identity
}

// validate checks the capability preconditions from spec section 4.2: a
// multi-entry map requires the matching CAP_SET{U,G}ID.
func (c UserNamespaceConfig) validate() error {
	if len(c.UidMap.Entries) > 1 && !libcap.HasCapability(libcap.SETUID) {
		return &CapabilityError{Kind: UserIDMap}
	}
	if len(c.GidMap.Entries) > 1 && !libcap.HasCapability(libcap.SETGID) {
		return &CapabilityError{Kind: GroupIDMap}
	}
	return nil
}

// mapsRootInterior reports whether the uid map contains an entry whose
// interior range includes id 0, the precondition a mount namespace
// needs in order to perform unprivileged mounts.
func (c UserNamespaceConfig) mapsRootInterior() bool {
	return c.UidMap.MapsInternal(0)
}

// MountNamespaceConfig describes a mount-namespace step: the operations
// to apply, in order, once the namespace has been unshared.
type MountNamespaceConfig struct {
	Operations []MountOperation
}

// PidNamespaceConfig marks that a new pid namespace should be created.
// Entering a pid namespace only affects processes forked afterward, so
// unlike the mount namespace this step clones rather than unshares.
type PidNamespaceConfig struct{}

// NetNamespaceConfig records that a network namespace was requested.
// The step package does not act on it: no network namespace is created.
type NetNamespaceConfig struct{}

// SwitchUserConfig describes a plain identity-switch step, independent
// of user-namespace creation (e.g. dropping from root to an
// already-mapped uid inside an existing namespace).
type SwitchUserConfig struct {
	Uid, Gid uint32
}

// WorkingDirectoryConfig describes a chdir step.
type WorkingDirectoryConfig struct {
	Path string
}

// Container is the full configuration for one run: a chain of optional
// namespace/identity steps wrapping a command. A nil field means that
// step is absent from the chain.
type Container struct {
	Id string `json:"id"`

	UserNamespace  *UserNamespaceConfig    `json:"userNamespace,omitempty"`
	MountNamespace *MountNamespaceConfig   `json:"mountNamespace,omitempty"`
	PidNamespace   *PidNamespaceConfig     `json:"pidNamespace,omitempty"`
	NetNamespace   *NetNamespaceConfig     `json:"netNamespace,omitempty"`
	SwitchUser     *SwitchUserConfig       `json:"switchUser,omitempty"`
	WorkingDir     *WorkingDirectoryConfig `json:"workingDir,omitempty"`
	Command        CommandConfig           `json:"command"`

	state State
}

// NewContainer returns a NotValidated Container wrapping cmd, with no
// namespaces configured. Callers attach namespaces with the CreateXxx
// builder methods before calling Validate.
func NewContainer(id string, cmd CommandConfig) *Container {
	return &Container{Id: id, Command: cmd, state: NotValidated}
}

// State reports the container's current lifecycle state.
func (c *Container) State() State { return c.state }

// CreateUserNamespace attaches a user-namespace configuration,
// returning an error immediately if its id maps violate the capability
// preconditions (spec section 4.2's "surfaced at construction time"
// rule for capability deficits).
func (c *Container) CreateUserNamespace(cfg UserNamespaceConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	c.UserNamespace = &cfg
	return nil
}

// CreateMountNamespace attaches a mount-namespace configuration.
func (c *Container) CreateMountNamespace(cfg MountNamespaceConfig) {
	c.MountNamespace = &cfg
}

// CreatePidNamespace marks that a new pid namespace should be created.
func (c *Container) CreatePidNamespace() {
	c.PidNamespace = &PidNamespaceConfig{}
}

// CreateNetNamespace records that a network namespace was requested.
// Nothing in the step chain acts on it; no network namespace is created.
func (c *Container) CreateNetNamespace() {
	c.NetNamespace = &NetNamespaceConfig{}
}

// SetSwitchUser attaches a plain identity-switch step.
func (c *Container) SetSwitchUser(uid, gid uint32) {
	c.SwitchUser = &SwitchUserConfig{Uid: uid, Gid: gid}
}

// SetWorkingDirectory attaches a chdir step.
func (c *Container) SetWorkingDirectory(path string) {
	c.WorkingDir = &WorkingDirectoryConfig{Path: path}
}

// Validate runs the pure semantic checks from spec section 4.7 and, on
// success, advances the container from NotValidated to Validated.
// Calling Validate on a Container that is not NotValidated returns a
// StateError.
func (c *Container) Validate() error {
	if c.state != NotValidated {
		return &StateError{Want: NotValidated, Got: c.state}
	}

	if c.UserNamespace != nil && c.UserNamespace.SwitchTo != nil {
		if !c.UserNamespace.UidMap.MapsInternal(c.UserNamespace.SwitchTo.Uid) {
			return &ValidationError{Kind: RunAsUidNotMapped}
		}
		if !c.UserNamespace.GidMap.MapsInternal(c.UserNamespace.SwitchTo.Gid) {
			return &ValidationError{Kind: RunAsGidNotMapped}
		}
	}

	if c.SwitchUser != nil && c.UserNamespace != nil {
		if !c.UserNamespace.UidMap.MapsInternal(c.SwitchUser.Uid) {
			return &ValidationError{Kind: RunAsUidNotMapped}
		}
		if !c.UserNamespace.GidMap.MapsInternal(c.SwitchUser.Gid) {
			return &ValidationError{Kind: RunAsGidNotMapped}
		}
	}

	if c.MountNamespace != nil {
		if c.UserNamespace == nil || !c.UserNamespace.mapsRootInterior() {
			return &ValidationError{Kind: RootNotMapped}
		}
	}

	c.state = Validated
	return nil
}

// MarkCreated advances a Validated container to Created, called by the
// step package once the backing processes for the chain exist.
func (c *Container) MarkCreated() error {
	if c.state != Validated {
		return &StateError{Want: Validated, Got: c.state}
	}
	c.state = Created
	return nil
}

// MarkValidatedForResume marks a container Validated without running
// Validate's checks. It exists for the step package's re-exec
// continuation: a remainder produced by WithoutUserNamespace or
// WithoutPidNamespace has already had the namespace whose presence
// Validate checks for discharged by the parent, so re-running Validate
// in the child would reject a configuration that is in fact fine to
// run.
func (c *Container) MarkValidatedForResume() {
	c.state = Validated
}

// WithoutUserNamespace returns a shallow copy of c with UserNamespace
// cleared, used to build the remainder configuration handed to a
// re-exec'd child after the parent has already entered the user
// namespace on the child's behalf.
func (c *Container) WithoutUserNamespace() *Container {
	cp := *c
	cp.UserNamespace = nil
	return &cp
}

// WithoutPidNamespace is WithoutUserNamespace's counterpart for the pid
// namespace step.
func (c *Container) WithoutPidNamespace() *Container {
	cp := *c
	cp.PidNamespace = nil
	return &cp
}

// WithoutMountNamespace is WithoutUserNamespace's counterpart for the
// mount namespace step, used once its operations have been applied
// in-process.
func (c *Container) WithoutMountNamespace() *Container {
	cp := *c
	cp.MountNamespace = nil
	return &cp
}
