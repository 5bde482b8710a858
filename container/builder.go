//go:build linux

package container

// ContainerBuilder is the fluent construction surface described in
// spec section 6: chain the With* calls that apply, then call Build to
// get a NotValidated Container ready for Validate.
type ContainerBuilder struct {
	c   *Container
	err error
}

// NewContainerBuilder starts building a container wrapping cmd.
func NewContainerBuilder(id string, cmd CommandConfig) *ContainerBuilder {
	return &ContainerBuilder{c: NewContainer(id, cmd)}
}

// WithUserNamespace attaches a user-namespace configuration. A
// capability-deficit error from the underlying CreateUserNamespace call
// is latched and returned by Build.
func (b *ContainerBuilder) WithUserNamespace(cfg UserNamespaceConfig) *ContainerBuilder {
	if b.err != nil {
		return b
	}
	if err := b.c.CreateUserNamespace(cfg); err != nil {
		b.err = err
	}
	return b
}

// WithMountNamespace attaches a mount-namespace configuration.
func (b *ContainerBuilder) WithMountNamespace(cfg MountNamespaceConfig) *ContainerBuilder {
	if b.err != nil {
		return b
	}
	b.c.CreateMountNamespace(cfg)
	return b
}

// WithPidNamespace marks that a new pid namespace should be created.
func (b *ContainerBuilder) WithPidNamespace() *ContainerBuilder {
	if b.err != nil {
		return b
	}
	b.c.CreatePidNamespace()
	return b
}

// WithNetNamespace records that a network namespace was requested; see
// Container.CreateNetNamespace (no network namespace is created).
func (b *ContainerBuilder) WithNetNamespace() *ContainerBuilder {
	if b.err != nil {
		return b
	}
	b.c.CreateNetNamespace()
	return b
}

// WithSwitchUser attaches a plain identity-switch step.
func (b *ContainerBuilder) WithSwitchUser(uid, gid uint32) *ContainerBuilder {
	if b.err != nil {
		return b
	}
	b.c.SetSwitchUser(uid, gid)
	return b
}

// WithWorkingDirectory attaches a chdir step.
func (b *ContainerBuilder) WithWorkingDirectory(path string) *ContainerBuilder {
	if b.err != nil {
		return b
	}
	b.c.SetWorkingDirectory(path)
	return b
}

// Build returns the assembled NotValidated Container, or the first
// error latched by a With* call.
func (b *ContainerBuilder) Build() (*Container, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.c, nil
}
