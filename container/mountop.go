//go:build linux

package container

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fonsecagoncalo/tincan/container/linux"
)

// MountOperation is one atomic filesystem change applied in order by a
// mount-namespace step.
type MountOperation interface {
	apply() error
}

// OverlayMount mounts an overlay filesystem combining lower and upper
// directories at merged, using work as overlayfs's required scratch
// directory.
type OverlayMount struct {
	Lower, Upper, Work, Merged string
}

func (m OverlayMount) apply() error {
	return linux.OverlayMount(m.Lower, m.Upper, m.Work, m.Merged)
}

// PivotRoot swaps the process's root filesystem to NewRoot, moving the
// old root to NewRoot/PutOld. When AutoUnmount is set the old root is
// lazily unmounted immediately after the switch; when
// CreatePutOldIfMissing is set and the put_old directory does not
// already exist, it is created before the pivot and removed afterward.
type PivotRoot struct {
	NewRoot, PutOld       string
	AutoUnmount           bool
	CreatePutOldIfMissing bool
}

func (m PivotRoot) apply() error {
	absPutOld := filepath.Join(m.NewRoot, m.PutOld)

	created := false
	if m.CreatePutOldIfMissing {
		if _, err := os.Stat(absPutOld); os.IsNotExist(err) {
			if err := os.MkdirAll(absPutOld, 0o700); err != nil {
				return fmt.Errorf("creating put_old %s: %w", absPutOld, err)
			}
			created = true
		}
	}

	if err := linux.PivotRoot(m.NewRoot, absPutOld); err != nil {
		return err
	}

	if m.AutoUnmount {
		if err := linux.Unmount("/"+m.PutOld, true); err != nil {
			return err
		}
	}

	if created {
		if err := os.Remove("/" + m.PutOld); err != nil {
			return fmt.Errorf("removing put_old after unmount: %w", err)
		}
	}

	return nil
}

// BindMount bind-mounts Src onto Target. An empty Src binds Target to
// itself, the idiom used to make a directory a mount point before
// pivot_root.
type BindMount struct {
	Src, Target string
}

func (m BindMount) apply() error {
	return linux.BindMount(m.Src, m.Target)
}

// Unmount detaches the filesystem mounted at Path, lazily if Lazy is set.
type Unmount struct {
	Path string
	Lazy bool
}

func (m Unmount) apply() error {
	return linux.Unmount(m.Path, m.Lazy)
}

// Mount is a direct passthrough to mount(2), for operations not covered
// by the other variants.
type Mount struct {
	Source, Target, FsType string
	Flags                  uintptr
	Data                   string
}

func (m Mount) apply() error {
	return linux.Mount(m.Source, m.Target, m.FsType, m.Flags, m.Data)
}

// SwitchRoot builds the operation list that makes newRoot the process's
// root filesystem: bind-mount it onto itself so pivot_root's
// "new_root must be a mount point" precondition holds, then pivot.
func SwitchRoot(newRoot, putOld string) []MountOperation {
	return []MountOperation{
		BindMount{Src: newRoot, Target: newRoot},
		PivotRoot{NewRoot: newRoot, PutOld: putOld, AutoUnmount: true, CreatePutOldIfMissing: true},
	}
}

// SwitchRootWithOverlay is SwitchRoot preceded by an OverlayMount that
// produces newRoot from lower/upper/work.
func SwitchRootWithOverlay(lower, upper, work, newRoot, putOld string) []MountOperation {
	ops := []MountOperation{OverlayMount{Lower: lower, Upper: upper, Work: work, Merged: newRoot}}
	return append(ops, SwitchRoot(newRoot, putOld)...)
}

// ApplyMountOperations runs ops in order inside the current mount
// namespace, stopping at the first failure.
func ApplyMountOperations(ops []MountOperation) error {
	for i, op := range ops {
		if err := op.apply(); err != nil {
			return fmt.Errorf("mount operation %d (%T): %w", i, op, err)
		}
	}
	return nil
}

// mountOperationEnvelope is the wire form of a MountOperation: its
// variant name plus the variant's own fields, needed because
// MountNamespaceConfig crosses the re-exec process boundary as JSON and
// encoding/json cannot marshal an interface value on its own.
type mountOperationEnvelope struct {
	Type         string       `json:"type"`
	OverlayMount *OverlayMount `json:"overlayMount,omitempty"`
	PivotRoot    *PivotRoot    `json:"pivotRoot,omitempty"`
	BindMount    *BindMount    `json:"bindMount,omitempty"`
	Unmount      *Unmount      `json:"unmount,omitempty"`
	Mount        *Mount        `json:"mount,omitempty"`
}

// MarshalJSON implements json.Marshaler for MountNamespaceConfig so its
// polymorphic Operations slice survives the trip across a re-exec
// boundary.
func (c MountNamespaceConfig) MarshalJSON() ([]byte, error) {
	envelopes := make([]mountOperationEnvelope, len(c.Operations))
	for i, op := range c.Operations {
		switch v := op.(type) {
		case OverlayMount:
			envelopes[i] = mountOperationEnvelope{Type: "overlay", OverlayMount: &v}
		case PivotRoot:
			envelopes[i] = mountOperationEnvelope{Type: "pivotRoot", PivotRoot: &v}
		case BindMount:
			envelopes[i] = mountOperationEnvelope{Type: "bind", BindMount: &v}
		case Unmount:
			envelopes[i] = mountOperationEnvelope{Type: "unmount", Unmount: &v}
		case Mount:
			envelopes[i] = mountOperationEnvelope{Type: "mount", Mount: &v}
		default:
			return nil, fmt.Errorf("unknown mount operation type %T", op)
		}
	}
	return json.Marshal(struct {
		Operations []mountOperationEnvelope `json:"operations"`
	}{Operations: envelopes})
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (c *MountNamespaceConfig) UnmarshalJSON(data []byte) error {
	var wire struct {
		Operations []mountOperationEnvelope `json:"operations"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ops := make([]MountOperation, len(wire.Operations))
	for i, e := range wire.Operations {
		switch e.Type {
		case "overlay":
			ops[i] = *e.OverlayMount
		case "pivotRoot":
			ops[i] = *e.PivotRoot
		case "bind":
			ops[i] = *e.BindMount
		case "unmount":
			ops[i] = *e.Unmount
		case "mount":
			ops[i] = *e.Mount
		default:
			return fmt.Errorf("unknown mount operation type %q", e.Type)
		}
	}
	c.Operations = ops
	return nil
}
