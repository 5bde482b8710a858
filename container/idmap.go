//go:build linux

package container

import (
	"fmt"
	"math"

	"github.com/fonsecagoncalo/tincan/container/linux"
)

// IdMapKind selects which of a process's two id spaces an IdMap targets.
type IdMapKind int

const (
	UserIDMap IdMapKind = iota
	GroupIDMap
)

func (k IdMapKind) toLinux() linux.IDMapKind {
	if k == GroupIDMap {
		return linux.KindGroup
	}
	return linux.KindUser
}

// IdMapEntry is one "internal external length" line of a uid_map or
// gid_map file: ids [Internal, Internal+Length) inside the namespace
// correspond to ids [External, External+Length) outside it.
type IdMapEntry struct {
	Internal uint32
	External uint32
	Length   uint32
}

// Overflows reports whether the entry's range wraps past the maximum
// representable id, which would otherwise silently alias ids outside
// the declared range.
func (e IdMapEntry) Overflows() bool {
	return uint64(e.Internal)+uint64(e.Length) > math.MaxUint32 ||
		uint64(e.External)+uint64(e.Length) > math.MaxUint32
}

// IdMap is the full set of mapping entries the engine will install for
// one of a container's uid or gid spaces.
type IdMap struct {
	Kind    IdMapKind
	Entries []IdMapEntry
}

// NewWithCurrentUserAsRoot builds the single-entry convenience map used
// when a caller wants container root (internal id 0) to correspond to
// their own uid or gid outside the namespace, the most common case for
// an unprivileged container per spec section 1.
func NewWithCurrentUserAsRoot(kind IdMapKind) IdMap {
	var external uint32
	if kind == GroupIDMap {
		external = uint32(linux.Getgid())
	} else {
		external = uint32(linux.Getuid())
	}
	return IdMap{
		Kind: kind,
		Entries: []IdMapEntry{
			{Internal: 0, External: external, Length: 1},
		},
	}
}

// Invert swaps Internal and External on every entry, used when the
// engine needs to reason from the host's perspective about a map that
// was declared from the container's perspective, or vice versa.
func (m IdMap) Invert() IdMap {
	inverted := IdMap{Kind: m.Kind, Entries: make([]IdMapEntry, len(m.Entries))}
	for i, e := range m.Entries {
		inverted.Entries[i] = IdMapEntry{Internal: e.External, External: e.Internal, Length: e.Length}
	}
	return inverted
}

// MapsInternal reports whether id falls within any entry's internal
// range, used by validation to check RunAs targets are actually mapped.
func (m IdMap) MapsInternal(id uint32) bool {
	for _, e := range m.Entries {
		if id >= e.Internal && id < e.Internal+e.Length {
			return true
		}
	}
	return false
}

// Write installs the map against the process identified by pid via
// /proc/<pid>/{uid_map,gid_map}. For anything beyond a single entry the
// kernel additionally requires CAP_SETUID/CAP_SETGID in the caller's
// user namespace; that check happens one layer up, in
// UserNamespaceConfig.validate (container.go), before Write is ever called.
func (m IdMap) Write(pid int) error {
	entries := make([]linux.IDMapEntry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = linux.IDMapEntry{Internal: e.Internal, External: e.External, Length: e.Length}
	}
	if err := linux.WriteIDMap(pid, m.Kind.toLinux(), entries); err != nil {
		return fmt.Errorf("writing %v id map for pid %d: %w", m.Kind, pid, err)
	}
	return nil
}

func (k IdMapKind) String() string {
	if k == GroupIDMap {
		return "gid"
	}
	return "uid"
}
