//go:build linux

package container

import "testing"

func TestNewWithCurrentUserAsRootMapsInterior0(t *testing.T) {
	m := NewWithCurrentUserAsRoot(UserIDMap)
	if !m.MapsInternal(0) {
		t.Fatalf("expected interior id 0 to be mapped")
	}
	if len(m.Entries) != 1 {
		t.Fatalf("expected a single entry, got %d", len(m.Entries))
	}
}

func TestInvertSwapsInternalExternal(t *testing.T) {
	m := IdMap{Kind: UserIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}}
	inv := m.Invert()
	if inv.Entries[0].Internal != 1000 || inv.Entries[0].External != 0 {
		t.Fatalf("unexpected inverted entry: %+v", inv.Entries[0])
	}
}

func TestIdMapEntryOverflows(t *testing.T) {
	e := IdMapEntry{Internal: 4294967295, External: 0, Length: 2}
	if !e.Overflows() {
		t.Fatalf("expected overflow to be detected")
	}
}

func TestMapsInternalOutsideRange(t *testing.T) {
	m := IdMap{Kind: UserIDMap, Entries: []IdMapEntry{{Internal: 0, External: 1000, Length: 1}}}
	if m.MapsInternal(1) {
		t.Fatalf("expected id 1 to not be mapped by a length-1 entry at 0")
	}
}
