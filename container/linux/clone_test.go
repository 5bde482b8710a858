//go:build linux

package linux

import "testing"

func TestNamespaceFlagsValidateRejectsUnknownBits(t *testing.T) {
	valid := NewUser | NewNS | NewPID
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected known flags to validate, got %v", err)
	}

	invalid := valid | (1 << 30)
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected unknown bit to be rejected")
	}
}

func TestNamespaceFlagsAsCloneFlags(t *testing.T) {
	f := NewUser | NewNS
	if f.AsCloneFlags() != uintptr(NewUser|NewNS) {
		t.Fatalf("unexpected clone flags conversion")
	}
}
