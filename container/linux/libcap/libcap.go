//go:build linux

// Package libcap provides the boolean capability oracle the engine uses
// to decide whether a multi-range id map may be requested without
// failing at the kernel. It is a thin wrapper over the same library
// used for this purpose elsewhere in the ecosystem
// (kernel.org/pub/linux/libs/security/libcap/cap), matching spec
// section 1's treatment of libcap interop as a has_capability query.
package libcap

import (
	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// Capability names the two capabilities the engine ever queries.
type Capability int

const (
	SETUID Capability = iota
	SETGID
)

// HasCapability reports whether the calling process currently holds cap
// in its effective set. The underlying capability set is process-wide
// kernel state; for specification purposes this is treated as a pure
// function of the capability argument, per design notes "Global
// capability oracle".
func HasCapability(c Capability) bool {
	proc := cap.GetProc()
	var value cap.Value
	switch c {
	case SETGID:
		value = cap.SETGID
	default:
		value = cap.SETUID
	}
	enabled, err := proc.GetFlag(cap.Effective, value)
	if err != nil {
		return false
	}
	return enabled
}
