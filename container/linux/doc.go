//go:build linux

// Package linux adapts the raw Linux namespace, mount, and identity
// syscalls used by the container engine behind small typed wrappers.
// Every function here either returns a typed error describing the
// syscall's failure mode or, on success, leaves host kernel state
// exactly as requested. Nothing in this package retries or hides a
// failure: callers decide what to do next.
package linux
