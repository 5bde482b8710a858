//go:build linux

package linux

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// EventChannel is a kernel-backed single-reader-single-writer integer
// channel built on eventfd(2). A Send is matched by exactly one Receive;
// the zero value is not usable, construct with NewEventChannel.
type EventChannel struct {
	f *os.File
}

// NewEventChannel creates a fresh eventfd-backed channel with an initial
// counter value of zero.
func NewEventChannel() (*EventChannel, error) {
	fd, err := unix.Eventfd(0, 0)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &EventChannel{f: os.NewFile(uintptr(fd), "eventfd")}, nil
}

// Send writes a single integer payload to the channel.
func (c *EventChannel) Send(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	if _, err := c.f.Write(buf[:]); err != nil {
		return fmt.Errorf("eventfd send: %w", err)
	}
	return nil
}

// Receive blocks until a value has been sent and returns it.
func (c *EventChannel) Receive() (uint64, error) {
	var buf [8]byte
	if _, err := c.f.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("eventfd receive: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// File returns the underlying descriptor so it can be passed to a cloned
// child via exec.Cmd.ExtraFiles.
func (c *EventChannel) File() *os.File { return c.f }

// FromFD wraps an inherited eventfd descriptor, used by a re-exec'd child
// to recover the channel handed down by its parent.
func FromFD(fd uintptr, name string) *EventChannel {
	return &EventChannel{f: os.NewFile(fd, name)}
}

// Close releases the descriptor.
func (c *EventChannel) Close() error { return c.f.Close() }
