//go:build linux

package hotplug

import (
	"context"
	"errors"
	"slices"
	"syscall"
	"time"
)

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// pollInterval bounds how long a blocked receive delays cancellation.
const pollInterval = time.Second

// Monitor receives kernel uevents for a fixed set of subsystems.
type Monitor struct {
	fd         int
	subsystems []string
}

// NewMonitor opens a netlink uevent socket. With no subsystems given, only
// video4linux events are delivered.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	if len(subsystems) == 0 {
		subsystems = []string{SubsystemVideo4Linux}
	}

	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}
	// group 1 is the kernel broadcast group
	if err := syscall.Bind(fd, &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}
	tv := syscall.NsecToTimeval(pollInterval.Nanoseconds())
	if err := syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}

	return &Monitor{fd: fd, subsystems: slices.Clone(subsystems)}, nil
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return syscall.Close(m.fd)
}

// Run delivers matching events to out until ctx is done or the socket
// fails. out is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)

	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		switch {
		case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
			continue
		case err != nil:
			return err
		}

		ev, ok := Parse(buf[:n])
		if !ok || !slices.Contains(m.subsystems, ev.Subsystem) {
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
