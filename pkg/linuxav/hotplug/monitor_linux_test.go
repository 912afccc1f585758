//go:build linux

package hotplug

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestNewMonitor(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	if m.fd <= 0 {
		t.Errorf("expected valid fd, got %d", m.fd)
	}
	if !slices.Equal(m.subsystems, []string{SubsystemVideo4Linux}) {
		t.Errorf("default subsystems = %v", m.subsystems)
	}
}

func TestMonitorClose(t *testing.T) {
	m, err := NewMonitor("usb", SubsystemVideo4Linux)
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}

	if closeErr := m.Close(); closeErr != nil {
		t.Errorf("Close() error: %v", closeErr)
	}
	if closeErr := m.Close(); closeErr == nil {
		t.Error("expected error on second Close()")
	}
}

func TestMonitorRunCancellation(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink unavailable: %v", err)
	}
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 1)
	if runErr := m.Run(ctx, events); !errors.Is(runErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", runErr)
	}
	if _, open := <-events; open {
		t.Error("events channel left open")
	}
}
