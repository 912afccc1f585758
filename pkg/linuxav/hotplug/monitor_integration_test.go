//go:build linux && integration

package hotplug

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestMonitorIntegration needs a camera to be plugged or unplugged.
// Run with: go test -tags=integration -v -run TestMonitorIntegration -timeout 60s
func TestMonitorIntegration(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events := make(chan Event, 10)
	go func() {
		if runErr := m.Run(ctx, events); runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) {
			t.Logf("Run() error: %v", runErr)
		}
	}()

	t.Log("Waiting for camera events... plug/unplug a USB camera")

	select {
	case ev := <-events:
		idx, _ := ev.VideoIndex()
		t.Logf("Received event: Action=%s Node=%s Index=%d", ev.Action, ev.Node(), idx)
	case <-ctx.Done():
		t.Log("No events received")
	}
}
