package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/smazurov/camcap/internal/config"
	"github.com/smazurov/camcap/internal/devices"
	"github.com/smazurov/camcap/internal/events"
	"github.com/smazurov/camcap/pkg/capture"
)

func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	det := devices.NewDetector(devices.Config{Backend: capture.BackendVirtual, VirtualCount: 2})
	cfg.Backend = capture.BackendVirtual
	if cfg.Registry == nil {
		cfg.Registry = capture.NewRegistry()
	}
	m := New(det, cfg)
	t.Cleanup(func() { _ = m.CloseAll(context.Background()) })
	return m
}

func TestGetReusesSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, Config{})

	a, err := m.Get(ctx, capture.IndexNumber(0))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	b, err := m.Get(ctx, capture.IndexNumber(0))
	if err != nil {
		t.Fatalf("Get() again error = %v", err)
	}
	if a != b {
		t.Error("Get() opened a second session for the same camera")
	}
	if got := m.Active(); len(got) != 1 || got[0] != "0" {
		t.Errorf("Active() = %v", got)
	}
}

func TestGetNegotiatesRequest(t *testing.T) {
	m := newManager(t, Config{
		Request: capture.HighestResolution(capture.FPS(15), capture.FormatMJPEG),
	})
	s, err := m.Get(context.Background(), capture.IndexNumber(1))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := s.CameraFormat().Resolution; got != (capture.Resolution{Width: 1920, Height: 1080}) {
		t.Errorf("negotiated %s", got)
	}
}

func TestGetUnknownCamera(t *testing.T) {
	m := newManager(t, Config{})
	if _, err := m.Get(context.Background(), capture.IndexNumber(9)); !capture.HasCode(err, capture.ErrDeviceUnavailable) {
		t.Errorf("Get(9) = %v, want DEVICE_UNAVAILABLE", err)
	}
	if len(m.Active()) != 0 {
		t.Error("failed open was kept")
	}
}

func TestGetAppliesProfile(t *testing.T) {
	p := config.Profile{Controls: map[string]any{"brightness": int64(20)}}
	m := newManager(t, Config{Profile: &p})

	ctx := context.Background()
	s, err := m.Get(ctx, capture.IndexNumber(0))
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.CameraControl(ctx, capture.ControlBrightness)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Current.Equal(capture.IntegerValue(20)) {
		t.Errorf("brightness = %s, want 20", c.Current)
	}
}

func TestSetProfileAppliesToOpenSessions(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, Config{})
	s, err := m.Get(ctx, capture.IndexNumber(0))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetProfile(ctx, config.Profile{Controls: map[string]any{"contrast": int64(70)}}); err != nil {
		t.Fatalf("SetProfile() error = %v", err)
	}
	c, _ := s.CameraControl(ctx, capture.ControlContrast)
	if !c.Current.Equal(capture.IntegerValue(70)) {
		t.Errorf("contrast = %s, want 70", c.Current)
	}

	err = m.SetProfile(ctx, config.Profile{Controls: map[string]any{"contrast": int64(500)}})
	if !capture.HasCode(err, capture.ErrInvalidControlValue) {
		t.Errorf("SetProfile(out of range) = %v", err)
	}
}

func TestCloseReleasesDevice(t *testing.T) {
	ctx := context.Background()
	reg := capture.NewRegistry()
	m := newManager(t, Config{Registry: reg})

	if _, err := m.Get(ctx, capture.IndexNumber(0)); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx, capture.IndexNumber(0)); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(ctx, capture.IndexNumber(0)); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, ok := m.Lookup(capture.IndexNumber(0)); ok {
		t.Error("Lookup() found a closed session")
	}
	// the registry claim is gone, so the camera can be opened again
	if _, err := m.Get(ctx, capture.IndexNumber(0)); err != nil {
		t.Errorf("Get() after Close = %v", err)
	}
}

func TestObserversReceiveEvents(t *testing.T) {
	bus := events.New()
	got := make(chan events.StreamStateEvent, 4)
	defer bus.Subscribe(func(e events.StreamStateEvent) { got <- e })()

	ctx := context.Background()
	m := newManager(t, Config{Observers: []capture.Observer{events.NewObserver(bus, false)}})
	s, err := m.Get(ctx, capture.IndexNumber(0))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.OpenStream(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-got:
		if e.Camera != "0" || e.To != "open" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no stream state event")
	}
}

func TestFollowClosesRemoved(t *testing.T) {
	bus := events.New()
	m := newManager(t, Config{})
	defer m.Follow(bus)()

	if _, err := m.Get(context.Background(), capture.IndexNumber(1)); err != nil {
		t.Fatal(err)
	}
	bus.Publish(events.DeviceEvent{Action: "removed", Camera: "1"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := m.Lookup(capture.IndexNumber(1)); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("session survived removal")
}
