package devices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camcap/internal/events"
	"github.com/smazurov/camcap/pkg/capture"
	"github.com/smazurov/camcap/pkg/linuxav/hotplug"
)

func v4l2Camera(n uint32, name string) capture.CameraInfo {
	return capture.CameraInfo{
		Index:     capture.IndexNumber(n),
		HumanName: name,
		Backend:   capture.BackendV4L2,
	}
}

// stubList returns a lister whose result can be swapped between calls.
type stubList struct {
	mu      sync.Mutex
	cameras []capture.CameraInfo
	err     error
}

func (s *stubList) set(cameras ...capture.CameraInfo) {
	s.mu.Lock()
	s.cameras = cameras
	s.mu.Unlock()
}

func (s *stubList) list() ([]capture.CameraInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capture.CameraInfo(nil), s.cameras...), s.err
}

func TestFindDevicesVirtual(t *testing.T) {
	d := NewDetector(Config{Backend: capture.BackendVirtual})
	cams, err := d.FindDevices()
	if err != nil {
		t.Fatalf("FindDevices() error = %v", err)
	}
	if len(cams) != 1 || cams[0].Backend != capture.BackendVirtual {
		t.Errorf("FindDevices() = %v, want one virtual camera", cams)
	}
}

func TestFindDevicesV4L2Error(t *testing.T) {
	stub := &stubList{err: errors.New("sysfs gone")}
	d := NewDetector(Config{Backend: capture.BackendV4L2})
	d.listV4L2 = stub.list
	if _, err := d.FindDevices(); err == nil {
		t.Error("FindDevices() swallowed the V4L2 error")
	}
}

func TestFindDevicesUnknownBackend(t *testing.T) {
	d := NewDetector(Config{Backend: capture.BackendMSMF})
	if _, err := d.FindDevices(); !capture.HasCode(err, capture.ErrUnsupportedOperation) {
		t.Errorf("FindDevices() = %v, want UNSUPPORTED_OPERATION", err)
	}
}

func TestOpenVirtual(t *testing.T) {
	d := NewDetector(Config{Backend: capture.BackendVirtual, VirtualCount: 2})

	b, err := d.Open(capture.BackendAuto, capture.IndexNumber(1))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if b.Kind() != capture.BackendVirtual {
		t.Errorf("Kind() = %s", b.Kind())
	}

	if _, err := d.Open(capture.BackendVirtual, capture.IndexNumber(2)); !capture.HasCode(err, capture.ErrDeviceUnavailable) {
		t.Errorf("Open(2) = %v, want DEVICE_UNAVAILABLE", err)
	}
	if _, err := d.Open(capture.BackendVirtual, capture.IndexString("front")); !capture.HasCode(err, capture.ErrDeviceUnavailable) {
		t.Errorf("Open(front) = %v, want DEVICE_UNAVAILABLE", err)
	}
	if _, err := d.Open(capture.BackendAVFoundation, capture.IndexNumber(0)); !capture.HasCode(err, capture.ErrUnsupportedOperation) {
		t.Errorf("Open(avfoundation) = %v, want UNSUPPORTED_OPERATION", err)
	}
}

func TestReconcile(t *testing.T) {
	stub := &stubList{}
	stub.set(v4l2Camera(0, "front"), v4l2Camera(2, "rear"))
	d := NewDetector(Config{Backend: capture.BackendV4L2})
	d.listV4L2 = stub.list

	bus := events.New()
	ch := make(chan any, 10)
	defer events.SubscribeToChannel[events.DeviceEvent](bus, ch)()

	known := make(map[string]capture.CameraInfo)
	d.reconcile(bus, known)
	got := drain(ch)
	if len(got) != 2 || got[0].Action != "added" || got[1].Action != "added" {
		t.Fatalf("initial events = %+v", got)
	}

	stub.set(v4l2Camera(2, "rear renamed"), v4l2Camera(4, "side"))
	d.reconcile(bus, known)
	actions := map[string]string{}
	for _, e := range drain(ch) {
		actions[e.Camera] = e.Action
	}
	want := map[string]string{"0": "removed", "2": "changed", "4": "added"}
	for cam, action := range want {
		if actions[cam] != action {
			t.Errorf("camera %s action = %q, want %q", cam, actions[cam], action)
		}
	}
	if len(known) != 2 {
		t.Errorf("known = %v", known)
	}
}

func drain(ch chan any) []events.DeviceEvent {
	var out []events.DeviceEvent
	for {
		select {
		case e := <-ch:
			out = append(out, e.(events.DeviceEvent))
		case <-time.After(20 * time.Millisecond):
			return out
		}
	}
}

type fakeMonitor struct {
	events chan hotplug.Event
	closed bool
}

func (f *fakeMonitor) Run(ctx context.Context, out chan<- hotplug.Event) error {
	defer close(out)
	for {
		select {
		case ev := <-f.events:
			out <- ev
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *fakeMonitor) Close() error {
	f.closed = true
	return nil
}

func TestWatch(t *testing.T) {
	mon := &fakeMonitor{events: make(chan hotplug.Event)}
	orig := newMonitor
	newMonitor = func() (uevents, error) { return mon, nil }
	defer func() { newMonitor = orig }()

	stub := &stubList{}
	stub.set(v4l2Camera(0, "front"))
	d := NewDetector(Config{Backend: capture.BackendV4L2})
	d.listV4L2 = stub.list
	d.settle = 0

	bus := events.New()
	ch := make(chan any, 10)
	defer events.SubscribeToChannel[events.DeviceEvent](bus, ch)()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Watch(ctx, bus) }()

	next := func() events.DeviceEvent {
		t.Helper()
		select {
		case e := <-ch:
			return e.(events.DeviceEvent)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for device event")
			return events.DeviceEvent{}
		}
	}

	if e := next(); e.Action != "added" || e.Camera != "0" {
		t.Fatalf("initial event = %+v", e)
	}

	stub.set(v4l2Camera(0, "front"), v4l2Camera(1, "usb"))
	mon.events <- hotplug.Event{Action: hotplug.ActionAdd, Subsystem: hotplug.SubsystemVideo4Linux, DevName: "video1"}
	if e := next(); e.Action != "added" || e.Camera != "1" || e.Name != "usb" {
		t.Fatalf("hotplug add event = %+v", e)
	}

	stub.set(v4l2Camera(0, "front"))
	mon.events <- hotplug.Event{Action: hotplug.ActionRemove, Subsystem: hotplug.SubsystemVideo4Linux, DevName: "video1"}
	if e := next(); e.Action != "removed" || e.Camera != "1" {
		t.Fatalf("hotplug remove event = %+v", e)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	if !mon.closed {
		t.Error("monitor not closed")
	}
}

func TestWatchUnsupported(t *testing.T) {
	orig := newMonitor
	newMonitor = func() (uevents, error) { return nil, errors.ErrUnsupported }
	defer func() { newMonitor = orig }()

	d := NewDetector(Config{Backend: capture.BackendVirtual})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Watch(ctx, events.New()); err != nil {
		t.Errorf("Watch() = %v, want nil", err)
	}
}
