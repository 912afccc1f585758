package devices

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/camcap/internal/events"
	"github.com/smazurov/camcap/pkg/capture"
	"github.com/smazurov/camcap/pkg/linuxav/hotplug"
)

// uevents is the part of hotplug.Monitor Watch uses.
type uevents interface {
	Run(ctx context.Context, out chan<- hotplug.Event) error
	Close() error
}

var newMonitor = func() (uevents, error) {
	return hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
}

func cameraKey(c capture.CameraInfo) string {
	return string(c.Backend) + "/" + c.Index.String()
}

// Watch publishes an "added" DeviceEvent for every current camera, then
// follows kernel hotplug events and publishes additions and removals until
// ctx is done. Without hotplug support only the initial list is published.
func (d *Detector) Watch(ctx context.Context, bus *events.Bus) error {
	known := make(map[string]capture.CameraInfo)
	d.reconcile(bus, known)
	d.logger.Info("Initialized camera list", "count", len(known))

	mon, err := newMonitor()
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			d.logger.Info("Hotplug monitoring unavailable on this platform")
			<-ctx.Done()
			return nil
		}
		return err
	}
	defer func() { _ = mon.Close() }()

	ch := make(chan hotplug.Event, 16)
	runErr := make(chan error, 1)
	go func() { runErr <- mon.Run(ctx, ch) }()

	d.logger.Info("Hotplug monitoring started")
	for ev := range ch {
		if ev.Action != hotplug.ActionAdd && ev.Action != hotplug.ActionRemove {
			continue
		}
		d.logger.Debug("Hotplug event", "action", ev.Action, "node", ev.Node(), "seq", ev.Seq)

		// give the driver time to finish registering the node
		if ev.Action == hotplug.ActionAdd && d.settle > 0 {
			select {
			case <-time.After(d.settle):
			case <-ctx.Done():
			}
		}
		d.reconcile(bus, known)
	}

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reconcile lists cameras and publishes the difference against known,
// which it updates in place.
func (d *Detector) reconcile(bus *events.Bus, known map[string]capture.CameraInfo) {
	cameras, err := d.FindDevices()
	if err != nil {
		d.logger.Error("Error listing cameras", "error", err)
		return
	}

	current := make(map[string]capture.CameraInfo, len(cameras))
	for _, c := range cameras {
		current[cameraKey(c)] = c
	}

	now := time.Now().Format(time.RFC3339)
	for key, old := range known {
		if _, ok := current[key]; !ok {
			delete(known, key)
			bus.Publish(deviceEvent("removed", old, now))
			d.logger.Info("Camera removed", "camera", old.String())
		}
	}
	for key, c := range current {
		if old, ok := known[key]; !ok || old != c {
			action := "added"
			if ok {
				action = "changed"
			}
			known[key] = c
			bus.Publish(deviceEvent(action, c, now))
			d.logger.Info("Camera "+action, "camera", c.String())
		}
	}
}

func deviceEvent(action string, c capture.CameraInfo, ts string) events.DeviceEvent {
	return events.DeviceEvent{
		Action:    action,
		Camera:    c.Index.String(),
		Name:      c.HumanName,
		Backend:   string(c.Backend),
		Timestamp: ts,
	}
}
