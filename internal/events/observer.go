package events

import (
	"time"

	"github.com/smazurov/camcap/pkg/capture"
)

// Observer publishes session notifications on a Bus.
type Observer struct {
	bus    *Bus
	frames bool
	now    func() time.Time
}

var _ capture.Observer = (*Observer)(nil)

// NewObserver returns a capture.Observer backed by bus. Frame events are
// only published when frames is true, since they arrive at the frame rate.
func NewObserver(bus *Bus, frames bool) *Observer {
	return &Observer{bus: bus, frames: frames, now: time.Now}
}

func (o *Observer) stamp() string {
	return o.now().UTC().Format(time.RFC3339Nano)
}

// StateChanged publishes a StreamStateEvent.
func (o *Observer) StateChanged(info capture.CameraInfo, from, to capture.StreamState) {
	o.bus.Publish(StreamStateEvent{
		Camera:    info.Index.String(),
		From:      from.String(),
		To:        to.String(),
		Timestamp: o.stamp(),
	})
}

// FormatChanged publishes a FormatChangedEvent.
func (o *Observer) FormatChanged(info capture.CameraInfo, format capture.CameraFormat) {
	o.bus.Publish(FormatChangedEvent{
		Camera:    info.Index.String(),
		Format:    format.String(),
		Timestamp: o.stamp(),
	})
}

// ControlChanged publishes a ControlChangedEvent.
func (o *Observer) ControlChanged(info capture.CameraInfo, id capture.KnownCameraControl, value capture.ControlValue) {
	o.bus.Publish(ControlChangedEvent{
		Camera:    info.Index.String(),
		Control:   id.String(),
		Value:     value.String(),
		Timestamp: o.stamp(),
	})
}

// FrameCaptured publishes a FrameCapturedEvent when frame events are enabled.
func (o *Observer) FrameCaptured(info capture.CameraInfo, buf *capture.Buffer) {
	if !o.frames {
		return
	}
	o.bus.Publish(FrameCapturedEvent{
		Camera:    info.Index.String(),
		Sequence:  buf.Sequence(),
		Bytes:     buf.Len(),
		Timestamp: buf.Timestamp().UTC().Format(time.RFC3339Nano),
	})
}

// OperationFailed publishes an OperationFailedEvent.
func (o *Observer) OperationFailed(info capture.CameraInfo, op string, err error) {
	o.bus.Publish(OperationFailedEvent{
		Camera:    info.Index.String(),
		Operation: op,
		Code:      string(capture.CodeOf(err)),
		Error:     err.Error(),
		Timestamp: o.stamp(),
	})
}
