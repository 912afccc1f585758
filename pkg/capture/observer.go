package capture

// Observer receives notifications from a session. Calls happen on the
// goroutine that performs the operation and must not block or call back into
// the session.
type Observer interface {
	StateChanged(info CameraInfo, from, to StreamState)
	FormatChanged(info CameraInfo, format CameraFormat)
	ControlChanged(info CameraInfo, id KnownCameraControl, value ControlValue)
	FrameCaptured(info CameraInfo, buf *Buffer)
	OperationFailed(info CameraInfo, op string, err error)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) StateChanged(CameraInfo, StreamState, StreamState) {}
func (NopObserver) FormatChanged(CameraInfo, CameraFormat) {}
func (NopObserver) ControlChanged(CameraInfo, KnownCameraControl, ControlValue) {}
func (NopObserver) FrameCaptured(CameraInfo, *Buffer) {}
func (NopObserver) OperationFailed(CameraInfo, string, error) {}

// MultiObserver fans notifications out in order.
type MultiObserver []Observer

func (m MultiObserver) StateChanged(info CameraInfo, from, to StreamState) {
	for _, o := range m {
		o.StateChanged(info, from, to)
	}
}

func (m MultiObserver) FormatChanged(info CameraInfo, format CameraFormat) {
	for _, o := range m {
		o.FormatChanged(info, format)
	}
}

func (m MultiObserver) ControlChanged(info CameraInfo, id KnownCameraControl, value ControlValue) {
	for _, o := range m {
		o.ControlChanged(info, id, value)
	}
}

func (m MultiObserver) FrameCaptured(info CameraInfo, buf *Buffer) {
	for _, o := range m {
		o.FrameCaptured(info, buf)
	}
}

func (m MultiObserver) OperationFailed(info CameraInfo, op string, err error) {
	for _, o := range m {
		o.OperationFailed(info, op, err)
	}
}
