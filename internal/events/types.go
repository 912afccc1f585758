package events

// Event type constants for kelindar/event.
const (
	TypeDevice uint32 = iota + 1
	TypeStreamState
	TypeFormatChanged
	TypeControlChanged
	TypeFrameCaptured
	TypeOperationFailed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceEvent reports a camera appearing or disappearing.
type DeviceEvent struct {
	Action    string `json:"action" example:"added" doc:"Action type: added, removed"`
	Camera    string `json:"camera" example:"0" doc:"Camera index"`
	Name      string `json:"name" example:"HD Pro Webcam C920" doc:"Human readable name"`
	Backend   string `json:"backend" example:"v4l2" doc:"Capture backend"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceEvent.
func (e DeviceEvent) Type() uint32 { return TypeDevice }

// StreamStateEvent reports a Closed/Open transition of a session.
type StreamStateEvent struct {
	Camera    string `json:"camera" example:"0" doc:"Camera index"`
	From      string `json:"from" example:"closed" doc:"Previous stream state"`
	To        string `json:"to" example:"open" doc:"New stream state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateEvent.
func (e StreamStateEvent) Type() uint32 { return TypeStreamState }

// FormatChangedEvent reports a newly applied camera format.
type FormatChangedEvent struct {
	Camera    string `json:"camera" example:"0" doc:"Camera index"`
	Format    string `json:"format" example:"1280x720@30 MJPG" doc:"Applied format"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FormatChangedEvent.
func (e FormatChangedEvent) Type() uint32 { return TypeFormatChanged }

// ControlChangedEvent reports a control write.
type ControlChangedEvent struct {
	Camera    string `json:"camera" example:"0" doc:"Camera index"`
	Control   string `json:"control" example:"brightness" doc:"Control name"`
	Value     string `json:"value" example:"32" doc:"Value written"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ControlChangedEvent.
func (e ControlChangedEvent) Type() uint32 { return TypeControlChanged }

// FrameCapturedEvent reports a delivered frame.
type FrameCapturedEvent struct {
	Camera    string `json:"camera" example:"0" doc:"Camera index"`
	Sequence  uint64 `json:"sequence" example:"42" doc:"Driver frame sequence"`
	Bytes     int    `json:"bytes" example:"65536" doc:"Raw frame size"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// OperationFailedEvent reports a failed session operation.
type OperationFailedEvent struct {
	Camera    string `json:"camera" example:"0" doc:"Camera index"`
	Operation string `json:"operation" example:"open_stream" doc:"Session operation"`
	Code      string `json:"code" example:"DEVICE_UNAVAILABLE" doc:"Error code"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for OperationFailedEvent.
func (e OperationFailedEvent) Type() uint32 { return TypeOperationFailed }
