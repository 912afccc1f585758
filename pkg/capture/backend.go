package capture

// FormatQuerier is the enumeration half of a Backend.
type FormatQuerier interface {
	// QueryFourCCs lists the frame formats the device offers, at most two,
	// best first. Backends that cannot enumerate return ErrUnsupportedOperation.
	QueryFourCCs() ([]FrameFormat, error)
	// QueryFormats maps each resolution offered for fourcc to its frame rates.
	// Map iteration order is irrelevant; callers sort when they need to.
	QueryFormats(fourcc FrameFormat) (map[Resolution][]FrameRate, error)
}

// Backend is the contract every capture driver implements. A Backend is owned
// by exactly one session and is never called concurrently.
//
// Mutating calls may apply something other than what was requested. The
// session always re-reads Format or Control afterwards and treats that as
// authoritative.
type Backend interface {
	FormatQuerier

	Kind() BackendKind
	Info() CameraInfo

	Format() (CameraFormat, error)
	ApplyFormat(format CameraFormat) error

	Control(id KnownCameraControl) (CameraControl, error)
	Controls() ([]CameraControl, error)
	SetControl(id KnownCameraControl, value ControlValue) error

	Open() error
	Close() error
	IsOpen() bool
	PullFrame() (Frame, error)
}

// Releaser is implemented by backends that hold a device handle beyond the
// stream, such as an open file descriptor. Session.Close calls it last.
type Releaser interface {
	Release() error
}
