package capture

// Session is the blocking façade. Every call runs on the caller's goroutine.
// A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	s *stream
}

// NewSession claims the backend's device and negotiates opts.Request.
func NewSession(backend Backend, opts Options) (*Session, error) {
	s, err := newStream(backend, opts)
	if err != nil {
		return nil, err
	}
	return &Session{s: s}, nil
}

// Info returns the device description.
func (c *Session) Info() CameraInfo { return c.s.info }

// BackendKind returns the driver kind.
func (c *Session) BackendKind() BackendKind { return c.s.backend.Kind() }

// State returns the stream state.
func (c *Session) State() StreamState { return c.s.State() }

// IsStreamOpen reports whether the stream is open.
func (c *Session) IsStreamOpen() bool { return c.s.State() == StateOpen }

// CameraFormat returns the last format the backend acknowledged.
func (c *Session) CameraFormat() CameraFormat { return c.s.CameraFormat() }

// RefreshCameraFormat re-reads the format from the backend.
func (c *Session) RefreshCameraFormat() (CameraFormat, error) {
	f, err := c.s.refreshCameraFormat()
	return f, c.s.report("refresh format", err)
}

// CompatibleFourCCs lists the frame formats the device offers.
func (c *Session) CompatibleFourCCs() ([]FrameFormat, error) {
	f, err := c.s.compatibleFourCCs()
	return f, c.s.report("query fourccs", err)
}

// CompatibleResolutions maps resolutions offered for fourcc to frame rates.
func (c *Session) CompatibleResolutions(fourcc FrameFormat) (map[Resolution][]FrameRate, error) {
	m, err := c.s.compatibleResolutions(fourcc)
	return m, c.s.report("query formats", err)
}

// CompatibleFormats returns every supported format, unsorted.
func (c *Session) CompatibleFormats() ([]CameraFormat, error) {
	f, err := c.s.compatibleFormats()
	return f, c.s.report("compatible formats", err)
}

// SetCameraFormat applies f. An open stream is restarted around the change.
func (c *Session) SetCameraFormat(f CameraFormat) error {
	return c.s.report("set format", c.s.setCameraFormat(f))
}

// SetResolution changes the resolution, keeping the frame format and the
// nearest offered frame rate.
func (c *Session) SetResolution(res Resolution) error {
	return c.s.report("set resolution", c.s.setResolution(res))
}

// SetFrameRate changes the frame rate.
func (c *Session) SetFrameRate(rate FrameRate) error {
	return c.s.report("set frame rate", c.s.setFrameRate(rate))
}

// SetFrameFormat changes the encoding, keeping the nearest resolution and
// rate.
func (c *Session) SetFrameFormat(format FrameFormat) error {
	return c.s.report("set frame format", c.s.setFrameFormat(format))
}

// CameraControl returns one control.
func (c *Session) CameraControl(id KnownCameraControl) (CameraControl, error) {
	ctrl, err := c.s.cameraControl(id)
	return ctrl, c.s.report("control", err)
}

// CameraControls returns every control the device exposes.
func (c *Session) CameraControls() ([]CameraControl, error) {
	ctrls, err := c.s.cameraControls()
	return ctrls, c.s.report("controls", err)
}

// SetCameraControl validates value and forwards it to the backend.
func (c *Session) SetCameraControl(id KnownCameraControl, value ControlValue) error {
	return c.s.report("set control", c.s.setCameraControl(id, value))
}

// OpenStream starts streaming. It is a no-op when already open.
func (c *Session) OpenStream() error {
	return c.s.report("open", c.s.openStream())
}

// Frame captures one frame.
func (c *Session) Frame() (*Buffer, error) {
	b, err := c.s.frame()
	return b, c.s.report("frame", err)
}

// FrameRaw captures one frame and returns its bytes.
func (c *Session) FrameRaw() ([]byte, error) {
	b, err := c.s.frameRaw()
	return b, c.s.report("frame", err)
}

// StopStream stops streaming.
func (c *Session) StopStream() error {
	return c.s.report("stop", c.s.stopStream())
}

// OneShot captures a single frame, opening and stopping the stream when it
// was closed.
func (c *Session) OneShot() (*Buffer, error) {
	b, err := c.s.oneShot()
	return b, c.s.report("one shot", err)
}

// Close stops the stream and releases the device. Further calls fail.
func (c *Session) Close() error {
	return c.s.report("close", c.s.close())
}
