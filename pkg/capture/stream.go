package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// StreamState is the lifecycle state of a session's stream.
type StreamState int32

// Stream states.
const (
	StateClosed StreamState = iota
	StateOpen
)

func (s StreamState) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// MarshalText implements encoding.TextMarshaler.
func (s StreamState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FramePolicy decides what Frame does while the stream is closed.
type FramePolicy int

const (
	// FramePolicyReject fails with ErrStreamState. This is the default.
	FramePolicyReject FramePolicy = iota
	// FramePolicyAutoOpen opens the stream first and leaves it open.
	FramePolicyAutoOpen
)

func (p FramePolicy) String() string {
	if p == FramePolicyAutoOpen {
		return "auto-open"
	}
	return "reject"
}

// ParseFramePolicy accepts "reject" or "auto-open".
func ParseFramePolicy(s string) (FramePolicy, error) {
	switch s {
	case "", "reject":
		return FramePolicyReject, nil
	case "auto-open", "auto_open", "autoopen":
		return FramePolicyAutoOpen, nil
	}
	return FramePolicyReject, fmt.Errorf("unknown frame policy %q", s)
}

// Options configure a session.
type Options struct {
	// Request is negotiated once when the session is created. Pass
	// ExactFormat(DefaultFormat()) to start from the conventional default.
	Request     FormatRequest
	FramePolicy FramePolicy
	// Registry enforces exclusive device ownership. Nil means DefaultRegistry.
	Registry *Registry
	Observer Observer
	Logger   *slog.Logger
}

// stream is the state machine shared by Session and AsyncSession. Only one
// goroutine drives it at a time; state and format are additionally guarded
// so snapshots can be read from anywhere.
type stream struct {
	backend  Backend
	info     CameraInfo
	policy   FramePolicy
	observer Observer
	logger   *slog.Logger
	release  func()

	// formats caches the compatible list; nil until first queried.
	formats []CameraFormat

	mu     sync.RWMutex
	state  StreamState
	format CameraFormat
	closed bool
}

func newStream(backend Backend, opts Options) (*stream, error) {
	if backend == nil {
		return nil, NewError(ErrDeviceUnavailable, "new session", "no backend")
	}
	info := backend.Info()

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	release, err := registry.Acquire(backend.Kind(), info.Index)
	if err != nil {
		return nil, err
	}

	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &stream{
		backend:  backend,
		info:     info,
		policy:   opts.FramePolicy,
		observer: observer,
		logger:   logger.With("camera", info.Index.String(), "backend", string(backend.Kind())),
		release:  release,
	}

	if err := s.negotiate(opts.Request); err != nil {
		release()
		return nil, err
	}
	return s, nil
}

// negotiate reads the device format and applies the requested one.
func (s *stream) negotiate(req FormatRequest) error {
	if err := s.refreshFormat(); err != nil {
		return err
	}
	if req.Kind == "" || req.Kind == RequestNone {
		return nil
	}

	formats, err := s.compatibleFormats()
	switch {
	case err == nil:
	case HasCode(err, ErrUnsupportedOperation) && req.Kind == RequestExact:
		// fixed-format devices: hand the request to the backend as is
		return s.apply("negotiate", req.Target)
	default:
		return err
	}

	target, err := req.Resolve(formats)
	if err != nil {
		return err
	}
	s.logger.Debug("Negotiated format", "request", req.String(), "format", target.String())
	return s.apply("negotiate", target)
}

func (s *stream) live(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return NewError(ErrStreamState, op, "session is closed")
	}
	return nil
}

// report notifies the observer about a failed operation.
func (s *stream) report(op string, err error) error {
	if err != nil {
		s.logger.Debug("Capture operation failed", "op", op, "error", err)
		s.observer.OperationFailed(s.info, op, err)
	}
	return err
}

func (s *stream) State() StreamState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *stream) CameraFormat() CameraFormat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.format
}

func (s *stream) setState(to StreamState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from != to {
		s.logger.Debug("Stream state changed", "from", from.String(), "to", to.String())
		s.observer.StateChanged(s.info, from, to)
	}
}

func (s *stream) refreshFormat() error {
	f, err := s.backend.Format()
	if err != nil {
		return backendError("format", err)
	}
	s.mu.Lock()
	changed := s.format != f
	s.format = f
	s.mu.Unlock()
	if changed {
		s.observer.FormatChanged(s.info, f)
	}
	return nil
}

func (s *stream) refreshCameraFormat() (CameraFormat, error) {
	if err := s.live("refresh format"); err != nil {
		return CameraFormat{}, err
	}
	if err := s.refreshFormat(); err != nil {
		return CameraFormat{}, err
	}
	return s.CameraFormat(), nil
}

func (s *stream) compatibleFourCCs() ([]FrameFormat, error) {
	if err := s.live("query fourccs"); err != nil {
		return nil, err
	}
	fourccs, err := s.backend.QueryFourCCs()
	if err != nil {
		return nil, backendError("query fourccs", err)
	}
	return fourccs, nil
}

func (s *stream) compatibleResolutions(fourcc FrameFormat) (map[Resolution][]FrameRate, error) {
	if err := s.live("query formats"); err != nil {
		return nil, err
	}
	modes, err := s.backend.QueryFormats(fourcc)
	if err != nil {
		return nil, backendError("query formats", err)
	}
	return modes, nil
}

func (s *stream) compatibleFormats() ([]CameraFormat, error) {
	if err := s.live("compatible formats"); err != nil {
		return nil, err
	}
	if s.formats == nil {
		formats, err := CompatibleFormats(s.backend)
		if err != nil {
			return nil, err
		}
		s.formats = formats
	}
	return slices.Clone(s.formats), nil
}

func (s *stream) openStream() error {
	if err := s.live("open"); err != nil {
		return err
	}
	if s.State() == StateOpen {
		return nil
	}
	if err := s.backend.Open(); err != nil {
		return backendError("open", err)
	}
	s.setState(StateOpen)
	return s.refreshFormat()
}

func (s *stream) stopStream() error {
	if err := s.live("stop"); err != nil {
		return err
	}
	return s.closeBackend("stop")
}

// closeBackend tears the stream down. The session is Closed afterwards even
// when the backend reports an error; a later stop retries while the backend
// still claims to be open.
func (s *stream) closeBackend(op string) error {
	if s.State() == StateClosed && !s.backend.IsOpen() {
		return nil
	}
	err := s.backend.Close()
	s.setState(StateClosed)
	if err != nil {
		s.logger.Warn("Stream teardown failed, device may need cleanup", "error", err)
		return backendError(op, err)
	}
	return nil
}

func (s *stream) setCameraFormat(f CameraFormat) error {
	return s.change("set format", f, func(c CameraFormat) bool { return c == f })
}

func (s *stream) setResolution(res Resolution) error {
	target := s.CameraFormat()
	target.Resolution = res
	return s.change("set resolution", target, func(c CameraFormat) bool {
		return c.Resolution == res && c.Format == target.Format
	})
}

func (s *stream) setFrameRate(rate FrameRate) error {
	target := s.CameraFormat()
	target.FrameRate = normalizeRate(rate)
	return s.change("set frame rate", target, func(c CameraFormat) bool {
		return c.Resolution == target.Resolution && c.Format == target.Format && c.FrameRate == target.FrameRate
	})
}

func (s *stream) setFrameFormat(format FrameFormat) error {
	target := s.CameraFormat()
	target.Format = format
	return s.change("set frame format", target, func(c CameraFormat) bool { return c.Format == format })
}

// change validates target against the compatible list, narrowed by match,
// and applies the nearest acceptable candidate.
func (s *stream) change(op string, target CameraFormat, match func(CameraFormat) bool) error {
	if err := s.live(op); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return err
	}

	formats, err := s.compatibleFormats()
	if err != nil {
		if HasCode(err, ErrUnsupportedOperation) {
			return s.apply(op, target)
		}
		return err
	}

	var pool []CameraFormat
	for _, f := range formats {
		if match(f) {
			pool = append(pool, f)
		}
	}
	if len(pool) == 0 {
		return NewError(ErrInvalidFormat, op, fmt.Sprintf("%s is not offered by %s", target, s.info.HumanName))
	}
	if !slices.Contains(pool, target) {
		if target, err = ClosestFormat(target).Resolve(pool); err != nil {
			return err
		}
	}
	return s.apply(op, target)
}

// apply sets a validated format. An open stream is stopped, reconfigured and
// reopened. Any failure along the way leaves the session Closed with the cache
// refreshed from the backend.
func (s *stream) apply(op string, target CameraFormat) error {
	if s.State() == StateClosed {
		err := s.backend.ApplyFormat(target)
		rerr := s.refreshFormat()
		if err != nil {
			return errors.Join(backendError(op, err), rerr)
		}
		return rerr
	}

	if err := s.closeBackend(op); err != nil {
		return errors.Join(err, s.refreshFormat())
	}
	if err := s.backend.ApplyFormat(target); err != nil {
		return errors.Join(backendError(op, err), s.refreshFormat())
	}
	if err := s.refreshFormat(); err != nil {
		return err
	}
	return s.openStream()
}

func (s *stream) frame() (*Buffer, error) {
	if err := s.live("frame"); err != nil {
		return nil, err
	}
	if s.State() == StateClosed {
		if s.policy != FramePolicyAutoOpen {
			return nil, NewError(ErrStreamState, "frame", "stream is not open")
		}
		if err := s.openStream(); err != nil {
			return nil, err
		}
	}

	f, err := s.backend.PullFrame()
	if err != nil {
		return nil, backendError("frame", err)
	}
	current := s.CameraFormat()
	if f.Resolution.IsZero() {
		f.Resolution = current.Resolution
	}
	if f.Format == 0 {
		f.Format = current.Format
	}
	buf := bufferFromFrame(f)
	s.observer.FrameCaptured(s.info, buf)
	return buf, nil
}

func (s *stream) frameRaw() ([]byte, error) {
	buf, err := s.frame()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *stream) cameraControl(id KnownCameraControl) (CameraControl, error) {
	if err := s.live("control"); err != nil {
		return CameraControl{}, err
	}
	c, err := s.backend.Control(id)
	if err != nil {
		return CameraControl{}, backendError("control", err)
	}
	if err := c.CheckBounds(); err != nil {
		return CameraControl{}, err
	}
	return c, nil
}

func (s *stream) cameraControls() ([]CameraControl, error) {
	if err := s.live("controls"); err != nil {
		return nil, err
	}
	controls, err := s.backend.Controls()
	if err != nil {
		return nil, backendError("controls", err)
	}
	for _, c := range controls {
		if err := c.CheckBounds(); err != nil {
			return nil, err
		}
	}
	return controls, nil
}

func (s *stream) setCameraControl(id KnownCameraControl, value ControlValue) error {
	desc, err := s.cameraControl(id)
	if err != nil {
		return err
	}
	if err := desc.Validate(value); err != nil {
		return err
	}
	if err := s.backend.SetControl(id, value); err != nil {
		return backendError("set control", err)
	}
	s.observer.ControlChanged(s.info, id, value)
	return nil
}

// oneShot returns one frame. An open stream stays open. Otherwise the stream
// is opened for the capture and stop is always attempted afterwards.
func (s *stream) oneShot() (*Buffer, error) {
	if err := s.live("one shot"); err != nil {
		return nil, err
	}
	if s.State() == StateOpen {
		return s.frame()
	}
	if err := s.openStream(); err != nil {
		// a failed open may still have left the backend half open
		return nil, errors.Join(err, s.closeBackend("one shot"))
	}
	buf, frameErr := s.frame()
	stopErr := s.closeBackend("one shot")
	if err := errors.Join(frameErr, stopErr); err != nil {
		return nil, err
	}
	return buf, nil
}

// close stops the stream and gives up the device.
func (s *stream) close() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil
	}

	err := s.closeBackend("close")
	if r, ok := s.backend.(Releaser); ok {
		if rerr := r.Release(); rerr != nil {
			err = errors.Join(err, backendError("release", rerr))
		}
	}
	s.release()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.logger.Debug("Session closed")
	return err
}
