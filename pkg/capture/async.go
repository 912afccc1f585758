package capture

import (
	"context"
	"sync"
)

type job struct {
	run  func()
	done chan struct{}
}

// AsyncSession is the context-aware façade. One worker goroutine owns the
// backend and runs calls in the order they were issued, so blocking drivers
// never stall the caller's goroutine beyond its own call.
//
// A call whose context ends before the worker picks it up never starts and
// returns ctx.Err(). Once started a call always runs to completion and the
// caller waits for it, so a change is never left half applied.
type AsyncSession struct {
	s    *stream
	jobs chan job
	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewAsyncSession claims the device and negotiates opts.Request on the
// session's worker.
func NewAsyncSession(ctx context.Context, backend Backend, opts Options) (*AsyncSession, error) {
	a := &AsyncSession{
		jobs: make(chan job),
		quit: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.worker()

	var err error
	if derr := a.dispatch(ctx, func() { a.s, err = newStream(backend, opts) }); derr != nil {
		a.shutdown()
		return nil, derr
	}
	if err != nil {
		a.shutdown()
		return nil, err
	}
	return a, nil
}

func (a *AsyncSession) worker() {
	defer a.wg.Done()
	for {
		select {
		case j := <-a.jobs:
			j.run()
			close(j.done)
		case <-a.quit:
			return
		}
	}
}

func (a *AsyncSession) shutdown() {
	a.once.Do(func() { close(a.quit) })
	a.wg.Wait()
}

func (a *AsyncSession) dispatch(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j := job{run: fn, done: make(chan struct{})}
	select {
	case a.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.quit:
		return NewError(ErrStreamState, "dispatch", "session is closed")
	}
	<-j.done
	return nil
}

func call[T any](ctx context.Context, a *AsyncSession, op string, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	if derr := a.dispatch(ctx, func() { v, err = fn() }); derr != nil {
		var zero T
		return zero, derr
	}
	return v, a.s.report(op, err)
}

func exec(ctx context.Context, a *AsyncSession, op string, fn func() error) error {
	_, err := call(ctx, a, op, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Info returns the device description.
func (a *AsyncSession) Info() CameraInfo { return a.s.info }

// BackendKind returns the driver kind.
func (a *AsyncSession) BackendKind() BackendKind { return a.s.backend.Kind() }

// State returns the stream state as of the last completed call.
func (a *AsyncSession) State() StreamState { return a.s.State() }

// IsStreamOpen reports whether the stream is open.
func (a *AsyncSession) IsStreamOpen() bool { return a.s.State() == StateOpen }

// CameraFormat returns the last format the backend acknowledged.
func (a *AsyncSession) CameraFormat() CameraFormat { return a.s.CameraFormat() }

// RefreshCameraFormat re-reads the format from the backend.
func (a *AsyncSession) RefreshCameraFormat(ctx context.Context) (CameraFormat, error) {
	return call(ctx, a, "refresh format", a.s.refreshCameraFormat)
}

// CompatibleFourCCs lists the frame formats the device offers.
func (a *AsyncSession) CompatibleFourCCs(ctx context.Context) ([]FrameFormat, error) {
	return call(ctx, a, "query fourccs", a.s.compatibleFourCCs)
}

// CompatibleResolutions maps resolutions offered for fourcc to frame rates.
func (a *AsyncSession) CompatibleResolutions(ctx context.Context, fourcc FrameFormat) (map[Resolution][]FrameRate, error) {
	return call(ctx, a, "query formats", func() (map[Resolution][]FrameRate, error) {
		return a.s.compatibleResolutions(fourcc)
	})
}

// CompatibleFormats returns every supported format, unsorted.
func (a *AsyncSession) CompatibleFormats(ctx context.Context) ([]CameraFormat, error) {
	return call(ctx, a, "compatible formats", a.s.compatibleFormats)
}

// SetCameraFormat applies f. An open stream is restarted around the change.
func (a *AsyncSession) SetCameraFormat(ctx context.Context, f CameraFormat) error {
	return exec(ctx, a, "set format", func() error { return a.s.setCameraFormat(f) })
}

// SetResolution changes the resolution.
func (a *AsyncSession) SetResolution(ctx context.Context, res Resolution) error {
	return exec(ctx, a, "set resolution", func() error { return a.s.setResolution(res) })
}

// SetFrameRate changes the frame rate.
func (a *AsyncSession) SetFrameRate(ctx context.Context, rate FrameRate) error {
	return exec(ctx, a, "set frame rate", func() error { return a.s.setFrameRate(rate) })
}

// SetFrameFormat changes the encoding.
func (a *AsyncSession) SetFrameFormat(ctx context.Context, format FrameFormat) error {
	return exec(ctx, a, "set frame format", func() error { return a.s.setFrameFormat(format) })
}

// CameraControl returns one control.
func (a *AsyncSession) CameraControl(ctx context.Context, id KnownCameraControl) (CameraControl, error) {
	return call(ctx, a, "control", func() (CameraControl, error) { return a.s.cameraControl(id) })
}

// CameraControls returns every control the device exposes.
func (a *AsyncSession) CameraControls(ctx context.Context) ([]CameraControl, error) {
	return call(ctx, a, "controls", a.s.cameraControls)
}

// SetCameraControl validates value and forwards it to the backend.
func (a *AsyncSession) SetCameraControl(ctx context.Context, id KnownCameraControl, value ControlValue) error {
	return exec(ctx, a, "set control", func() error { return a.s.setCameraControl(id, value) })
}

// OpenStream starts streaming.
func (a *AsyncSession) OpenStream(ctx context.Context) error {
	return exec(ctx, a, "open", a.s.openStream)
}

// Frame captures one frame.
func (a *AsyncSession) Frame(ctx context.Context) (*Buffer, error) {
	return call(ctx, a, "frame", a.s.frame)
}

// FrameRaw captures one frame and returns its bytes.
func (a *AsyncSession) FrameRaw(ctx context.Context) ([]byte, error) {
	return call(ctx, a, "frame", a.s.frameRaw)
}

// StopStream stops streaming.
func (a *AsyncSession) StopStream(ctx context.Context) error {
	return exec(ctx, a, "stop", a.s.stopStream)
}

// OneShot captures a single frame as one uninterruptible unit.
func (a *AsyncSession) OneShot(ctx context.Context) (*Buffer, error) {
	return call(ctx, a, "one shot", a.s.oneShot)
}

// Close stops the stream, releases the device and ends the worker. If ctx
// ends first the session stays usable and Close may be retried.
func (a *AsyncSession) Close(ctx context.Context) error {
	var err error
	if derr := a.dispatch(ctx, func() { err = a.s.close() }); derr != nil {
		if HasCode(derr, ErrStreamState) {
			return nil
		}
		return derr
	}
	a.shutdown()
	return a.s.report("close", err)
}
