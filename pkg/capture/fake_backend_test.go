package capture

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

var errFake = errors.New("fake failure")

// fakeBackend is an in-memory Backend that records calls and can be told to
// fail specific operations.
type fakeBackend struct {
	mu sync.Mutex

	index   CameraIndex
	fourccs []FrameFormat
	modes   map[FrameFormat]map[Resolution][]FrameRate
	format  CameraFormat
	open    bool
	seq     uint64

	controls map[KnownCameraControl]CameraControl

	// failures maps an operation name to the error it returns.
	failures map[string]error
	// closeKeepsOpen leaves the device open when Close fails.
	closeKeepsOpen bool
	// substitute replaces the applied format, like drivers that round.
	substitute func(CameraFormat) CameraFormat

	calls []string
}

func newFakeBackend(index uint32) *fakeBackend {
	return &fakeBackend{
		index:   IndexNumber(index),
		fourccs: []FrameFormat{FormatMJPEG, FormatYUYV},
		modes: map[FrameFormat]map[Resolution][]FrameRate{
			FormatMJPEG: {
				{Width: 640, Height: 480}:  {FPS(15), FPS(30)},
				{Width: 1280, Height: 720}: {FPS(30)},
			},
			FormatYUYV: {
				{Width: 640, Height: 480}: {FPS(30)},
			},
		},
		format: DefaultFormat(),
		controls: map[KnownCameraControl]CameraControl{
			ControlBrightness: {
				ID: ControlBrightness, Name: "Brightness", Kind: ControlKindInteger,
				Current: IntegerValue(0), Min: -64, Max: 64, Step: 1,
			},
			ControlGain: {
				ID: ControlGain, Name: "Gain", Kind: ControlKindInteger,
				Current: IntegerValue(10), Min: 0, Max: 100, Step: 10,
			},
			ControlWhiteBalance: {
				ID: ControlWhiteBalance, Name: "White Balance Auto", Kind: ControlKindBoolean,
				Current: BoolValue(true), Min: 0, Max: 1, Step: 1,
			},
		},
		failures: make(map[string]error),
	}
}

func (f *fakeBackend) record(op string) error {
	f.calls = append(f.calls, op)
	return f.failures[op]
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) count(op string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Kind() BackendKind { return BackendVirtual }

func (f *fakeBackend) Info() CameraInfo {
	return CameraInfo{Index: f.index, HumanName: fmt.Sprintf("Fake %s", f.index), Backend: BackendVirtual}
}

func (f *fakeBackend) QueryFourCCs() ([]FrameFormat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("query_fourccs"); err != nil {
		return nil, err
	}
	return append([]FrameFormat(nil), f.fourccs...), nil
}

func (f *fakeBackend) QueryFormats(fourcc FrameFormat) (map[Resolution][]FrameRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("query_formats"); err != nil {
		return nil, err
	}
	out := make(map[Resolution][]FrameRate)
	for res, rates := range f.modes[fourcc] {
		out[res] = append([]FrameRate(nil), rates...)
	}
	return out, nil
}

func (f *fakeBackend) Format() (CameraFormat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("format"); err != nil {
		return CameraFormat{}, err
	}
	return f.format, nil
}

func (f *fakeBackend) ApplyFormat(format CameraFormat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("apply"); err != nil {
		return err
	}
	if f.substitute != nil {
		format = f.substitute(format)
	}
	f.format = format
	return nil
}

func (f *fakeBackend) Control(id KnownCameraControl) (CameraControl, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("control"); err != nil {
		return CameraControl{}, err
	}
	c, ok := f.controls[id]
	if !ok {
		return CameraControl{}, NewError(ErrUnsupportedOperation, "", "no such control")
	}
	return c, nil
}

func (f *fakeBackend) Controls() ([]CameraControl, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("controls"); err != nil {
		return nil, err
	}
	var out []CameraControl
	for _, id := range KnownControls() {
		if c, ok := f.controls[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBackend) SetControl(id KnownCameraControl, value ControlValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("set_control"); err != nil {
		return err
	}
	c := f.controls[id]
	c.Current = value
	f.controls[id] = c
	return nil
}

func (f *fakeBackend) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("open"); err != nil {
		return err
	}
	f.open = true
	return nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("close"); err != nil {
		if !f.closeKeepsOpen {
			f.open = false
		}
		return err
	}
	f.open = false
	return nil
}

func (f *fakeBackend) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeBackend) PullFrame() (Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("pull"); err != nil {
		return Frame{}, err
	}
	if !f.open {
		return Frame{}, errors.New("pull on closed device")
	}
	f.seq++
	data := []byte(fmt.Sprintf("%s#%d", f.format, f.seq))
	return Frame{Data: data, Resolution: f.format.Resolution, Format: f.format.Format, Sequence: f.seq}, nil
}

// recordingObserver collects notifications.
type recordingObserver struct {
	NopObserver
	mu          sync.Mutex
	transitions []string
	failures    []string
	formats     []CameraFormat
	frames      int
}

func (r *recordingObserver) StateChanged(_ CameraInfo, from, to StreamState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from.String()+"->"+to.String())
}

func (r *recordingObserver) FormatChanged(_ CameraInfo, f CameraFormat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append(r.formats, f)
}

func (r *recordingObserver) FrameCaptured(CameraInfo, *Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
}

func (r *recordingObserver) OperationFailed(_ CameraInfo, op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op)
}

func testOptions() Options {
	return Options{Registry: NewRegistry()}
}

func newTestSession(t *testing.T, backend Backend, opts Options) *Session {
	t.Helper()
	s, err := NewSession(backend, opts)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}
