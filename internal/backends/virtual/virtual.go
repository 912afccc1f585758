// Package virtual implements a synthetic capture.Backend that renders a
// moving test pattern. It needs no hardware and supports failure injection.
package virtual

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/camcap/pkg/capture"
)

// Operation names accepted by Fail.
const (
	OpQueryFourCCs = "query_fourccs"
	OpQueryFormats = "query_formats"
	OpFormat       = "format"
	OpApply        = "apply"
	OpControl      = "control"
	OpControls     = "controls"
	OpSetControl   = "set_control"
	OpOpen         = "open"
	OpClose        = "close"
	OpPull         = "pull"
)

// Modes maps each pixel format to its resolutions and their frame rates.
type Modes map[capture.FrameFormat]map[capture.Resolution][]capture.FrameRate

// Config describes the simulated camera.
type Config struct {
	Name string
	// FourCCs orders the formats reported by QueryFourCCs. At most two are
	// reported.
	FourCCs  []capture.FrameFormat
	Modes    Modes
	Initial  capture.CameraFormat
	Controls []capture.CameraControl
	// Pace sleeps between frames to honour the frame rate.
	Pace   bool
	Logger *slog.Logger
}

// DefaultConfig is a 720p webcam offering MJPEG and YUYV.
func DefaultConfig() Config {
	return Config{
		Name:    "Virtual Camera",
		FourCCs: []capture.FrameFormat{capture.FormatMJPEG, capture.FormatYUYV},
		Modes: Modes{
			capture.FormatMJPEG: {
				{Width: 640, Height: 480}:   {capture.FPS(15), capture.FPS(30)},
				{Width: 1280, Height: 720}:  {capture.FPS(15), capture.FPS(30)},
				{Width: 1920, Height: 1080}: {capture.FPS(15)},
			},
			capture.FormatYUYV: {
				{Width: 320, Height: 240}:  {capture.FPS(30)},
				{Width: 640, Height: 480}:  {capture.FPS(15), capture.FPS(30)},
				{Width: 1280, Height: 720}: {capture.FPS(10)},
			},
		},
		Initial: capture.DefaultFormat(),
		Controls: []capture.CameraControl{
			intControl(capture.ControlBrightness, -64, 64, 1, 0),
			intControl(capture.ControlContrast, 0, 100, 1, 50),
			intControl(capture.ControlSaturation, 0, 100, 1, 64),
			intControl(capture.ControlGain, 0, 100, 10, 0),
			intControl(capture.ControlExposure, 1, 5000, 1, 156),
			{
				ID: capture.ControlWhiteBalance, Name: "White Balance, Auto", Kind: capture.ControlKindBoolean,
				Current: capture.BoolValue(true), Min: 0, Max: 1, Step: 1, Default: 1,
			},
			{
				ID: capture.ControlOther(0x00980918), Name: "Power Line Frequency", Kind: capture.ControlKindEnum,
				Current: capture.EnumValue(1), Min: 0, Max: 2, Step: 1, Default: 1,
				Menu: []capture.MenuEntry{{Index: 0, Name: "Disabled"}, {Index: 1, Name: "50 Hz"}, {Index: 2, Name: "60 Hz"}},
			},
		},
	}
}

func intControl(id capture.KnownCameraControl, lo, hi, step, def int64) capture.CameraControl {
	return capture.CameraControl{
		ID: id, Name: id.String(), Kind: capture.ControlKindInteger,
		Current: capture.IntegerValue(def), Min: lo, Max: hi, Step: step, Default: def,
	}
}

// Backend is a synthetic camera.
type Backend struct {
	index  capture.CameraIndex
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	format   capture.CameraFormat
	controls []capture.CameraControl
	open     bool
	released bool
	seq      uint64
	next     time.Time
	failures map[string]error
}

var _ capture.Backend = (*Backend)(nil)
var _ capture.Releaser = (*Backend)(nil)

// New creates a virtual camera. Zero fields of cfg take DefaultConfig values.
func New(index capture.CameraIndex, cfg Config) (*Backend, error) {
	d := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = d.Name
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = d.Modes
		if len(cfg.FourCCs) == 0 {
			cfg.FourCCs = d.FourCCs
		}
	}
	if len(cfg.FourCCs) == 0 {
		for f := range cfg.Modes {
			cfg.FourCCs = append(cfg.FourCCs, f)
		}
		slices.Sort(cfg.FourCCs)
	}
	if cfg.Controls == nil {
		cfg.Controls = d.Controls
	}
	if cfg.Initial.IsZero() {
		cfg.Initial = d.Initial
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Initial.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Modes.offers(cfg.Initial) {
		return nil, capture.NewError(capture.ErrInvalidFormat, "open", fmt.Sprintf("initial format %s is not offered", cfg.Initial))
	}

	return &Backend{
		index:    index,
		cfg:      cfg,
		logger:   cfg.Logger.With("camera", index.String()),
		format:   cfg.Initial,
		controls: slices.Clone(cfg.Controls),
		failures: make(map[string]error),
	}, nil
}

func (m Modes) offers(f capture.CameraFormat) bool {
	rates, ok := m[f.Format][f.Resolution]
	return ok && slices.Contains(rates, f.FrameRate)
}

// Fail makes every later call of op return err. A nil err clears it.
func (b *Backend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Sequence returns how many frames have been produced since the last Open.
func (b *Backend) Sequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// check must be called with mu held.
func (b *Backend) check(op string) error {
	if b.released {
		return capture.NewError(capture.ErrDeviceUnavailable, op, "camera released")
	}
	return b.failures[op]
}

// Kind returns capture.BackendVirtual.
func (b *Backend) Kind() capture.BackendKind { return capture.BackendVirtual }

// Info describes the camera.
func (b *Backend) Info() capture.CameraInfo {
	return capture.CameraInfo{
		Index:       b.index,
		HumanName:   b.cfg.Name,
		Description: "synthetic test pattern",
		Misc:        "virtual:" + b.index.String(),
		Backend:     capture.BackendVirtual,
	}
}

// QueryFourCCs returns up to two configured formats.
func (b *Backend) QueryFourCCs() ([]capture.FrameFormat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpQueryFourCCs); err != nil {
		return nil, err
	}
	out := slices.Clone(b.cfg.FourCCs)
	if len(out) > 2 {
		out = out[:2]
	}
	return out, nil
}

// QueryFormats returns the resolution table of fourcc.
func (b *Backend) QueryFormats(fourcc capture.FrameFormat) (map[capture.Resolution][]capture.FrameRate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpQueryFormats); err != nil {
		return nil, err
	}
	modes, ok := b.cfg.Modes[fourcc]
	if !ok {
		return map[capture.Resolution][]capture.FrameRate{}, nil
	}
	out := make(map[capture.Resolution][]capture.FrameRate, len(modes))
	for res, rates := range modes {
		out[res] = slices.Clone(rates)
	}
	return out, nil
}

// Format returns the active format.
func (b *Backend) Format() (capture.CameraFormat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpFormat); err != nil {
		return capture.CameraFormat{}, err
	}
	return b.format, nil
}

// ApplyFormat switches mode. Like a real driver it snaps an unsupported
// frame rate to the nearest offered one, but rejects unknown formats and
// resolutions.
func (b *Backend) ApplyFormat(format capture.CameraFormat) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpApply); err != nil {
		return err
	}
	if b.open {
		return capture.NewError(capture.ErrDeviceUnavailable, OpApply, "device busy while streaming")
	}
	rates, ok := b.cfg.Modes[format.Format][format.Resolution]
	if !ok || len(rates) == 0 {
		return capture.NewError(capture.ErrInvalidFormat, OpApply, fmt.Sprintf("mode %s %s not offered", format.Format, format.Resolution))
	}

	applied := format
	applied.FrameRate = nearestRate(rates, format.FrameRate)
	if applied.FrameRate != format.FrameRate {
		b.logger.Debug("Adjusted frame rate", "requested", format.FrameRate.String(), "applied", applied.FrameRate.String())
	}
	b.format = applied
	return nil
}

func nearestRate(rates []capture.FrameRate, want capture.FrameRate) capture.FrameRate {
	best := rates[0]
	for _, r := range rates[1:] {
		if math.Abs(r.Float()-want.Float()) < math.Abs(best.Float()-want.Float()) {
			best = r
		}
	}
	return best
}

// Control returns one control.
func (b *Backend) Control(id capture.KnownCameraControl) (capture.CameraControl, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpControl); err != nil {
		return capture.CameraControl{}, err
	}
	i := b.controlIndex(id)
	if i < 0 {
		return capture.CameraControl{}, capture.NewError(capture.ErrUnsupportedOperation, OpControl, fmt.Sprintf("no %s control", id))
	}
	return cloneControl(b.controls[i]), nil
}

// Controls returns every control.
func (b *Backend) Controls() ([]capture.CameraControl, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpControls); err != nil {
		return nil, err
	}
	out := make([]capture.CameraControl, len(b.controls))
	for i, c := range b.controls {
		out[i] = cloneControl(c)
	}
	return out, nil
}

// SetControl stores value as the current value.
func (b *Backend) SetControl(id capture.KnownCameraControl, value capture.ControlValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpSetControl); err != nil {
		return err
	}
	i := b.controlIndex(id)
	if i < 0 {
		return capture.NewError(capture.ErrUnsupportedOperation, OpSetControl, fmt.Sprintf("no %s control", id))
	}
	if value.Kind != b.controls[i].Kind {
		return capture.NewError(capture.ErrInvalidControlValue, OpSetControl, fmt.Sprintf("%s expects %s", id, b.controls[i].Kind))
	}
	b.controls[i].Current = value
	return nil
}

func (b *Backend) controlIndex(id capture.KnownCameraControl) int {
	return slices.IndexFunc(b.controls, func(c capture.CameraControl) bool { return c.ID == id })
}

func cloneControl(c capture.CameraControl) capture.CameraControl {
	c.Menu = slices.Clone(c.Menu)
	c.Current.Bytes = slices.Clone(c.Current.Bytes)
	return c
}

// Open starts the stream and resets the frame sequence.
func (b *Backend) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpOpen); err != nil {
		return err
	}
	b.open = true
	b.seq = 0
	b.next = time.Now()
	b.logger.Debug("Stream started", "format", b.format.String())
	return nil
}

// Close stops the stream.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(OpClose); err != nil {
		return err
	}
	b.open = false
	b.logger.Debug("Stream stopped", "frames", b.seq)
	return nil
}

// IsOpen reports whether the stream is on.
func (b *Backend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// PullFrame renders the next frame.
func (b *Backend) PullFrame() (capture.Frame, error) {
	b.mu.Lock()
	if err := b.check(OpPull); err != nil {
		b.mu.Unlock()
		return capture.Frame{}, err
	}
	if !b.open {
		b.mu.Unlock()
		return capture.Frame{}, capture.NewError(capture.ErrStreamState, OpPull, "stream is not open")
	}
	format := b.format
	seq := b.seq
	b.seq++
	var wait time.Duration
	if b.cfg.Pace {
		wait = time.Until(b.next)
		b.next = b.next.Add(frameInterval(format.FrameRate))
	}
	b.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	data, err := Render(format.Format, format.Resolution, seq)
	if err != nil {
		return capture.Frame{}, capture.WrapError(capture.ErrBackend, OpPull, "render test pattern", err)
	}
	return capture.Frame{
		Data:       data,
		Resolution: format.Resolution,
		Format:     format.Format,
		Timestamp:  time.Now(),
		Sequence:   seq,
	}, nil
}

func frameInterval(rate capture.FrameRate) time.Duration {
	if rate.Numerator == 0 {
		return 0
	}
	return time.Duration(uint64(time.Second) * uint64(rate.Denominator) / uint64(rate.Numerator))
}

// Release makes every later call fail with capture.ErrDeviceUnavailable.
func (b *Backend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.released = true
	return nil
}

// List describes count virtual cameras numbered from zero.
func List(count int, name string) []capture.CameraInfo {
	if name == "" {
		name = DefaultConfig().Name
	}
	out := make([]capture.CameraInfo, 0, count)
	for i := range count {
		index := capture.IndexNumber(uint32(i))
		out = append(out, capture.CameraInfo{
			Index:       index,
			HumanName:   fmt.Sprintf("%s %d", name, i),
			Description: "synthetic test pattern",
			Misc:        "virtual:" + index.String(),
			Backend:     capture.BackendVirtual,
		})
	}
	return out
}
