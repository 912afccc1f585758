//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"math"
	"reflect"
	"syscall"
	"testing"
)

// TestErrnoComparison verifies that errors.Is sees through the wrapping used
// by Device methods, which callers rely on to classify failures.
func TestErrnoComparison(t *testing.T) {
	d := &Device{fd: -1}
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"EBADF from get format", func() error { _, err := d.GetFormat(); return err }(), syscall.EBADF},
		{"EBADF from set control", d.SetControl(CIDBrightness, 1), syscall.EBADF},
		{"ENOTTY passthrough", errors.Join(syscall.ENOTTY), syscall.ENOTTY},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
		})
	}
}

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{name: "YUYV format", format: PixFmtYUYV, expected: "YUYV"},
		{name: "MJPEG format", format: PixFmtMJPEG, expected: "MJPG"},
		{name: "H264 format", format: PixFmtH264, expected: "H264"},
		{name: "HEVC format", format: PixFmtHEVC, expected: "HEVC"},
		{name: "NV12 format", format: PixFmtNV12, expected: "NV12"},
		{name: "GREY format", format: PixFmtGrey, expected: "GREY"},
		{name: "RGB24 format", format: PixFmtRGB24, expected: "RGB3"},
		{name: "BGR24 format", format: PixFmtBGR24, expected: "BGR3"},
		{name: "null bytes", format: 0x00000000, expected: "\x00\x00\x00\x00"},
		{name: "mixed bytes", format: 0x01020304, expected: "\x04\x03\x02\x01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{"60 fps (1/60)", Framerate{Numerator: 1, Denominator: 60}, 60.0},
		{"30 fps (1/30)", Framerate{Numerator: 1, Denominator: 30}, 30.0},
		{"29.97 fps (1001/30000)", Framerate{Numerator: 1001, Denominator: 30000}, 30000.0 / 1001.0},
		{"zero numerator returns 0", Framerate{Numerator: 0, Denominator: 60}, 0.0},
		{"zero denominator", Framerate{Numerator: 1, Denominator: 0}, 0.0},
		{"large values", Framerate{Numerator: 1000000, Denominator: 60000000}, 60.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("Framerate{%d, %d}.FPS() = %f, want %f",
					tt.framerate.Numerator, tt.framerate.Denominator,
					result, tt.expectedFPS)
			}
		})
	}
}

func TestStepwiseResolutions(t *testing.T) {
	tests := []struct {
		name     string
		sw       v4l2FrmsizeStepwise
		expected []Resolution
	}{
		{
			name: "continuous up to 720p",
			sw: v4l2FrmsizeStepwise{
				minWidth: 320, maxWidth: 1280, stepWidth: 1,
				minHeight: 240, maxHeight: 720, stepHeight: 1,
			},
			expected: []Resolution{{320, 240}, {640, 480}, {800, 600}, {1280, 720}},
		},
		{
			name: "step of 64 filters off-grid sizes",
			sw: v4l2FrmsizeStepwise{
				minWidth: 0, maxWidth: 1920, stepWidth: 64,
				minHeight: 0, maxHeight: 1080, stepHeight: 8,
			},
			expected: []Resolution{{320, 240}, {640, 480}, {1024, 768}, {1280, 720}, {1280, 960}, {1280, 1024}, {1920, 1080}},
		},
		{
			name:     "range below every common size",
			sw:       v4l2FrmsizeStepwise{minWidth: 16, maxWidth: 160, stepWidth: 1, minHeight: 16, maxHeight: 120, stepHeight: 1},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stepwiseResolutions(&tt.sw)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("stepwiseResolutions() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestStepwiseFramerates(t *testing.T) {
	// intervals from 1/30 s to 1/5 s
	sw := v4l2FrmivalStepwise{
		min:  v4l2Fract{1, 30},
		max:  v4l2Fract{1, 5},
		step: v4l2Fract{1, 30},
	}
	expected := []Framerate{{1, 30}, {1, 25}, {1, 20}, {1, 15}, {1, 10}, {1, 5}}
	if result := stepwiseFramerates(&sw); !reflect.DeepEqual(result, expected) {
		t.Errorf("stepwiseFramerates() = %v, want %v", result, expected)
	}
}

func TestQuerymenuValue(t *testing.T) {
	m := v4l2Querymenu{}
	copy(m.name[:], []byte{0x00, 0x6a, 0x18, 0x00, 0x00, 0x00, 0x00, 0x00})
	if got := m.value(); got != 1600000 {
		t.Errorf("value() = %d, want 1600000", got)
	}
}

func TestIoctlNumbers(t *testing.T) {
	// _IOC(dir, 'V', nr, size) with dir in the top two bits and size in bits 16-29.
	ioc := func(dir, nr, size uint32) uint32 {
		return dir<<30 | size<<16 | 'V'<<8 | nr
	}
	const (
		read      = 2
		write     = 1
		readWrite = 3
	)
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"QUERYCAP", vidiocQuerycap, ioc(read, 0, 104)},
		{"ENUM_FMT", vidiocEnumFmt, ioc(readWrite, 2, 64)},
		{"G_FMT", vidiocGFmt, ioc(readWrite, 4, 208)},
		{"S_FMT", vidiocSFmt, ioc(readWrite, 5, 208)},
		{"REQBUFS", vidiocReqbufs, ioc(readWrite, 8, 20)},
		{"QUERYBUF", vidiocQuerybuf, ioc(readWrite, 9, 88)},
		{"QBUF", vidiocQbuf, ioc(readWrite, 15, 88)},
		{"DQBUF", vidiocDqbuf, ioc(readWrite, 17, 88)},
		{"STREAMON", vidiocStreamon, ioc(write, 18, 4)},
		{"STREAMOFF", vidiocStreamoff, ioc(write, 19, 4)},
		{"G_PARM", vidiocGParm, ioc(readWrite, 21, 204)},
		{"S_PARM", vidiocSParm, ioc(readWrite, 22, 204)},
		{"G_CTRL", vidiocGCtrl, ioc(readWrite, 27, 8)},
		{"S_CTRL", vidiocSCtrl, ioc(readWrite, 28, 8)},
		{"QUERYCTRL", vidiocQueryctrl, ioc(readWrite, 36, 68)},
		{"QUERYMENU", vidiocQuerymenu, ioc(readWrite, 37, 44)},
		{"ENUM_FRAMESIZES", vidiocEnumFramesizes, ioc(readWrite, 74, 44)},
		{"ENUM_FRAMEINTERVALS", vidiocEnumFrameintervals, ioc(readWrite, 75, 52)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("VIDIOC_%s = 0x%08x, want 0x%08x", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestReadFrameNotStreaming(t *testing.T) {
	d := &Device{fd: -1}
	if _, err := d.ReadFrame(0); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("ReadFrame() = %v, want ErrNotStreaming", err)
	}
	if err := d.StopStreaming(); err != nil {
		t.Errorf("StopStreaming() on idle device = %v", err)
	}
}

func TestCstr(t *testing.T) {
	if got := cstr([]byte{'u', 'v', 'c', 0, 'x'}); got != "uvc" {
		t.Errorf("cstr() = %q", got)
	}
	if got := cstr([]byte("full")); got != "full" {
		t.Errorf("cstr() = %q", got)
	}
}
