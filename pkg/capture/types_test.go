package capture

import (
	"errors"
	"testing"
)

func TestCameraIndex(t *testing.T) {
	tests := []struct {
		name    string
		index   CameraIndex
		want    string
		wantNum uint32
		wantErr bool
	}{
		{name: "number", index: IndexNumber(2), want: "2", wantNum: 2},
		{name: "numeric string", index: IndexString("7"), want: "7", wantNum: 7},
		{name: "path string", index: IndexString("usb-cam-0"), want: "usb-cam-0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.index.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			n, err := tt.index.Number()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Number() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && n != tt.wantNum {
				t.Errorf("Number() = %d, want %d", n, tt.wantNum)
			}
		})
	}

	if IndexNumber(1) == IndexString("1") {
		t.Error("numeric and string indices must stay distinct map keys")
	}
	if ParseIndex("3") != IndexNumber(3) {
		t.Error("ParseIndex should produce numeric index for decimals")
	}
}

func TestNewFrameRate(t *testing.T) {
	tests := []struct {
		num, den uint32
		want     FrameRate
		wantErr  bool
	}{
		{num: 30, den: 1, want: FPS(30)},
		{num: 60, den: 2, want: FPS(30)},
		{num: 30000, den: 1001, want: FrameRate{Numerator: 30000, Denominator: 1001}},
		{num: 0, den: 5, want: FrameRate{Numerator: 0, Denominator: 1}},
		{num: 30, den: 0, wantErr: true},
	}

	for _, tt := range tests {
		got, err := NewFrameRate(tt.num, tt.den)
		if (err != nil) != tt.wantErr {
			t.Fatalf("NewFrameRate(%d, %d) error = %v", tt.num, tt.den, err)
		}
		if tt.wantErr {
			if !HasCode(err, ErrInvalidFormat) {
				t.Errorf("expected INVALID_FORMAT, got %v", err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("NewFrameRate(%d, %d) = %v, want %v", tt.num, tt.den, got, tt.want)
		}
	}
}

func TestFrameRateCompare(t *testing.T) {
	ntsc := FrameRate{Numerator: 30000, Denominator: 1001}
	if ntsc.Compare(FPS(30)) >= 0 {
		t.Error("29.97 should sort before 30")
	}
	if FPS(30).Compare(FrameRate{Numerator: 60, Denominator: 2}) != 0 {
		t.Error("30/1 and 60/2 should compare equal")
	}
	if got := ntsc.String(); got != "30000/1001" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseCameraFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    CameraFormat
		wantErr bool
	}{
		{in: "1280x720@30 MJPG", want: NewCameraFormat(Resolution{1280, 720}, FormatMJPEG, FPS(30))},
		{in: "640x480@15 yuyv", want: NewCameraFormat(Resolution{640, 480}, FormatYUYV, FPS(15))},
		{in: "1920x1080", want: NewCameraFormat(Resolution{1920, 1080}, FormatMJPEG, FPS(30))},
		{in: "1920x1080@30000/1001 NV12", want: NewCameraFormat(Resolution{1920, 1080}, FormatNV12, FrameRate{30000, 1001})},
		{in: "wide", wantErr: true},
		{in: "640x480@x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCameraFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCameraFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseCameraFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCameraFormatValidate(t *testing.T) {
	tests := []struct {
		name   string
		format CameraFormat
		valid  bool
	}{
		{name: "default", format: DefaultFormat(), valid: true},
		{name: "zero width", format: NewCameraFormat(Resolution{0, 480}, FormatMJPEG, FPS(30))},
		{name: "zero rate", format: NewCameraFormat(Resolution{640, 480}, FormatMJPEG, FrameRate{})},
		{name: "no fourcc", format: NewCameraFormat(Resolution{640, 480}, 0, FPS(30))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.valid && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !tt.valid && !HasCode(err, ErrInvalidFormat) {
				t.Fatalf("Validate() = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestDefaultFormat(t *testing.T) {
	f := DefaultFormat()
	if f.String() != "640x480@15 MJPG" {
		t.Errorf("DefaultFormat() = %s", f)
	}
}

func TestFrameFormat(t *testing.T) {
	if FormatMJPEG != FrameFormat(0x47504a4d) {
		t.Errorf("MJPG fourcc = 0x%08x", uint32(FormatMJPEG))
	}
	if FormatYUYV != FrameFormat(0x56595559) {
		t.Errorf("YUYV fourcc = 0x%08x", uint32(FormatYUYV))
	}

	tests := []struct {
		in   string
		want FrameFormat
	}{
		{"mjpeg", FormatMJPEG},
		{"MJPG", FormatMJPEG},
		{"gray", FormatGRAY},
		{"GREY", FormatGRAY},
		{"rgb", FormatRGB24},
		{"Y16", FourCC("Y16")},
	}
	for _, tt := range tests {
		got, err := ParseFrameFormat(tt.in)
		if err != nil {
			t.Fatalf("ParseFrameFormat(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFrameFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	custom := FourCC("Y16")
	if custom.IsKnown() {
		t.Error("Y16 should be a custom format")
	}
	if custom.String() != "Y16" {
		t.Errorf("String() = %q", custom.String())
	}
	if _, err := ParseFrameFormat("TOOLONG"); !HasCode(err, ErrInvalidFormat) {
		t.Errorf("expected INVALID_FORMAT, got %v", err)
	}
}

func TestErrorCodes(t *testing.T) {
	base := NewError(ErrDeviceUnavailable, "open", "busy")
	wrapped := backendError("open", base)
	if CodeOf(wrapped) != ErrDeviceUnavailable {
		t.Errorf("coded errors should keep their code, got %s", CodeOf(wrapped))
	}

	plain := backendError("pull", errFake)
	if !HasCode(plain, ErrBackend) {
		t.Errorf("plain errors should become BACKEND, got %v", plain)
	}

	if got := plain.Error(); got != "[BACKEND pull] backend call failed: fake failure" {
		t.Errorf("Error() = %q", got)
	}

	joined := errors.Join(NewError(ErrBackend, "frame", "x"), NewError(ErrStreamState, "stop", "y"))
	if !HasCode(joined, ErrStreamState) || !HasCode(joined, ErrBackend) {
		t.Error("HasCode should search joined errors")
	}
	if HasCode(nil, ErrBackend) {
		t.Error("nil carries no code")
	}
}
