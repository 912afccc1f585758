package decode

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/smazurov/camcap/internal/backends/virtual"
	"github.com/smazurov/camcap/pkg/capture"
)

var testRes = capture.Resolution{Width: 32, Height: 16}

func render(t *testing.T, f capture.FrameFormat) []byte {
	t.Helper()
	data, err := virtual.Render(f, testRes, 5)
	if err != nil {
		t.Fatalf("Render(%s) error = %v", f, err)
	}
	return data
}

func TestDecodeSizes(t *testing.T) {
	sources := []capture.FrameFormat{
		capture.FormatMJPEG, capture.FormatYUYV, capture.FormatNV12,
		capture.FormatGRAY, capture.FormatRGB24, capture.FormatBGR24,
	}
	targets := []capture.PixelFormat{capture.PixelRGB24, capture.PixelRGBA, capture.PixelLuma}

	for _, src := range sources {
		raw := render(t, src)
		for _, dst := range targets {
			t.Run(src.String()+"/"+string(dst), func(t *testing.T) {
				out, err := Decode(raw, src, testRes, dst)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				want := int(testRes.Area()) * dst.BytesPerPixel()
				if len(out) != want {
					t.Errorf("len = %d, want %d", len(out), want)
				}
			})
		}
	}
}

func TestDecodeRGBMatchesBGR(t *testing.T) {
	rgb, err := Decode(render(t, capture.FormatRGB24), capture.FormatRGB24, testRes, capture.PixelRGB24)
	if err != nil {
		t.Fatal(err)
	}
	bgr, err := Decode(render(t, capture.FormatBGR24), capture.FormatBGR24, testRes, capture.PixelRGB24)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rgb, bgr) {
		t.Error("RGB24 and BGR24 renders decode differently")
	}
	if !bytes.Equal(rgb, render(t, capture.FormatRGB24)) {
		t.Error("RGB24 to rgb24 is not the identity")
	}
}

func TestDecodeGrayIdentity(t *testing.T) {
	raw := render(t, capture.FormatGRAY)
	out, err := Decode(raw, capture.FormatGRAY, testRes, capture.PixelLuma)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, raw) {
		t.Error("GRAY to luma is not the identity")
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}, capture.FormatYUYV, testRes, capture.PixelRGB24); err == nil {
		t.Error("short YUYV buffer decoded")
	}
	if _, err := Decode([]byte("not a jpeg"), capture.FormatMJPEG, testRes, capture.PixelRGB24); err == nil {
		t.Error("garbage MJPEG decoded")
	}
	if _, err := Decode(nil, capture.FormatH264, testRes, capture.PixelRGB24); err == nil {
		t.Error("H264 decoded")
	}
	if _, err := Decode(render(t, capture.FormatGRAY), capture.FormatGRAY, testRes, "cmyk"); err == nil {
		t.Error("unknown target accepted")
	}

	huge := capture.Resolution{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF}
	for _, f := range []capture.FrameFormat{capture.FormatGRAY, capture.FormatYUYV, capture.FormatNV12, capture.FormatRGB24} {
		buf := capture.NewBuffer([]byte{1, 2, 3}, huge, f)
		if _, err := buf.Decode(Decoder, capture.PixelLuma); !capture.HasCode(err, capture.ErrDecode) {
			t.Errorf("%s at %s = %v, want DECODE", f, huge, err)
		}
	}
}

func TestBufferDecodeWrapsErrors(t *testing.T) {
	buf := capture.NewBuffer([]byte{0}, testRes, capture.FormatNV12)
	if _, err := buf.Decode(Decoder, capture.PixelRGB24); !capture.HasCode(err, capture.ErrDecode) {
		t.Errorf("Buffer.Decode() = %v, want DECODE", err)
	}
}

func TestEncodeJPEG(t *testing.T) {
	mjpeg := render(t, capture.FormatMJPEG)
	out, err := EncodeJPEG(capture.NewBuffer(mjpeg, testRes, capture.FormatMJPEG), 0)
	if err != nil || !bytes.Equal(out, mjpeg) {
		t.Errorf("MJPEG passthrough = %d bytes, %v", len(out), err)
	}

	out, err = EncodeJPEG(capture.NewBuffer(render(t, capture.FormatYUYV), testRes, capture.FormatYUYV), 75)
	if err != nil {
		t.Fatalf("EncodeJPEG(YUYV) error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}
