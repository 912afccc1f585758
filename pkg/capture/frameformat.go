package capture

import (
	"fmt"
	"strings"
)

// FrameFormat is a pixel or container encoding identified by its FourCC.
// Formats outside the known set are built with FourCC.
type FrameFormat uint32

// Known frame formats.
var (
	FormatMJPEG = FourCC("MJPG")
	FormatYUYV  = FourCC("YUYV")
	FormatNV12  = FourCC("NV12")
	FormatGRAY  = FourCC("GREY")
	FormatRGB24 = FourCC("RGB3")
	FormatBGR24 = FourCC("BGR3")
	FormatH264  = FourCC("H264")
)

var formatAliases = map[string]FrameFormat{
	"MJPEG": FormatMJPEG,
	"JPEG":  FormatMJPEG,
	"YUY2":  FormatYUYV,
	"GRAY":  FormatGRAY,
	"RGB":   FormatRGB24,
	"RGB24": FormatRGB24,
	"BGR":   FormatBGR24,
	"BGR24": FormatBGR24,
}

// FourCC packs a four character code little-endian, the way V4L2 and most
// capture APIs do. Shorter codes are padded with spaces.
func FourCC(code string) FrameFormat {
	var b [4]byte
	for i := range b {
		if i < len(code) {
			b[i] = code[i]
		} else {
			b[i] = ' '
		}
	}
	return FrameFormat(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// ParseFrameFormat accepts a FourCC ("MJPG") or a common alias ("mjpeg").
func ParseFrameFormat(s string) (FrameFormat, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	if f, ok := formatAliases[upper]; ok {
		return f, nil
	}
	if s == "" || len(s) > 4 {
		return 0, NewError(ErrInvalidFormat, "parse", fmt.Sprintf("unknown frame format %q", s))
	}
	if f := FourCC(upper); f.IsKnown() {
		return f, nil
	}
	// custom codes are case sensitive
	return FourCC(s), nil
}

// Code returns the four character code.
func (f FrameFormat) Code() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return strings.TrimRight(string(b), " \x00")
}

// IsKnown reports whether f is one of the predefined formats.
func (f FrameFormat) IsKnown() bool {
	switch f {
	case FormatMJPEG, FormatYUYV, FormatNV12, FormatGRAY, FormatRGB24, FormatBGR24, FormatH264:
		return true
	}
	return false
}

// IsCompressed reports whether frames carry a compressed bitstream rather than
// raw pixels.
func (f FrameFormat) IsCompressed() bool {
	return f == FormatMJPEG || f == FormatH264
}

func (f FrameFormat) String() string {
	return f.Code()
}

// MarshalText implements encoding.TextMarshaler.
func (f FrameFormat) MarshalText() ([]byte, error) {
	return []byte(f.Code()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FrameFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseFrameFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
