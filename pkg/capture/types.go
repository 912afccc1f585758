package capture

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// BackendKind names the driver technology behind a Backend.
type BackendKind string

// Backend kinds.
const (
	BackendAuto         BackendKind = "auto"
	BackendV4L2         BackendKind = "v4l2"
	BackendVirtual      BackendKind = "virtual"
	BackendAVFoundation BackendKind = "avfoundation"
	BackendMSMF         BackendKind = "msmf"
)

// CameraIndex identifies a physical device, either by number or by a
// backend-specific string such as a stable by-id name.
type CameraIndex struct {
	num   uint32
	str   string
	isStr bool
}

// IndexNumber returns a numeric CameraIndex.
func IndexNumber(n uint32) CameraIndex {
	return CameraIndex{num: n}
}

// IndexString returns a string CameraIndex.
func IndexString(s string) CameraIndex {
	return CameraIndex{str: s, isStr: true}
}

// ParseIndex returns a numeric index when s is a decimal number and a string
// index otherwise.
func ParseIndex(s string) CameraIndex {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return IndexNumber(uint32(n))
	}
	return IndexString(s)
}

// IsNumber reports whether the index was constructed from a number.
func (i CameraIndex) IsNumber() bool {
	return !i.isStr
}

// Number returns the numeric form of the index. String indices are parsed.
func (i CameraIndex) Number() (uint32, error) {
	if !i.isStr {
		return i.num, nil
	}
	n, err := strconv.ParseUint(i.str, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("camera index %q is not numeric: %w", i.str, err)
	}
	return uint32(n), nil
}

func (i CameraIndex) String() string {
	if i.isStr {
		return i.str
	}
	return strconv.FormatUint(uint64(i.num), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (i CameraIndex) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseIndex.
func (i *CameraIndex) UnmarshalText(text []byte) error {
	*i = ParseIndex(string(text))
	return nil
}

// CameraInfo describes an enumerated device.
type CameraInfo struct {
	Index       CameraIndex `json:"index"`
	HumanName   string      `json:"human_name"`
	Description string      `json:"description"`
	Misc        string      `json:"misc"`
	Backend     BackendKind `json:"backend"`
}

func (c CameraInfo) String() string {
	return fmt.Sprintf("%s (%s #%s)", c.HumanName, c.Backend, c.Index)
}

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// ParseResolution parses "WIDTHxHEIGHT".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, NewError(ErrInvalidFormat, "parse", fmt.Sprintf("resolution %q must be WIDTHxHEIGHT", s))
	}
	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return Resolution{}, WrapError(ErrInvalidFormat, "parse", "invalid width", err)
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return Resolution{}, WrapError(ErrInvalidFormat, "parse", "invalid height", err)
	}
	return Resolution{Width: uint32(width), Height: uint32(height)}, nil
}

// Area returns the pixel count.
func (r Resolution) Area() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}

// Compare orders resolutions by area, then width.
func (r Resolution) Compare(o Resolution) int {
	if c := cmp.Compare(r.Area(), o.Area()); c != 0 {
		return c
	}
	return cmp.Compare(r.Width, o.Width)
}

// Less reports whether r sorts before o.
func (r Resolution) Less(o Resolution) bool {
	return r.Compare(o) < 0
}

// IsZero reports whether either dimension is zero.
func (r Resolution) IsZero() bool {
	return r.Width == 0 || r.Height == 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// FrameRate is a frame rate in frames per second, kept as a reduced fraction
// so that rates reported by hardware as intervals (1001/30000) stay exact.
type FrameRate struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// FPS returns an integral frame rate.
func FPS(n uint32) FrameRate {
	return FrameRate{Numerator: n, Denominator: 1}
}

// NewFrameRate returns num/den frames per second in lowest terms.
func NewFrameRate(num, den uint32) (FrameRate, error) {
	if den == 0 {
		return FrameRate{}, NewError(ErrInvalidFormat, "framerate", "denominator must not be zero")
	}
	if num == 0 {
		return FrameRate{Numerator: 0, Denominator: 1}, nil
	}
	g := gcd(num, den)
	return FrameRate{Numerator: num / g, Denominator: den / g}, nil
}

// ParseFrameRate parses "30" or "30000/1001".
func ParseFrameRate(s string) (FrameRate, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return FrameRate{}, WrapError(ErrInvalidFormat, "parse", fmt.Sprintf("invalid frame rate %q", s), err)
	}
	d := uint64(1)
	if found {
		if d, err = strconv.ParseUint(den, 10, 32); err != nil {
			return FrameRate{}, WrapError(ErrInvalidFormat, "parse", fmt.Sprintf("invalid frame rate %q", s), err)
		}
	}
	return NewFrameRate(uint32(n), uint32(d))
}

// Float returns the rate as a float.
func (f FrameRate) Float() float64 {
	if f.Denominator == 0 {
		return 0
	}
	return float64(f.Numerator) / float64(f.Denominator)
}

// IsZero reports whether the rate is unset or zero.
func (f FrameRate) IsZero() bool {
	return f.Numerator == 0 || f.Denominator == 0
}

// Compare orders rates by value.
func (f FrameRate) Compare(o FrameRate) int {
	// cross-multiply to avoid float rounding
	return cmp.Compare(uint64(f.Numerator)*uint64(o.Denominator), uint64(o.Numerator)*uint64(f.Denominator))
}

func (f FrameRate) String() string {
	if f.Denominator == 1 || f.Denominator == 0 {
		return strconv.FormatUint(uint64(f.Numerator), 10)
	}
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// CameraFormat is a negotiated capture configuration. Values are replaced,
// never mutated.
type CameraFormat struct {
	Resolution Resolution  `json:"resolution"`
	Format     FrameFormat `json:"format"`
	FrameRate  FrameRate   `json:"frame_rate"`
}

// NewCameraFormat builds a CameraFormat.
func NewCameraFormat(res Resolution, format FrameFormat, rate FrameRate) CameraFormat {
	return CameraFormat{Resolution: res, Format: format, FrameRate: rate}
}

// DefaultFormat is the conventional fallback configuration: 640x480 at 15
// frames per second, MJPEG. Sessions never apply it on their own; callers
// pass it in through Options.
func DefaultFormat() CameraFormat {
	return CameraFormat{
		Resolution: Resolution{Width: 640, Height: 480},
		Format:     FormatMJPEG,
		FrameRate:  FPS(15),
	}
}

// ParseCameraFormat parses "1280x720@30 MJPG". The rate and format are
// optional and default to 30 fps and MJPEG.
func ParseCameraFormat(s string) (CameraFormat, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return CameraFormat{}, NewError(ErrInvalidFormat, "parse", fmt.Sprintf("camera format %q must be WxH[@FPS] [FOURCC]", s))
	}
	resPart, ratePart, hasRate := strings.Cut(fields[0], "@")
	res, err := ParseResolution(resPart)
	if err != nil {
		return CameraFormat{}, err
	}
	rate := FPS(30)
	if hasRate {
		if rate, err = ParseFrameRate(ratePart); err != nil {
			return CameraFormat{}, err
		}
	}
	format := FormatMJPEG
	if len(fields) == 2 {
		if format, err = ParseFrameFormat(fields[1]); err != nil {
			return CameraFormat{}, err
		}
	}
	return CameraFormat{Resolution: res, Format: format, FrameRate: rate}, nil
}

// Width returns the frame width.
func (f CameraFormat) Width() uint32 { return f.Resolution.Width }

// Height returns the frame height.
func (f CameraFormat) Height() uint32 { return f.Resolution.Height }

// IsZero reports whether the format is the zero value.
func (f CameraFormat) IsZero() bool {
	return f == CameraFormat{}
}

// Validate checks that every field is usable. It never touches a backend.
func (f CameraFormat) Validate() error {
	switch {
	case f.Resolution.IsZero():
		return NewError(ErrInvalidFormat, "validate", fmt.Sprintf("resolution %s has a zero dimension", f.Resolution))
	case f.FrameRate.IsZero():
		return NewError(ErrInvalidFormat, "validate", "frame rate must be positive")
	case f.Format == 0:
		return NewError(ErrInvalidFormat, "validate", "frame format is not set")
	}
	return nil
}

func (f CameraFormat) String() string {
	return fmt.Sprintf("%s@%s %s", f.Resolution, f.FrameRate, f.Format)
}
