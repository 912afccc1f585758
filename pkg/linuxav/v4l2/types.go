//go:build linux && (amd64 || arm64)

package v4l2

import "time"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	BusInfo    string
	Index      int // sysfs index, which numbers nodes of one physical device
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Compressed  bool
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a frame interval as a fraction of a second, the way
// V4L2 reports it. 1/30 is 30 fps.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Format is the active capture format.
type Format struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// ControlType is the V4L2 control value type.
type ControlType uint32

// Control types.
const (
	CtrlTypeInteger     ControlType = 1
	CtrlTypeBoolean     ControlType = 2
	CtrlTypeMenu        ControlType = 3
	CtrlTypeButton      ControlType = 4
	CtrlTypeInteger64   ControlType = 5
	CtrlTypeCtrlClass   ControlType = 6
	CtrlTypeString      ControlType = 7
	CtrlTypeBitmask     ControlType = 8
	CtrlTypeIntegerMenu ControlType = 9
)

// Control flags.
const (
	CtrlFlagDisabled  = 0x0001
	CtrlFlagGrabbed   = 0x0002
	CtrlFlagReadOnly  = 0x0004
	CtrlFlagUpdate    = 0x0008
	CtrlFlagInactive  = 0x0010
	CtrlFlagSlider    = 0x0020
	CtrlFlagWriteOnly = 0x0040
	CtrlFlagVolatile  = 0x0080

	ctrlFlagNextCtrl = 0x80000000
)

// Well-known control ids.
const (
	CIDBrightness          = 0x00980900
	CIDContrast            = 0x00980901
	CIDSaturation          = 0x00980902
	CIDHue                 = 0x00980903
	CIDGamma               = 0x00980910
	CIDGain                = 0x00980913
	CIDPowerLineFrequency  = 0x00980918
	CIDWhiteBalanceAuto    = 0x0098090c
	CIDWhiteBalanceTemp    = 0x0098091a
	CIDSharpness           = 0x0098091b
	CIDBacklightComp       = 0x0098091c
	CIDExposureAuto        = 0x009a0901
	CIDExposureAbsolute    = 0x009a0902
	CIDPanAbsolute         = 0x009a0908
	CIDTiltAbsolute        = 0x009a0909
	CIDFocusAbsolute       = 0x009a090a
	CIDFocusAuto           = 0x009a090c
	CIDZoomAbsolute        = 0x009a090d
	CIDIrisAbsolute        = 0x009a0911
)

// ControlInfo describes a control reported by VIDIOC_QUERYCTRL.
type ControlInfo struct {
	ID      uint32
	Type    ControlType
	Name    string
	Min     int32
	Max     int32
	Step    int32
	Default int32
	Flags   uint32
}

// MenuItem is one entry of a menu or integer menu control.
type MenuItem struct {
	Index uint32
	Name  string
	Value int64 // integer menus only
}

// Frame is a dequeued capture buffer. Data is a copy owned by the caller.
type Frame struct {
	Data     []byte
	Sequence uint32
	// Timestamp is the driver timestamp, normally CLOCK_MONOTONIC.
	Timestamp time.Duration
}

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000

	capTimePerFrame = 0x1000
)

// Format flags.
const (
	fmtFlagCompressed = 0x0001
	fmtFlagEmulated   = 0x0002
)

// Common pixel formats.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtHEVC  = 0x43564548 // 'HEVC'
	PixFmtNV12  = 0x3231564E // 'NV12'
	PixFmtGrey  = 0x59455247 // 'GREY'
	PixFmtRGB24 = 0x33424752 // 'RGB3'
	PixFmtBGR24 = 0x33524742 // 'BGR3'
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	frmivalTypeDiscrete   = 1
	frmivalTypeContinuous = 2
	frmivalTypeStepwise   = 3
)

const (
	bufTypeVideoCapture = 1
	memoryMmap          = 1
	fieldAny            = 0
)
