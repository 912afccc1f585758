//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// Formats returns all supported pixel formats for the device.
func (d *Device) Formats() ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{
			index: i,
			typ:   bufTypeVideoCapture,
		}

		if err := ioctl(d.fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, err)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Compressed:  fmtdesc.flags&fmtFlagCompressed != 0,
			Emulated:    fmtdesc.flags&fmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// Resolutions returns all supported resolutions for a pixel format.
// Stepwise and continuous ranges are expanded to common sizes inside the range.
func (d *Device) Resolutions(pixelFormat uint32) ([]Resolution, error) {
	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: pixelFormat,
		}

		if err := ioctl(d.fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, err)
		}

		switch frmsize.typ {
		case frmsizeTypeDiscrete:
			resolutions = append(resolutions, Resolution{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case frmsizeTypeContinuous, frmsizeTypeStepwise:
			return append(resolutions, stepwiseResolutions(frmsize.stepwise())...), nil
		}
	}

	return resolutions, nil
}

// Framerates returns all supported frame intervals for a format and resolution.
func (d *Device) Framerates(pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate

	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: pixelFormat,
			width:       width,
			height:      height,
		}

		if err := ioctl(d.fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); err != nil {
			if errors.Is(err, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, err)
		}

		switch frmival.typ {
		case frmivalTypeDiscrete:
			framerates = append(framerates, Framerate{
				Numerator:   frmival.discrete.numerator,
				Denominator: frmival.discrete.denominator,
			})
		case frmivalTypeContinuous, frmivalTypeStepwise:
			return append(framerates, stepwiseFramerates(frmival.stepwise())...), nil
		}
	}

	return framerates, nil
}

// GetFormat returns the active capture format.
func (d *Device) GetFormat() (Format, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, fmt.Errorf("get format: %w", err)
	}
	return formatFromPix(&f.pix), nil
}

// SetFormat requests a capture format. Drivers may adjust the request; the
// returned format is what the driver accepted.
func (d *Device) SetFormat(want Format) (Format, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	f.pix.width = want.Width
	f.pix.height = want.Height
	f.pix.pixelformat = want.PixelFormat
	f.pix.field = fieldAny
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, fmt.Errorf("set format %s %dx%d: %w", FormatFourCC(want.PixelFormat), want.Width, want.Height, err)
	}
	return formatFromPix(&f.pix), nil
}

// GetFramerate returns the active frame interval. Devices without
// V4L2_CAP_TIMEPERFRAME report ENOTTY.
func (d *Device) GetFramerate() (Framerate, error) {
	p := v4l2Streamparm{typ: bufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return Framerate{}, fmt.Errorf("get stream parameters: %w", err)
	}
	if p.capture.capability&capTimePerFrame == 0 {
		return Framerate{}, fmt.Errorf("frame interval not supported: %w", syscall.ENOTTY)
	}
	return Framerate{
		Numerator:   p.capture.timeperframe.numerator,
		Denominator: p.capture.timeperframe.denominator,
	}, nil
}

// SetFramerate requests a frame interval and returns what the driver chose.
func (d *Device) SetFramerate(want Framerate) (Framerate, error) {
	p := v4l2Streamparm{typ: bufTypeVideoCapture}
	p.capture.timeperframe = v4l2Fract{numerator: want.Numerator, denominator: want.Denominator}
	if err := ioctl(d.fd, vidiocSParm, unsafe.Pointer(&p)); err != nil {
		return Framerate{}, fmt.Errorf("set frame interval %d/%d: %w", want.Numerator, want.Denominator, err)
	}
	if p.capture.capability&capTimePerFrame == 0 {
		return Framerate{}, fmt.Errorf("frame interval not supported: %w", syscall.ENOTTY)
	}
	return Framerate{
		Numerator:   p.capture.timeperframe.numerator,
		Denominator: p.capture.timeperframe.denominator,
	}, nil
}

func formatFromPix(pix *v4l2PixFormat) Format {
	return Format{
		Width:        pix.width,
		Height:       pix.height,
		PixelFormat:  pix.pixelformat,
		BytesPerLine: pix.bytesperline,
		SizeImage:    pix.sizeimage,
	}
}

var commonResolutions = []Resolution{
	{320, 240},   // QVGA
	{640, 480},   // VGA
	{800, 600},   // SVGA
	{1024, 768},  // XGA
	{1280, 720},  // HD
	{1280, 960},
	{1280, 1024}, // SXGA
	{1920, 1080}, // Full HD
	{1920, 1200}, // WUXGA
	{2560, 1440}, // QHD
	{3840, 2160}, // 4K UHD
	{4096, 2160}, // 4K DCI
}

// stepwiseResolutions returns common resolutions within a stepwise range.
func stepwiseResolutions(sw *v4l2FrmsizeStepwise) []Resolution {
	var resolutions []Resolution
	for _, res := range commonResolutions {
		if res.Width < sw.minWidth || res.Width > sw.maxWidth ||
			res.Height < sw.minHeight || res.Height > sw.maxHeight {
			continue
		}
		if sw.stepWidth > 1 && (res.Width-sw.minWidth)%sw.stepWidth != 0 {
			continue
		}
		if sw.stepHeight > 1 && (res.Height-sw.minHeight)%sw.stepHeight != 0 {
			continue
		}
		resolutions = append(resolutions, res)
	}
	return resolutions
}

var commonFramerates = []Framerate{
	{1, 60},
	{1, 50},
	{1, 30},
	{1, 25},
	{1, 20},
	{1, 15},
	{1, 10},
	{1, 5},
}

// stepwiseFramerates returns common framerates whose interval lies within
// the reported range. Intervals are compared as fractions.
func stepwiseFramerates(sw *v4l2FrmivalStepwise) []Framerate {
	var framerates []Framerate
	for _, fr := range commonFramerates {
		if fractLess(v4l2Fract{fr.Numerator, fr.Denominator}, sw.min) ||
			fractLess(sw.max, v4l2Fract{fr.Numerator, fr.Denominator}) {
			continue
		}
		framerates = append(framerates, fr)
	}
	return framerates
}

func fractLess(a, b v4l2Fract) bool {
	return uint64(a.numerator)*uint64(b.denominator) < uint64(b.numerator)*uint64(a.denominator)
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}
