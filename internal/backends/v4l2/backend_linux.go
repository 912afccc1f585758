//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/camcap/pkg/capture"
	"github.com/smazurov/camcap/pkg/linuxav/v4l2"
)

// Backend drives one V4L2 capture node. The file descriptor stays open from
// New until Release.
type Backend struct {
	index  capture.CameraIndex
	cfg    Config
	logger *slog.Logger
	dev    *v4l2.Device
	info   capture.CameraInfo

	// rate is reported when the driver cannot report a frame interval.
	rate    capture.FrameRate
	current capture.CameraFormat
}

var _ capture.Backend = (*Backend)(nil)
var _ capture.Releaser = (*Backend)(nil)

// Supported reports whether this build can drive V4L2 devices.
func Supported() bool { return true }

// New opens the device named by index. Numeric indexes map to /dev/videoN;
// string indexes may be a device path or a stable by-id / by-path name.
func New(index capture.CameraIndex, cfg Config) (*Backend, error) {
	cfg = cfg.withDefaults()

	path, err := ResolvePath(index)
	if err != nil {
		return nil, err
	}

	dev, err := v4l2.OpenDevice(path)
	if err != nil {
		return nil, mapError("open", err)
	}

	di := dev.Info()
	b := &Backend{
		index:  index,
		cfg:    cfg,
		logger: cfg.Logger.With("device", path),
		dev:    dev,
		rate:   capture.DefaultFormat().FrameRate,
		info: capture.CameraInfo{
			Index:       index,
			HumanName:   di.DeviceName,
			Description: fmt.Sprintf("%s (%s)", di.Driver, di.BusInfo),
			Misc:        fmt.Sprintf("%s %s", path, di.DeviceID),
			Backend:     capture.BackendV4L2,
		},
	}
	b.logger.Debug("Opened V4L2 device", "name", di.DeviceName, "driver", di.Driver, "device_id", di.DeviceID)
	return b, nil
}

// Kind returns capture.BackendV4L2.
func (b *Backend) Kind() capture.BackendKind { return capture.BackendV4L2 }

// Info describes the device.
func (b *Backend) Info() capture.CameraInfo { return b.info }

// QueryFourCCs returns the two best pixel formats the driver offers.
func (b *Backend) QueryFourCCs() ([]capture.FrameFormat, error) {
	dev, err := b.device("query_fourccs")
	if err != nil {
		return nil, err
	}
	formats, err := dev.Formats()
	if err != nil {
		return nil, mapError("query_fourccs", err)
	}

	offered := make([]capture.FrameFormat, 0, len(formats))
	emulated := make(map[capture.FrameFormat]bool)
	for _, f := range formats {
		ff := capture.FrameFormat(f.PixelFormat)
		offered = append(offered, ff)
		if f.Emulated {
			emulated[ff] = true
		}
	}
	return rankFourCCs(offered, emulated, b.cfg.Preferred), nil
}

// QueryFormats maps each resolution of fourcc to its frame rates.
func (b *Backend) QueryFormats(fourcc capture.FrameFormat) (map[capture.Resolution][]capture.FrameRate, error) {
	dev, err := b.device("query_formats")
	if err != nil {
		return nil, err
	}
	resolutions, err := dev.Resolutions(uint32(fourcc))
	if err != nil {
		return nil, mapError("query_formats", err)
	}

	out := make(map[capture.Resolution][]capture.FrameRate, len(resolutions))
	for _, r := range resolutions {
		intervals, err := dev.Framerates(uint32(fourcc), r.Width, r.Height)
		if err != nil {
			if errors.Is(err, syscall.ENOTTY) {
				out[capture.Resolution{Width: r.Width, Height: r.Height}] = nil
				continue
			}
			return nil, mapError("query_formats", err)
		}
		rates := make([]capture.FrameRate, 0, len(intervals))
		for _, iv := range intervals {
			// an interval of n/d seconds is d/n frames per second
			rate, err := capture.NewFrameRate(iv.Denominator, iv.Numerator)
			if err != nil || rate.IsZero() {
				continue
			}
			rates = append(rates, rate)
		}
		out[capture.Resolution{Width: r.Width, Height: r.Height}] = rates
	}
	return out, nil
}

// Format reads the active format and frame interval from the driver.
func (b *Backend) Format() (capture.CameraFormat, error) {
	dev, err := b.device("format")
	if err != nil {
		return capture.CameraFormat{}, err
	}
	f, err := dev.GetFormat()
	if err != nil {
		return capture.CameraFormat{}, mapError("format", err)
	}

	rate := b.rate
	iv, err := dev.GetFramerate()
	switch {
	case err == nil:
		if r, rerr := capture.NewFrameRate(iv.Denominator, iv.Numerator); rerr == nil && !r.IsZero() {
			rate = r
		}
	case errors.Is(err, syscall.ENOTTY), errors.Is(err, syscall.EINVAL):
		b.logger.Debug("Driver does not report frame interval", "error", err)
	default:
		return capture.CameraFormat{}, mapError("format", err)
	}

	b.current = capture.NewCameraFormat(
		capture.Resolution{Width: f.Width, Height: f.Height},
		capture.FrameFormat(f.PixelFormat),
		rate,
	)
	return b.current, nil
}

// ApplyFormat sets the pixel format, resolution and frame interval. The
// driver may adjust any of them; Format reports what was applied.
func (b *Backend) ApplyFormat(format capture.CameraFormat) error {
	dev, err := b.device("apply")
	if err != nil {
		return err
	}
	if dev.Streaming() {
		return capture.NewError(capture.ErrStreamState, "apply", "cannot change format while streaming")
	}

	got, err := dev.SetFormat(v4l2.Format{
		Width:       format.Width(),
		Height:      format.Height(),
		PixelFormat: uint32(format.Format),
	})
	if err != nil {
		return mapError("apply", err)
	}
	if got.PixelFormat != uint32(format.Format) {
		b.logger.Warn("Driver substituted pixel format",
			"requested", format.Format.String(), "applied", v4l2.FormatFourCC(got.PixelFormat))
	}

	b.rate = format.FrameRate
	_, err = dev.SetFramerate(v4l2.Framerate{
		Numerator:   format.FrameRate.Denominator,
		Denominator: format.FrameRate.Numerator,
	})
	if err != nil {
		if errors.Is(err, syscall.ENOTTY) {
			b.logger.Debug("Driver ignores frame interval", "rate", format.FrameRate.String())
			return nil
		}
		return mapError("apply", err)
	}
	return nil
}

// Control describes one control.
func (b *Backend) Control(id capture.KnownCameraControl) (capture.CameraControl, error) {
	dev, err := b.device("control")
	if err != nil {
		return capture.CameraControl{}, err
	}
	cid, ok := controlID(id)
	if !ok {
		return capture.CameraControl{}, capture.NewError(capture.ErrUnsupportedOperation, "control", fmt.Sprintf("%s has no V4L2 equivalent", id))
	}
	info, err := dev.QueryControl(cid)
	if err != nil {
		if errors.Is(err, syscall.EINVAL) {
			return capture.CameraControl{}, capture.NewError(capture.ErrUnsupportedOperation, "control", fmt.Sprintf("device has no %s control", id))
		}
		return capture.CameraControl{}, mapError("control", err)
	}
	ctrl, ok, err := b.describe(dev, info)
	if err != nil {
		return capture.CameraControl{}, mapError("control", err)
	}
	if !ok {
		return capture.CameraControl{}, capture.NewError(capture.ErrUnsupportedOperation, "control", fmt.Sprintf("%s has an unsupported control type", id))
	}
	return ctrl, nil
}

// Controls lists every integer, boolean and menu control.
func (b *Backend) Controls() ([]capture.CameraControl, error) {
	dev, err := b.device("controls")
	if err != nil {
		return nil, err
	}
	infos, err := dev.Controls()
	if err != nil {
		return nil, mapError("controls", err)
	}

	controls := make([]capture.CameraControl, 0, len(infos))
	for _, info := range infos {
		ctrl, ok, err := b.describe(dev, info)
		if err != nil {
			return nil, mapError("controls", err)
		}
		if ok {
			controls = append(controls, ctrl)
		}
	}
	return controls, nil
}

func (b *Backend) describe(dev *v4l2.Device, info v4l2.ControlInfo) (capture.CameraControl, bool, error) {
	ctrl := capture.CameraControl{
		ID:      knownControl(info.ID),
		Name:    info.Name,
		Min:     int64(info.Min),
		Max:     int64(info.Max),
		Step:    int64(info.Step),
		Default: int64(info.Default),
		Flags:   controlFlags(info.Flags),
	}

	switch info.Type {
	case v4l2.CtrlTypeInteger:
		ctrl.Kind = capture.ControlKindInteger
	case v4l2.CtrlTypeBoolean:
		ctrl.Kind = capture.ControlKindBoolean
	case v4l2.CtrlTypeMenu, v4l2.CtrlTypeIntegerMenu:
		ctrl.Kind = capture.ControlKindEnum
		items, err := dev.QueryMenu(info)
		if err != nil {
			return capture.CameraControl{}, false, err
		}
		for _, item := range items {
			ctrl.Menu = append(ctrl.Menu, capture.MenuEntry{Index: int64(item.Index), Name: item.Name})
		}
	default:
		return capture.CameraControl{}, false, nil
	}

	if info.Flags&v4l2.CtrlFlagWriteOnly != 0 {
		ctrl.Current = zeroValue(ctrl.Kind)
		return ctrl, true, nil
	}
	v, err := dev.GetControl(info.ID)
	if err != nil {
		// inactive controls may refuse reads
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EIO) {
			ctrl.Current = zeroValue(ctrl.Kind)
			ctrl.Flags |= capture.ControlFlagInactive
			return ctrl, true, nil
		}
		return capture.CameraControl{}, false, err
	}
	ctrl.Current = valueOf(ctrl.Kind, int64(v))
	return ctrl, true, nil
}

// SetControl writes value to the device.
func (b *Backend) SetControl(id capture.KnownCameraControl, value capture.ControlValue) error {
	dev, err := b.device("set_control")
	if err != nil {
		return err
	}
	cid, ok := controlID(id)
	if !ok {
		return capture.NewError(capture.ErrUnsupportedOperation, "set_control", fmt.Sprintf("%s has no V4L2 equivalent", id))
	}
	if value.Kind == capture.ControlKindBytes {
		return capture.NewError(capture.ErrUnsupportedOperation, "set_control", "byte controls are not supported")
	}
	if err := dev.SetControl(cid, int32(value.Int())); err != nil {
		if errors.Is(err, syscall.ERANGE) || errors.Is(err, syscall.EINVAL) {
			return capture.WrapError(capture.ErrInvalidControlValue, "set_control", fmt.Sprintf("driver rejected %s=%s", id, value), err)
		}
		return mapError("set_control", err)
	}
	return nil
}

// Open allocates buffers and starts streaming.
func (b *Backend) Open() error {
	dev, err := b.device("open")
	if err != nil {
		return err
	}
	if err := dev.StartStreaming(b.cfg.Buffers); err != nil {
		return mapError("open", err)
	}
	b.logger.Debug("Stream started", "buffers", b.cfg.Buffers)
	return nil
}

// Close stops streaming and frees buffers. The device stays open.
func (b *Backend) Close() error {
	dev, err := b.device("close")
	if err != nil {
		return err
	}
	if err := dev.StopStreaming(); err != nil {
		return mapError("close", err)
	}
	b.logger.Debug("Stream stopped")
	return nil
}

// IsOpen reports whether the device is streaming.
func (b *Backend) IsOpen() bool {
	return b.dev != nil && b.dev.Streaming()
}

// PullFrame waits for the next filled buffer.
func (b *Backend) PullFrame() (capture.Frame, error) {
	dev, err := b.device("pull")
	if err != nil {
		return capture.Frame{}, err
	}
	f, err := dev.ReadFrame(b.cfg.ReadTimeout)
	if err != nil {
		if errors.Is(err, v4l2.ErrNotStreaming) {
			return capture.Frame{}, capture.NewError(capture.ErrStreamState, "pull", "stream is not open")
		}
		if errors.Is(err, v4l2.ErrTimeout) {
			return capture.Frame{}, capture.WrapError(capture.ErrBackend, "pull", fmt.Sprintf("no frame within %s", b.cfg.ReadTimeout), err)
		}
		return capture.Frame{}, mapError("pull", err)
	}
	return capture.Frame{
		Data:       f.Data,
		Resolution: b.current.Resolution,
		Format:     b.current.Format,
		Timestamp:  time.Now(),
		Sequence:   uint64(f.Sequence),
	}, nil
}

// Release closes the device. The backend is unusable afterwards.
func (b *Backend) Release() error {
	if b.dev == nil {
		return nil
	}
	err := b.dev.Close()
	b.dev = nil
	if err != nil {
		return mapError("release", err)
	}
	return nil
}

func (b *Backend) device(op string) (*v4l2.Device, error) {
	if b.dev == nil {
		return nil, capture.NewError(capture.ErrDeviceUnavailable, op, "device released")
	}
	return b.dev, nil
}

// mapError classifies a driver error number.
func mapError(op string, err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return capture.WrapError(capture.ErrBackend, op, "v4l2 call failed", err)
	}
	switch errno {
	case syscall.EBUSY:
		return capture.WrapError(capture.ErrDeviceUnavailable, op, "device is busy", err)
	case syscall.ENODEV, syscall.ENOENT, syscall.ENXIO:
		return capture.WrapError(capture.ErrDeviceUnavailable, op, "device is absent", err)
	case syscall.EACCES, syscall.EPERM:
		return capture.WrapError(capture.ErrDeviceUnavailable, op, "permission denied", err)
	case syscall.ENOTTY:
		return capture.WrapError(capture.ErrUnsupportedOperation, op, "not supported by driver", err)
	case syscall.EINVAL:
		return capture.WrapError(capture.ErrInvalidFormat, op, "driver rejected request", err)
	default:
		return capture.WrapError(capture.ErrBackend, op, "v4l2 call failed", err)
	}
}

func controlFlags(f uint32) capture.ControlFlags {
	var out capture.ControlFlags
	if f&v4l2.CtrlFlagDisabled != 0 {
		out |= capture.ControlFlagDisabled
	}
	if f&v4l2.CtrlFlagReadOnly != 0 {
		out |= capture.ControlFlagReadOnly
	}
	if f&v4l2.CtrlFlagWriteOnly != 0 {
		out |= capture.ControlFlagWriteOnly
	}
	if f&v4l2.CtrlFlagInactive != 0 {
		out |= capture.ControlFlagInactive
	}
	if f&v4l2.CtrlFlagVolatile != 0 {
		out |= capture.ControlFlagVolatile
	}
	return out
}

func valueOf(kind capture.ControlKind, v int64) capture.ControlValue {
	switch kind {
	case capture.ControlKindBoolean:
		return capture.BoolValue(v != 0)
	case capture.ControlKindEnum:
		return capture.EnumValue(v)
	default:
		return capture.IntegerValue(v)
	}
}

func zeroValue(kind capture.ControlKind) capture.ControlValue {
	return valueOf(kind, 0)
}

// ResolvePath turns a camera index into a device node path.
func ResolvePath(index capture.CameraIndex) (string, error) {
	if n, err := index.Number(); err == nil {
		return "/dev/video" + strconv.FormatUint(uint64(n), 10), nil
	}
	path, err := resolveDevicePath(index.String())
	if err != nil {
		return "", capture.WrapError(capture.ErrDeviceUnavailable, "resolve", fmt.Sprintf("no device for %q", index), err)
	}
	return path, nil
}

// List enumerates capture nodes. Each camera is indexed by its /dev/videoN
// number; the stable device id is carried in Misc.
func List() ([]capture.CameraInfo, error) {
	devices, err := v4l2.FindDevices()
	if err != nil {
		return nil, capture.WrapError(capture.ErrBackend, "list", "enumerate video4linux", err)
	}
	out := make([]capture.CameraInfo, 0, len(devices))
	for _, d := range devices {
		index := capture.IndexString(d.DevicePath)
		if n, err := strconv.ParseUint(strings.TrimPrefix(d.DevicePath, "/dev/video"), 10, 32); err == nil {
			index = capture.IndexNumber(uint32(n))
		}
		out = append(out, capture.CameraInfo{
			Index:       index,
			HumanName:   d.DeviceName,
			Description: fmt.Sprintf("%s (%s)", d.Driver, d.BusInfo),
			Misc:        fmt.Sprintf("%s %s", d.DevicePath, d.DeviceID),
			Backend:     capture.BackendV4L2,
		})
	}
	return out, nil
}
