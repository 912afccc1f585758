//go:build linux && (amd64 || arm64)

package v4l2

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unsafe"
)

const sysfsVideo4Linux = "/sys/class/video4linux"

// ErrNotCaptureDevice is returned when a node exists but cannot capture video.
var ErrNotCaptureDevice = errors.New("not a video capture device")

// Device is an open V4L2 capture node. It is not safe for concurrent use.
type Device struct {
	path      string
	fd        int
	info      DeviceInfo
	buffers   [][]byte
	streaming bool
}

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsVideo4Linux)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		info, err := probe(devicePath)
		if err != nil {
			slog.With("component", "v4l2").Debug("skipping video node", "path", devicePath, "error", err)
			continue
		}
		devices = append(devices, info)
	}

	return devices, nil
}

// DevicePathByID finds the device path for a given stable device ID.
func DevicePathByID(deviceID string) (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to find devices: %w", err)
	}

	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.DevicePath, nil
		}
	}

	return "", fmt.Errorf("device with ID %s not found: %w", deviceID, syscall.ENOENT)
}

func probe(devicePath string) (DeviceInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer close(fd)
	return queryInfo(fd, devicePath)
}

func queryInfo(fd int, devicePath string) (DeviceInfo, error) {
	capability := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&capability)); err != nil {
		return DeviceInfo{}, fmt.Errorf("query capabilities: %w", err)
	}

	// Get the effective capabilities
	caps := capability.capabilities
	if caps&CapDeviceCaps != 0 {
		caps = capability.deviceCaps
	}
	if caps&CapVideoCapture == 0 {
		return DeviceInfo{}, ErrNotCaptureDevice
	}

	name := filepath.Base(devicePath)
	index := readSysfsInt(filepath.Join(sysfsVideo4Linux, name, "index"))
	busInfo := cstr(capability.busInfo[:])

	// Find stable ID from /dev/v4l/by-id/
	stableID := findStableID(name, index)
	if stableID == "" {
		// Fallback: synthetic ID from bus_info + index
		if strings.HasPrefix(busInfo, "usb-") {
			stableID = fmt.Sprintf("%s-video-index%d", busInfo, index)
		} else {
			stableID = fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
		}
	}

	return DeviceInfo{
		DevicePath: devicePath,
		DeviceName: cstr(capability.card[:]),
		DeviceID:   stableID,
		Driver:     cstr(capability.driver[:]),
		BusInfo:    busInfo,
		Index:      index,
		Caps:       caps,
	}, nil
}

// OpenDevice opens a capture node in non-blocking mode.
func OpenDevice(devicePath string) (*Device, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devicePath, err)
	}
	info, err := queryInfo(fd, devicePath)
	if err != nil {
		close(fd)
		return nil, fmt.Errorf("%s: %w", devicePath, err)
	}
	return &Device{path: devicePath, fd: fd, info: info}, nil
}

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// Info returns the capabilities read when the device was opened.
func (d *Device) Info() DeviceInfo { return d.info }

// Close stops streaming if needed and closes the file descriptor.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	var stopErr error
	if d.streaming {
		stopErr = d.StopStreaming()
	}
	err := close(d.fd)
	d.fd = -1
	return errors.Join(stopErr, err)
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		linkPath := filepath.Join(byIDDir, entry.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
