//go:build !linux || !(amd64 || arm64)

package v4l2

import "github.com/smazurov/camcap/pkg/capture"

// Backend is unavailable on this platform.
type Backend struct {
	capture.Backend
}

// Supported reports whether this build can drive V4L2 devices.
func Supported() bool { return false }

// New always fails with capture.ErrUnsupportedOperation.
func New(capture.CameraIndex, Config) (*Backend, error) {
	return nil, capture.NewError(capture.ErrUnsupportedOperation, "open", "v4l2 requires 64-bit linux")
}

// ResolvePath always fails with capture.ErrUnsupportedOperation.
func ResolvePath(capture.CameraIndex) (string, error) {
	return "", capture.NewError(capture.ErrUnsupportedOperation, "resolve", "v4l2 requires 64-bit linux")
}

// List always fails with capture.ErrUnsupportedOperation.
func List() ([]capture.CameraInfo, error) {
	return nil, capture.NewError(capture.ErrUnsupportedOperation, "list", "v4l2 requires 64-bit linux")
}
