//go:build linux && (amd64 || arm64)

package v4l2

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/camcap/pkg/linuxav/v4l2"
)

// Roots searched for stable symlink names. Tests point these elsewhere.
var (
	byIDDir   = "/dev/v4l/by-id"
	byPathDir = "/dev/v4l/by-path"
)

// resolveDevicePath converts a device path or stable device id into a path
// that can be opened.
func resolveDevicePath(deviceID string) (string, error) {
	if strings.HasPrefix(deviceID, "/") {
		if _, err := os.Stat(deviceID); err != nil {
			return "", err
		}
		return deviceID, nil
	}

	for _, dir := range []string{byIDDir, byPathDir} {
		devicePath := filepath.Join(dir, deviceID)
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	// synthetic ids have no symlink; match them against the sysfs walk
	if path, err := v4l2.DevicePathByID(deviceID); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no device node or stable symlink for %s: %w", deviceID, os.ErrNotExist)
}
