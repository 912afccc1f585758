// Package devices enumerates cameras across backends and constructs backends
// for them.
package devices

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/camcap/internal/backends/v4l2"
	"github.com/smazurov/camcap/internal/backends/virtual"
	"github.com/smazurov/camcap/internal/logging"
	"github.com/smazurov/camcap/pkg/capture"
)

// Config selects the backend and its settings.
type Config struct {
	// Backend is v4l2, virtual or auto. Auto lists both and opens V4L2 when
	// the build supports it.
	Backend capture.BackendKind
	// VirtualCount is the number of synthetic cameras listed. An explicit
	// virtual backend always offers at least one.
	VirtualCount int
	V4L2         v4l2.Config
	Virtual      virtual.Config
}

// Detector lists cameras and opens backends for them.
type Detector struct {
	cfg    Config
	logger *slog.Logger

	// seams for tests
	listV4L2 func() ([]capture.CameraInfo, error)
	settle   time.Duration
}

// NewDetector creates a Detector for cfg.
func NewDetector(cfg Config) *Detector {
	if cfg.Backend == "" {
		cfg.Backend = capture.BackendAuto
	}
	return &Detector{
		cfg:      cfg,
		logger:   logging.GetLogger("devices"),
		listV4L2: v4l2.List,
		settle:   time.Second,
	}
}

// Backend returns the backend kind Open uses for BackendAuto.
func (d *Detector) Backend() capture.BackendKind {
	switch d.cfg.Backend {
	case capture.BackendAuto:
		if v4l2.Supported() {
			return capture.BackendV4L2
		}
		return capture.BackendVirtual
	default:
		return d.cfg.Backend
	}
}

func (d *Detector) virtualCount() int {
	if d.cfg.Backend == capture.BackendVirtual {
		return max(d.cfg.VirtualCount, 1)
	}
	return d.cfg.VirtualCount
}

// FindDevices returns every camera visible to the configured backend.
func (d *Detector) FindDevices() ([]capture.CameraInfo, error) {
	var cameras []capture.CameraInfo

	switch d.cfg.Backend {
	case capture.BackendV4L2:
		found, err := d.listV4L2()
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, found...)
	case capture.BackendAuto:
		if v4l2.Supported() {
			found, err := d.listV4L2()
			if err != nil {
				d.logger.Warn("V4L2 enumeration failed", "error", err)
			}
			cameras = append(cameras, found...)
		}
	case capture.BackendVirtual:
	default:
		return nil, capture.NewError(capture.ErrUnsupportedOperation, "find_devices",
			fmt.Sprintf("backend %q is not available", d.cfg.Backend))
	}

	cameras = append(cameras, virtual.List(d.virtualCount(), d.cfg.Virtual.Name)...)
	return cameras, nil
}

// Open constructs a backend for index. BackendAuto resolves via Backend.
func (d *Detector) Open(kind capture.BackendKind, index capture.CameraIndex) (capture.Backend, error) {
	if kind == "" || kind == capture.BackendAuto {
		kind = d.Backend()
	}
	d.logger.Debug("Opening camera", "backend", kind, "index", index.String())

	switch kind {
	case capture.BackendV4L2:
		cfg := d.cfg.V4L2
		if cfg.Logger == nil {
			cfg.Logger = logging.GetLogger("v4l2")
		}
		b, err := v4l2.New(index, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil

	case capture.BackendVirtual:
		n, err := index.Number()
		if err != nil {
			return nil, capture.WrapError(capture.ErrDeviceUnavailable, "open", "virtual cameras are numbered", err)
		}
		if count := max(d.virtualCount(), 1); int(n) >= count {
			return nil, capture.NewError(capture.ErrDeviceUnavailable, "open",
				fmt.Sprintf("virtual camera %d does not exist (%d configured)", n, count))
		}
		cfg := d.cfg.Virtual
		if cfg.Logger == nil {
			cfg.Logger = logging.GetLogger("virtual")
		}
		b, err := virtual.New(index, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, capture.NewError(capture.ErrUnsupportedOperation, "open",
			fmt.Sprintf("backend %q is not available", kind))
	}
}
