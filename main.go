package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camcap/cmd"
	"github.com/smazurov/camcap/internal/api"
	"github.com/smazurov/camcap/internal/backends/v4l2"
	"github.com/smazurov/camcap/internal/backends/virtual"
	"github.com/smazurov/camcap/internal/config"
	"github.com/smazurov/camcap/internal/devices"
	"github.com/smazurov/camcap/internal/events"
	"github.com/smazurov/camcap/internal/logging"
	"github.com/smazurov/camcap/internal/metrics"
	"github.com/smazurov/camcap/internal/sessions"
	"github.com/smazurov/camcap/internal/systemd"
	"github.com/smazurov/camcap/pkg/capture"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"camcap.toml"`

	// Server settings
	Port       string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CorsOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Capture settings
	Backend     string `help:"Capture backend (auto, v4l2, virtual)" short:"b" default:"auto" toml:"capture.backend" env:"CAPTURE_BACKEND"`
	Format      string `help:"Format request applied when a camera opens" short:"f" default:"none" toml:"capture.format" env:"CAPTURE_FORMAT"`
	FramePolicy string `help:"Frame on a closed stream (reject, auto-open)" default:"reject" toml:"capture.frame_policy" env:"CAPTURE_FRAME_POLICY"`
	Profile     string `help:"Control profile applied to every camera" default:"" toml:"capture.profile" env:"CAPTURE_PROFILE"`

	// V4L2 settings
	Buffers     int    `help:"Number of mmap buffers" default:"4" toml:"v4l2.buffers" env:"V4L2_BUFFERS"`
	ReadTimeout string `help:"Timeout for one frame" default:"2s" toml:"v4l2.read_timeout" env:"V4L2_READ_TIMEOUT"`

	// Virtual camera settings
	VirtualCount int    `help:"Number of virtual test-pattern cameras" default:"0" toml:"virtual.count" env:"VIRTUAL_COUNT"`
	VirtualName  string `help:"Name of virtual cameras" default:"Virtual Camera" toml:"virtual.name" env:"VIRTUAL_NAME"`
	VirtualPace  bool   `help:"Pace virtual frames at the frame rate" default:"true" toml:"virtual.pace" env:"VIRTUAL_PACE"`

	// Observability settings
	FrameEvents    bool `help:"Publish an event per captured frame" default:"false" toml:"events.frames" env:"EVENTS_FRAMES"`
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture  string `help:"Capture session logging level" default:"" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDevices  string `help:"Device discovery logging level" default:"" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingDriver   string `help:"V4L2 driver logging level" default:"" toml:"logging.v4l2" env:"LOGGING_V4L2"`
	LoggingSessions string `help:"Session manager logging level" default:"" toml:"logging.sessions" env:"LOGGING_SESSIONS"`
	LoggingAPI      string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"" toml:"logging.http" env:"LOGGING_HTTP"`
}

// settings resolves options into the subcommand settings.
func settings(opts *Options, logger *slog.Logger) cmd.Settings {
	s := cmd.Settings{
		Devices: devices.Config{
			Backend:      capture.BackendKind(opts.Backend),
			VirtualCount: opts.VirtualCount,
			V4L2:         v4l2.Config{Buffers: uint32(max(opts.Buffers, 0))},
			Virtual:      virtual.Config{Name: opts.VirtualName, Pace: opts.VirtualPace},
		},
		Profile: opts.Profile,
	}

	if d, err := time.ParseDuration(opts.ReadTimeout); err == nil {
		s.Devices.V4L2.ReadTimeout = d
	} else {
		logger.Warn("Invalid read timeout, using default", "value", opts.ReadTimeout, "error", err)
	}

	req, err := capture.ParseFormatRequest(opts.Format)
	if err != nil {
		logger.Warn("Invalid format request, leaving formats unchanged", "value", opts.Format, "error", err)
		req = capture.NoFormatRequest()
	}
	s.Request = req

	policy, err := capture.ParseFramePolicy(opts.FramePolicy)
	if err != nil {
		logger.Warn("Invalid frame policy, rejecting frames on closed streams", "value", opts.FramePolicy, "error", err)
	}
	s.FramePolicy = policy
	return s
}

func main() {
	var cli humacli.CLI
	var shared cmd.Settings

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root().PersistentFlags()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"capture":  opts.LoggingCapture,
				"devices":  opts.LoggingDevices,
				"v4l2":     opts.LoggingDriver,
				"sessions": opts.LoggingSessions,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		shared = settings(opts, logger)

		// Everything below is only used by the server; subcommands return
		// after the hooks are registered.
		bus := events.New()
		observers := []capture.Observer{events.NewObserver(bus, opts.FrameEvents)}
		var prom *metrics.Metrics
		if opts.MetricsEnabled {
			prom = metrics.New()
			observers = append(observers, prom)
		}

		detector := shared.Detector()
		var manager *sessions.Manager
		var server *api.Server
		var profileWatcher *config.Watcher[config.Profile]
		watchCtx, stopWatch := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			var err error
			manager, err = shared.Manager(observers...)
			if err != nil {
				logger.Error("Failed to load control profile", "profile", opts.Profile, "error", err)
				os.Exit(1)
			}
			unfollow := manager.Follow(bus)
			defer unfollow()

			if opts.Profile != "" {
				profileWatcher = config.NewConfigWatcher(opts.Profile, config.LoadProfile, logging.GetLogger("config"))
				profileWatcher.OnReload(func(p config.Profile) {
					if err := manager.SetProfile(watchCtx, p); err != nil {
						logger.Warn("Profile applied with errors", "error", err)
					}
				})
				if err := profileWatcher.Start(); err != nil {
					logger.Warn("Failed to watch profile, hot-reload disabled", "error", err)
				}
			}

			go func() {
				if err := detector.Watch(watchCtx, bus); err != nil {
					logger.Warn("Device monitoring stopped", "error", err)
				}
			}()

			go systemd.Watchdog(watchCtx, logger)

			server = api.NewServer(&api.Options{
				AuthUsername: opts.AuthUsername,
				AuthPassword: opts.AuthPassword,
				CORSOrigin:   opts.CorsOrigin,
				Cameras:      detector,
				Sessions:     manager,
				Bus:          bus,
				Metrics:      prom,
				OnReady: func(addr net.Addr) {
					systemd.Ready(logger)
					systemd.Status(logger, fmt.Sprintf("serving %s on %s", detector.Backend(), addr))
				},
			})
			logger.Info("Starting HTTP server", "port", opts.Port, "backend", detector.Backend())
			if err := server.Start(opts.Port); err != nil {
				logger.Error("Failed to start HTTP server", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			systemd.Stopping(logger)
			stopWatch()
			if profileWatcher != nil {
				_ = profileWatcher.Stop()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if server != nil {
				if err := server.Stop(ctx); err != nil {
					logger.Error("Error stopping HTTP server", "error", err)
				}
			}
			if manager != nil {
				if err := manager.CloseAll(ctx); err != nil {
					logger.Warn("Error closing cameras", "error", err)
				}
			}
		})
	})

	cli.Root().Use = "camcap"
	cli.Root().Short = "Camera capture service and tools"
	cli.Root().AddCommand(
		cmd.NewListCmd(&shared),
		cmd.NewFormatsCmd(&shared),
		cmd.NewControlsCmd(&shared),
		cmd.NewSnapshotCmd(&shared),
		cmd.NewStreamCmd(&shared),
		cmd.NewVersionCmd(),
	)

	cli.Run()
}
