// Package logging provides slog loggers with per-module levels.
//
// Records fan out to stderr (text or JSON), the systemd journal when
// journald is reachable, and an in-memory history served by /api/logs.
// Stdout is left alone so that commands like "camcap formats" can be piped.
//
// Initialize once at startup, then obtain a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"v4l2": "debug",
//			"api":  "warn",
//		},
//	})
//
//	logger := logging.GetLogger("sessions").With("camera", index)
//	logger.Info("Stream opened", "format", format)
//
// Loggers obtained before Initialize keep working; their levels follow the
// configuration. SetLevel changes levels at runtime.
//
// History entries lift the "camera" and "op" attributes that capture loggers
// attach, so History().Query(Filter{Camera: "0", Op: "frame"}) finds the
// failures of one device.
//
// Journal entries carry SYSLOG_IDENTIFIER=camcap and one upper-case field per
// attribute:
//
//	journalctl -t camcap MODULE=v4l2
//	journalctl -t camcap -p err --since "5m"
//
// TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	history = 500
//
//	[logging.modules]
//	v4l2 = "debug"
package logging
