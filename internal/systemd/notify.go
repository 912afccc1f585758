// Package systemd reports service state to systemd when camcap runs as a
// Type=notify unit. Every call is a no-op outside systemd.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// notify is swapped in tests.
var notify = func(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

// watchdogInterval is swapped in tests.
var watchdogInterval = func() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

// Ready tells systemd that startup finished.
func Ready(logger *slog.Logger) {
	send(logger, daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown began.
func Stopping(logger *slog.Logger) {
	send(logger, daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func Status(logger *slog.Logger, status string) {
	send(logger, "STATUS="+status)
}

func send(logger *slog.Logger, state string) {
	sent, err := notify(state)
	switch {
	case err != nil:
		logger.Warn("systemd notify failed", "state", state, "error", err)
	case sent:
		logger.Debug("systemd notified", "state", state)
	}
}

// Watchdog pings the systemd watchdog at half the configured interval until
// ctx is done. It returns immediately when WatchdogSec is not set.
func Watchdog(ctx context.Context, logger *slog.Logger) {
	interval, err := watchdogInterval()
	if err != nil {
		logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	logger.Info("systemd watchdog enabled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send(logger, daemon.SdNotifyWatchdog)
		}
	}
}
