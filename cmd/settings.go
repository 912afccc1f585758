// Package cmd holds the camcap subcommands.
package cmd

import (
	"context"
	"fmt"

	"github.com/smazurov/camcap/internal/config"
	"github.com/smazurov/camcap/internal/devices"
	"github.com/smazurov/camcap/internal/sessions"
	"github.com/smazurov/camcap/pkg/capture"
)

// Settings is the resolved configuration shared by every subcommand. The
// root command fills it before a subcommand runs.
type Settings struct {
	Devices     devices.Config
	Request     capture.FormatRequest
	FramePolicy capture.FramePolicy
	// Profile is a control profile applied after a camera opens.
	Profile string
	// Registry defaults to capture.DefaultRegistry.
	Registry *capture.Registry
}

// Detector builds a detector for the configured backend.
func (s *Settings) Detector() *devices.Detector {
	return devices.NewDetector(s.Devices)
}

// Manager builds a session manager over the configured backend.
func (s *Settings) Manager(observers ...capture.Observer) (*sessions.Manager, error) {
	cfg := sessions.Config{
		Backend:     s.Devices.Backend,
		Request:     s.Request,
		FramePolicy: s.FramePolicy,
		Registry:    s.Registry,
		Observers:   observers,
	}
	if s.Profile != "" {
		p, err := config.LoadProfile(s.Profile)
		if err != nil {
			return nil, err
		}
		cfg.Profile = &p
	}
	return sessions.New(s.Detector(), cfg), nil
}

// withSession opens the camera named by arg, runs fn and closes it again.
func (s *Settings) withSession(ctx context.Context, arg string, fn func(*capture.AsyncSession) error) error {
	mgr, err := s.Manager()
	if err != nil {
		return err
	}
	session, err := mgr.Get(ctx, capture.ParseIndex(arg))
	if err != nil {
		return fmt.Errorf("open camera %s: %w", arg, err)
	}
	defer func() { _ = mgr.CloseAll(context.Background()) }()
	return fn(session)
}
