// Package sessions keeps one capture session per camera for long-running
// commands.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/smazurov/camcap/internal/config"
	"github.com/smazurov/camcap/internal/events"
	"github.com/smazurov/camcap/internal/logging"
	"github.com/smazurov/camcap/pkg/capture"
)

// Opener constructs backends. *devices.Detector satisfies it.
type Opener interface {
	Open(kind capture.BackendKind, index capture.CameraIndex) (capture.Backend, error)
}

// Config controls how sessions are opened.
type Config struct {
	Backend     capture.BackendKind
	Request     capture.FormatRequest
	FramePolicy capture.FramePolicy
	// Registry defaults to capture.DefaultRegistry.
	Registry  *capture.Registry
	Observers []capture.Observer
	// Profile, when set, is applied to every session after it opens.
	Profile *config.Profile
}

// Manager lazily opens sessions and owns them until Close or CloseAll.
type Manager struct {
	opener Opener
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*capture.AsyncSession
	profile  *config.Profile
}

// New creates a Manager.
func New(opener Opener, cfg Config) *Manager {
	return &Manager{
		opener:   opener,
		cfg:      cfg,
		logger:   logging.GetLogger("sessions"),
		sessions: make(map[string]*capture.AsyncSession),
		profile:  cfg.Profile,
	}
}

// Get returns the session for index, opening it on first use. A profile
// that fails to apply is logged and does not fail the open.
func (m *Manager) Get(ctx context.Context, index capture.CameraIndex) (*capture.AsyncSession, error) {
	key := index.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}

	backend, err := m.opener.Open(m.cfg.Backend, index)
	if err != nil {
		return nil, err
	}

	var observer capture.Observer = capture.NopObserver{}
	if len(m.cfg.Observers) > 0 {
		observer = capture.MultiObserver(m.cfg.Observers)
	}
	s, err := capture.NewAsyncSession(ctx, backend, capture.Options{
		Request:     m.cfg.Request,
		FramePolicy: m.cfg.FramePolicy,
		Registry:    m.cfg.Registry,
		Observer:    observer,
		Logger:      logging.GetLogger("capture"),
	})
	if err != nil {
		if r, ok := backend.(capture.Releaser); ok {
			_ = r.Release()
		}
		return nil, err
	}

	m.logger.Info("Session opened", "camera", key, "backend", s.BackendKind(), "format", s.CameraFormat().String())
	if m.profile != nil {
		if err := m.profile.Apply(ctx, s); err != nil {
			m.logger.Warn("Profile applied with errors", "camera", key, "error", err)
		}
	}
	m.sessions[key] = s
	return s, nil
}

// Lookup returns an already open session.
func (m *Manager) Lookup(index capture.CameraIndex) (*capture.AsyncSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[index.String()]
	return s, ok
}

// Active reports the indices of open sessions.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	return keys
}

// Close closes and forgets the session for index. Closing an index without
// a session is not an error.
func (m *Manager) Close(ctx context.Context, index capture.CameraIndex) error {
	key := index.String()
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.logger.Info("Closing session", "camera", key)
	return s.Close(ctx)
}

// CloseAll closes every session.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*capture.AsyncSession)
	m.mu.Unlock()

	var errs []error
	for key, s := range all {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
			m.logger.Warn("Close failed", "camera", key, "error", err)
		}
	}
	return errors.Join(errs...)
}

// SetProfile stores p for future sessions and applies it to every open one.
func (m *Manager) SetProfile(ctx context.Context, p config.Profile) error {
	m.mu.Lock()
	m.profile = &p
	open := make([]*capture.AsyncSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range open {
		if err := p.Apply(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Follow closes sessions whose camera is reported removed on bus. The
// returned function unsubscribes.
func (m *Manager) Follow(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.DeviceEvent) {
		if e.Action != "removed" {
			return
		}
		index := capture.ParseIndex(e.Camera)
		if _, ok := m.Lookup(index); !ok {
			return
		}
		// the dispatcher must not block on device teardown
		go func() {
			if err := m.Close(context.Background(), index); err != nil {
				m.logger.Debug("Close after removal failed", "camera", e.Camera, "error", err)
			}
		}()
	})
}
