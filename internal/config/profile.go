package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camcap/pkg/capture"
)

// Profile is a saved set of control values plus an optional format request.
//
//	format = "closest:1280x720@30 MJPG"
//
//	[controls]
//	brightness = 32
//	white_balance = true
//	power_line_frequency = "50 Hz"
//	"other:0x009a0901" = 1
type Profile struct {
	Format   string         `toml:"format"`
	Controls map[string]any `toml:"controls"`
}

// ProfileTarget is the part of a session a profile is applied to.
// *capture.AsyncSession satisfies it.
type ProfileTarget interface {
	CompatibleFormats(ctx context.Context) ([]capture.CameraFormat, error)
	SetCameraFormat(ctx context.Context, f capture.CameraFormat) error
	CameraControl(ctx context.Context, id capture.KnownCameraControl) (capture.CameraControl, error)
	SetCameraControl(ctx context.Context, id capture.KnownCameraControl, value capture.ControlValue) error
}

// LoadProfile reads a profile and checks that its names parse.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the format request and control names without a device.
func (p Profile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Format) != "" {
		if _, err := capture.ParseFormatRequest(p.Format); err != nil {
			errs = append(errs, err)
		}
	}
	for name := range p.Controls {
		if _, err := capture.ParseKnownControl(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply sets the profile's format, then each control in name order. It
// keeps going after a failure and returns every error joined.
func (p Profile) Apply(ctx context.Context, target ProfileTarget) error {
	var errs []error

	if strings.TrimSpace(p.Format) != "" {
		if err := applyFormat(ctx, target, p.Format); err != nil {
			errs = append(errs, fmt.Errorf("format: %w", err))
		}
	}

	names := make([]string, 0, len(p.Controls))
	for name := range p.Controls {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := applyControl(ctx, target, name, p.Controls[name]); err != nil {
			errs = append(errs, fmt.Errorf("control %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func applyFormat(ctx context.Context, target ProfileTarget, s string) error {
	req, err := capture.ParseFormatRequest(s)
	if err != nil {
		return err
	}
	if req.Kind == capture.RequestNone {
		return nil
	}
	candidates, err := target.CompatibleFormats(ctx)
	if err != nil {
		return err
	}
	f, err := req.Resolve(candidates)
	if err != nil {
		return err
	}
	return target.SetCameraFormat(ctx, f)
}

func applyControl(ctx context.Context, target ProfileTarget, name string, raw any) error {
	id, err := capture.ParseKnownControl(name)
	if err != nil {
		return err
	}
	desc, err := target.CameraControl(ctx, id)
	if err != nil {
		return err
	}
	value, err := capture.ParseControlValue(desc.Kind, fmt.Sprint(raw), desc.Menu)
	if err != nil {
		return err
	}
	return target.SetCameraControl(ctx, id, value)
}
