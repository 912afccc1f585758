// Package v4l2 implements capture.Backend for Video4Linux2 devices on top of
// the cgo-free bindings in pkg/linuxav/v4l2.
package v4l2

import (
	"cmp"
	"log/slog"
	"slices"
	"time"

	"github.com/smazurov/camcap/pkg/capture"
)

// Config tunes how the backend drives the device.
type Config struct {
	// Buffers is the number of mmap buffers requested when the stream opens.
	Buffers uint32
	// ReadTimeout bounds a single PullFrame.
	ReadTimeout time.Duration
	// Preferred ranks pixel formats for QueryFourCCs. Formats not listed
	// follow in driver order.
	Preferred []capture.FrameFormat
	Logger    *slog.Logger
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		Buffers:     4,
		ReadTimeout: 2 * time.Second,
		Preferred: []capture.FrameFormat{
			capture.FormatMJPEG,
			capture.FormatYUYV,
			capture.FormatNV12,
			capture.FormatGRAY,
			capture.FormatRGB24,
			capture.FormatBGR24,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Buffers == 0 {
		c.Buffers = d.Buffers
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if len(c.Preferred) == 0 {
		c.Preferred = d.Preferred
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// maxFourCCs is how many pixel formats QueryFourCCs reports.
const maxFourCCs = 2

// rankFourCCs orders offered formats by preference and keeps the best two.
// Emulated formats always rank after native ones.
func rankFourCCs(offered []capture.FrameFormat, emulated map[capture.FrameFormat]bool, preferred []capture.FrameFormat) []capture.FrameFormat {
	rank := func(f capture.FrameFormat) int {
		r := len(preferred)
		for i, p := range preferred {
			if p == f {
				r = i
				break
			}
		}
		if emulated[f] {
			r += len(preferred) + 1
		}
		return r
	}

	out := make([]capture.FrameFormat, 0, len(offered))
	seen := make(map[capture.FrameFormat]bool, len(offered))
	for _, f := range offered {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b capture.FrameFormat) int {
		return cmp.Compare(rank(a), rank(b))
	})
	if len(out) > maxFourCCs {
		out = out[:maxFourCCs]
	}
	return out
}
