package logging

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"
)

// BufferHandler is a slog.Handler that records entries in a ring buffer.
// The buffer is looked up per record so that Initialize can replace it.
type BufferHandler struct {
	buffer func() *RingBuffer
	level  slog.Leveler
	module string
	fixed  map[string]any // attrs from WithAttrs, already flattened
	groups []string
}

// NewBufferHandler creates a handler that writes to the buffer returned by buffer.
func NewBufferHandler(buffer func() *RingBuffer, level slog.Leveler) *BufferHandler {
	return &BufferHandler{buffer: buffer, level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	buf := h.buffer()
	if buf == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelName(r.Level),
		Module:    h.module,
		Message:   r.Message,
	}
	attrs := make(map[string]any, len(h.fixed)+r.NumAttrs())
	maps.Copy(attrs, h.fixed)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && len(h.groups) == 0 {
			entry.Module = a.Value.String()
			return true
		}
		flattenAttr(attrs, h.groups, a)
		return true
	})
	entry.Camera = liftString(attrs, "camera")
	entry.Op = liftString(attrs, "op")
	if len(attrs) > 0 {
		entry.Attributes = attrs
	}

	buf.Write(entry)
	return nil
}

// flattenAttr stores a into attrs with dot-joined group keys.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		sub := append(append([]string(nil), groups...), a.Key)
		for _, ga := range v.Group() {
			flattenAttr(attrs, sub, ga)
		}
	case slog.KindTime:
		attrs[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = v.Any()
		}
	default:
		attrs[key] = v.Any()
	}
}

// WithAttrs implements slog.Handler. A top-level "module" attribute sets the
// entry's module instead of being stored as an attribute.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fixed = maps.Clone(h.fixed)
	if next.fixed == nil {
		next.fixed = make(map[string]any, len(attrs))
	}
	for _, a := range attrs {
		if a.Key == "module" && len(h.groups) == 0 {
			next.module = a.Value.String()
			continue
		}
		flattenAttr(next.fixed, h.groups, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

// liftString removes a top-level string attribute and returns it.
func liftString(attrs map[string]any, key string) string {
	s, ok := attrs[key].(string)
	if ok {
		delete(attrs, key)
	}
	return s
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
