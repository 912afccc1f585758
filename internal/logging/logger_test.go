package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// reset clears package state and captures output in the returned buffer.
func reset(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	mu.Lock()
	loggers = make(map[string]*slog.Logger)
	levels = make(map[string]*slog.LevelVar)
	current = Config{}
	ready = false
	history = NewRingBuffer(defaultHistory)
	prev := output
	output = &buf
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		output = prev
		mu.Unlock()
	})
	return &buf
}

func TestModuleLevelOverride(t *testing.T) {
	reset(t)
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"v4l2": "debug",
			"api":  "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"v4l2", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestOutputFormat(t *testing.T) {
	buf := reset(t)
	Initialize(Config{Level: "debug", Format: "json"})

	GetLogger("capture").Debug("frame pulled", "sequence", 7)

	out := buf.String()
	if !strings.Contains(out, `"msg":"frame pulled"`) || !strings.Contains(out, `"module":"capture"`) {
		t.Errorf("unexpected JSON output: %s", out)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	reset(t)

	before := GetLogger("sessions")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}
	if GetLogger("sessions") != before {
		t.Error("GetLogger should cache loggers")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"sessions": "debug"}})

	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger obtained before Initialize should pick up the new level")
	}
}

func TestSetLevel(t *testing.T) {
	reset(t)
	Initialize(Config{Level: "info", Modules: map[string]string{"api": "error"}})
	cam := GetLogger("capture")
	api := GetLogger("api")
	ctx := context.Background()

	if err := SetLevel("", "debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if !cam.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("global SetLevel did not reach capture")
	}
	if api.Handler().Enabled(ctx, slog.LevelWarn) {
		t.Error("global SetLevel overrode the api module override")
	}

	if err := SetLevel("api", "warn"); err != nil {
		t.Fatalf("SetLevel(api) error = %v", err)
	}
	if !api.Handler().Enabled(ctx, slog.LevelWarn) {
		t.Error("module SetLevel had no effect")
	}

	if err := SetLevel("api", "loud"); err == nil {
		t.Error("SetLevel accepted an unknown level")
	}
	if err := SetLevel("nope", "info"); err == nil {
		t.Error("SetLevel accepted an unknown module")
	}
}

func TestHistory(t *testing.T) {
	reset(t)
	Initialize(Config{Level: "info", History: 2})

	logger := GetLogger("virtual").With("camera", "0")
	logger.Debug("skipped")
	logger.Info("first")
	logger.WithGroup("frame").Warn("second", "size", 42, "error", errors.New("short"))
	logger.Error("third")

	entries := History().Query(Filter{})
	if len(entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(entries))
	}
	second := entries[0]
	if second.Message != "second" || second.Level != "warn" || second.Module != "virtual" {
		t.Errorf("entry = %+v", second)
	}
	if second.Camera != "0" {
		t.Errorf("camera = %q", second.Camera)
	}
	if _, ok := second.Attributes["camera"]; ok {
		t.Error("camera kept as an attribute")
	}
	if second.Attributes["frame.size"] != int64(42) || second.Attributes["frame.error"] != "short" {
		t.Errorf("grouped attrs = %v", second.Attributes)
	}
	if entries[1].Message != "third" || entries[1].Seq != second.Seq+1 {
		t.Errorf("last entry = %+v", entries[1])
	}
}

func TestHistoryFilter(t *testing.T) {
	reset(t)
	Initialize(Config{Level: "debug"})

	GetLogger("capture").With("camera", "0").Debug("Capture operation failed", "op", "frame")
	GetLogger("capture").With("camera", "1").Warn("Stream teardown failed", "op", "stop")
	GetLogger("sessions").Info("Session opened")
	mark := History().LastSeq()
	GetLogger("capture").With("camera", "1").Error("Capture operation failed", "op", "frame")

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"camera", Filter{Camera: "1"}, []string{"Stream teardown failed", "Capture operation failed"}},
		{"op", Filter{Op: "frame"}, []string{"Capture operation failed", "Capture operation failed"}},
		{"module and level", Filter{Module: "capture", MinLevel: slog.LevelWarn}, []string{"Stream teardown failed", "Capture operation failed"}},
		{"after", Filter{After: mark}, []string{"Capture operation failed"}},
		{"no match", Filter{Camera: "7"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range History().Query(tt.filter) {
				got = append(got, e.Message)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Query() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ParseFilterLevel("loud"); err == nil {
		t.Error("ParseFilterLevel accepted an unknown level")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestFanout(t *testing.T) {
	var buf bytes.Buffer
	debug := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(fanout{debug, info}).With("module", "test")
	logger.Debug("debug only message")
	if count := strings.Count(buf.String(), "debug only message"); count != 1 {
		t.Errorf("debug message written %d times: %s", count, buf.String())
	}

	buf.Reset()
	h := fanout{failingHandler{info}, info}
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "still written", 0)
	if err := h.Handle(context.Background(), r); err == nil || err.Error() != "sink down" {
		t.Errorf("Handle() = %v, want sink down", err)
	}
	if !strings.Contains(buf.String(), "still written") {
		t.Error("failing sink blocked the others")
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)
	if rb.Query(Filter{}) != nil || rb.LastSeq() != 0 {
		t.Error("empty buffer returned entries")
	}
	for i := range 5 {
		rb.Write(LogEntry{Message: string(rune('a' + i)), Level: "info", Timestamp: time.Unix(int64(i), 0)})
	}
	got := rb.Query(Filter{})
	if rb.Len() != 3 || len(got) != 3 || got[0].Message != "c" || got[2].Message != "e" {
		t.Errorf("Query() = %+v", got)
	}
	if got[0].Seq != 3 || rb.LastSeq() != 5 {
		t.Errorf("seq = %d, last = %d", got[0].Seq, rb.LastSeq())
	}
}

func TestJournalFieldNames(t *testing.T) {
	fields := map[string]string{}
	journalField(fields, "", slog.String("camera-index", "0"))
	journalField(fields, "FRAME_", slog.Group("fmt", slog.Int("w", 640)))
	journalField(fields, "", slog.Float64("fps", 29.97))

	want := map[string]string{"CAMERA_INDEX": "0", "FRAME_FMT_W": "640", "FPS": "29.97"}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"invalid", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseLevel(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}
