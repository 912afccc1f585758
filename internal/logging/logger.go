package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultHistory = 500

var (
	mu        sync.RWMutex
	loggers   = make(map[string]*slog.Logger)
	levels    = make(map[string]*slog.LevelVar)
	current   Config
	ready     bool
	history   = NewRingBuffer(defaultHistory)
	rootLevel = &slog.LevelVar{}

	// output receives text or JSON records. Stdout is left to command output.
	output io.Writer = os.Stderr
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
	// History is the number of recent records kept for /api/logs.
	History int `toml:"history"`
}

// Initialize sets up the logging system. Loggers obtained earlier keep
// working and pick up the new levels.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	// an empty module level means "follow the global level"
	modules := make(map[string]string, len(cfg.Modules))
	for m, l := range cfg.Modules {
		if l != "" {
			modules[m] = l
		}
	}
	cfg.Modules = modules

	current = cfg
	ready = true
	size := cfg.History
	if size <= 0 {
		size = defaultHistory
	}
	history = NewRingBuffer(size)

	rootLevel.Set(levelFor(cfg, ""))
	for module, lv := range levels {
		lv.Set(levelFor(cfg, module))
		loggers[module] = slog.New(newHandler(cfg.Format, lv)).With("module", module)
	}
	slog.SetDefault(slog.New(newHandler(cfg.Format, rootLevel)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	logger, ok := loggers[module]
	mu.RUnlock()
	if ok {
		return logger
	}

	mu.Lock()
	defer mu.Unlock()
	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(levelFor(current, module))
	format := "text"
	if ready {
		format = current.Format
	}
	logger = slog.New(newHandler(format, lv)).With("module", module)
	loggers[module] = logger
	levels[module] = lv
	return logger
}

// SetLevel changes a module's level at runtime. An empty module changes the
// default logger and every module without an override.
func SetLevel(module, level string) error {
	parsed, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	mu.Lock()
	defer mu.Unlock()
	if module == "" {
		rootLevel.Set(parsed)
		for m, lv := range levels {
			if _, override := current.Modules[m]; !override {
				lv.Set(parsed)
			}
		}
		return nil
	}
	lv, ok := levels[module]
	if !ok {
		return fmt.Errorf("unknown log module %q", module)
	}
	lv.Set(parsed)
	return nil
}

// History returns the buffer of recent records.
func History() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return history
}

// levelFor resolves a module's level: module override, then global, then info.
func levelFor(cfg Config, module string) slog.Level {
	if s, ok := cfg.Modules[module]; ok {
		if l, ok := parseLevel(s); ok {
			return l
		}
	}
	if l, ok := parseLevel(cfg.Level); ok {
		return l
	}
	return slog.LevelInfo
}

// newHandler fans out to the output writer, the journal when present and
// the history buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if writable(output) {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(output, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(output, opts))
		}
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(History, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanout(handlers)
}

// writable reports whether w is a terminal, pipe, socket or regular file.
func writable(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return w != nil
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
