package logging

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one record kept in the history. Camera and Op are lifted out of
// the attributes so capture failures can be found per device.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Camera     string         `json:"camera,omitempty"`
	Op         string         `json:"op,omitempty"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Filter selects history entries. Zero fields match everything.
type Filter struct {
	Module   string
	Camera   string
	Op       string
	MinLevel slog.Level
	// After skips entries with a sequence number at or below it.
	After uint64
}

// ParseFilterLevel resolves a level name for Filter.MinLevel. An empty name
// is debug, which keeps every entry.
func ParseFilterLevel(name string) (slog.Level, error) {
	if name == "" {
		return slog.LevelDebug, nil
	}
	l, ok := parseLevel(name)
	if !ok {
		return 0, fmt.Errorf("unknown level %q", name)
	}
	return l, nil
}

func (f Filter) match(e *LogEntry) bool {
	if e.Seq <= f.After {
		return false
	}
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.Camera != "" && e.Camera != f.Camera {
		return false
	}
	if f.Op != "" && e.Op != f.Op {
		return false
	}
	l, _ := parseLevel(e.Level)
	return l >= f.MinLevel
}

// RingBuffer keeps the most recent entries, numbering them as they arrive.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
	seq     uint64
}

// NewRingBuffer returns a buffer holding at most size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, max(size, 1))}
}

// Write stores entry, assigning its sequence number and evicting the oldest
// entry when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	entry.Seq = rb.seq
	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
}

// Query returns matching entries, oldest first.
func (rb *RingBuffer) Query(f Filter) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []LogEntry
	visit := func(part []LogEntry) {
		for i := range part {
			if f.match(&part[i]) {
				out = append(out, part[i])
			}
		}
	}
	if rb.full {
		visit(rb.entries[rb.next:])
	}
	visit(rb.entries[:rb.next])
	return out
}

// Len returns the number of stored entries.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}

// LastSeq returns the sequence number of the newest entry, 0 when empty.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}
