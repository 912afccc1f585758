package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// startWatcher starts a profile watcher on path with a short debounce.
func startWatcher(t *testing.T, path string, opts ...WatcherOption[Profile]) *Watcher[Profile] {
	t.Helper()
	opts = append([]WatcherOption[Profile]{WithDebounce[Profile](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, LoadProfile, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	// let the watcher settle
	time.Sleep(50 * time.Millisecond)
	return w
}

func waitProfile(t *testing.T, ch <-chan Profile) Profile {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
		return Profile{}
	}
}

func TestWatcher_ReloadsProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	writeFile(t, path, "[controls]\nbrightness = 1\n")

	received := make(chan Profile, 1)
	w := startWatcher(t, path)
	w.OnReload(func(p Profile) { received <- p })

	writeFile(t, path, "format = \"highest-resolution\"\n[controls]\nbrightness = 42\n")

	p := waitProfile(t, received)
	if p.Format != "highest-resolution" || p.Controls["brightness"] != int64(42) {
		t.Errorf("reloaded profile = %+v", p)
	}
}

func TestWatcher_FollowsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.toml")
	writeFile(t, path, "[controls]\ngain = 10\n")

	received := make(chan Profile, 1)
	w := startWatcher(t, path)
	w.OnReload(func(p Profile) { received <- p })

	tmp := filepath.Join(dir, ".profile.toml.swp")
	writeFile(t, tmp, "[controls]\ngain = 70\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if p := waitProfile(t, received); p.Controls["gain"] != int64(70) {
		t.Errorf("reloaded profile = %+v", p)
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.toml")
	writeFile(t, path, "[controls]\n")

	var calls atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(Profile) { calls.Add(1) })

	writeFile(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for a sibling file", n)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	writeFile(t, path, "[controls]\n")

	var calls atomic.Int32
	last := make(chan Profile, 10)
	w := startWatcher(t, path, WithDebounce[Profile](200*time.Millisecond))
	w.OnReload(func(p Profile) {
		calls.Add(1)
		last <- p
	})

	for _, v := range []string{"1", "2", "3", "4"} {
		writeFile(t, path, "[controls]\nzoom = "+v+"\n")
		time.Sleep(20 * time.Millisecond)
	}

	if p := waitProfile(t, last); p.Controls["zoom"] != int64(4) {
		t.Errorf("debounced profile = %+v", p)
	}
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	writeFile(t, path, "[controls]\n")

	var first, second atomic.Int32
	done := make(chan struct{}, 1)
	w := startWatcher(t, path)
	unsub := w.OnReload(func(Profile) { first.Add(1) })
	w.OnReload(func(Profile) {
		second.Add(1)
		done <- struct{}{}
	})
	unsub()

	writeFile(t, path, "[controls]\nfocus = 3\n")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	if first.Load() != 0 || second.Load() != 1 {
		t.Errorf("calls = %d, %d; want 0, 1", first.Load(), second.Load())
	}
}

func TestWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	writeFile(t, path, "[controls]\n")

	errs := make(chan error, 10)
	var reloads atomic.Int32
	w := startWatcher(t, path, WithErrorHandler[Profile](func(err error) { errs <- err }))
	w.OnReload(func(Profile) { reloads.Add(1) })

	writeFile(t, path, "[controls]\nnot_a_control = 1\n")
	select {
	case err := <-errs:
		if err == nil {
			t.Error("nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for load error")
	}
	if reloads.Load() != 0 {
		t.Error("handler called with an invalid profile")
	}
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "profile.toml"), LoadProfile, newTestLogger())
	if err := w.Start(); err == nil {
		_ = w.Stop()
		t.Error("Start() on a missing directory succeeded")
	}
}
