package capture

import (
	"fmt"
	"sync"
)

type deviceKey struct {
	kind  BackendKind
	index CameraIndex
}

// Registry tracks which devices are owned by a live session. A device can be
// held by at most one session at a time.
type Registry struct {
	mu    sync.Mutex
	owned map[deviceKey]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{owned: make(map[deviceKey]struct{})}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is used by sessions constructed without one.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Acquire claims a device. The returned release func is idempotent.
func (r *Registry) Acquire(kind BackendKind, index CameraIndex) (func(), error) {
	key := deviceKey{kind: kind, index: index}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.owned[key]; taken {
		return nil, NewError(ErrDeviceUnavailable, "acquire", fmt.Sprintf("%s device %s is owned by another session", kind, index))
	}
	r.owned[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.owned, key)
			r.mu.Unlock()
		})
	}, nil
}

// Owned reports whether a device is currently claimed.
func (r *Registry) Owned(kind BackendKind, index CameraIndex) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owned[deviceKey{kind: kind, index: index}]
	return ok
}
