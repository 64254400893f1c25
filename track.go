package owned

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/owned/errors"
)

// registry remembers every address held by a live owner while tracking is
// enabled. It is the only piece of shared state in the package.
var registry = struct {
	live    map[any]struct{}
	mu      sync.Mutex
	enabled atomic.Bool
}{
	live: make(map[any]struct{}),
}

// SetTracking turns double-adoption detection on or off. While enabled,
// adopting an address that another live owner already holds panics with a
// KindDoubleAdopt error. Turning tracking off forgets every recorded address.
//
// Tracking costs a mutex and a map operation per ownership change, so it is
// meant for tests and debugging.
func SetTracking(enabled bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.enabled.Store(enabled)
	if !enabled {
		clear(registry.live)
	}
}

// Tracking reports whether double-adoption detection is enabled.
func Tracking() bool {
	return registry.enabled.Load()
}

func track[T any](phase errors.Phase, p *T) {
	if p == nil || !registry.enabled.Load() {
		return
	}

	registry.mu.Lock()
	_, dup := registry.live[p]
	if !dup {
		registry.live[p] = struct{}{}
	}
	registry.mu.Unlock()

	if dup {
		err := errors.DoubleAdopt(phase, typeName[T](), p)
		Logger().Error("address adopted twice", zap.String("type", typeName[T]()), zap.Error(err))
		panic(err)
	}
}

func untrack[T any](p *T) {
	if p == nil || !registry.enabled.Load() {
		return
	}

	registry.mu.Lock()
	delete(registry.live, p)
	registry.mu.Unlock()
}
