package engine

import (
	"sort"
	"sync"

	"github.com/Helloworld152/hft-eb/internal/bus"
)

// Module is the uniform plugin lifecycle. Init may subscribe bus handlers
// and register timers; Start launches goroutines; Stop joins them. The host
// guarantees Stop runs before the bus is cleared and the instance released.
type Module interface {
	Init(b *bus.Bus, cfg Config, timer TimerService) error
	Start() error
	Stop() error
}

// Factory builds a fresh module instance.
type Factory func() Module

var (
	factoryMu sync.Mutex
	factories = make(map[string]Factory)
)

// Register adds a module factory under name. Modules register from their
// package init; all modules are linked into the binary, which removes the
// unload-ordering hazard of dynamic loading.
func Register(name string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = f
}

func lookup(name string) (Factory, bool) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	f, ok := factories[name]
	return f, ok
}

// RegisteredModules returns the sorted registered module names.
func RegisteredModules() []string {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
