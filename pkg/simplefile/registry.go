package simplefile

import (
	"fmt"
	"sort"
	"sync"
)

// DriverFactory constructs a driver. It is called at most once per Provider.
type DriverFactory func() (Driver, error)

// Registry maps driver names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]DriverFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]DriverFactory)}
}

// Register adds a named driver factory, replacing any previous one
func (r *Registry) Register(name string, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered driver names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named driver. Unknown names, factory failures and nil
// drivers are reported as ErrInvalidDriver.
func (r *Registry) Build(name string) (Driver, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: %q is not registered", ErrInvalidDriver, name)
	}

	d, err := factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidDriver, name, err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %q returned no driver", ErrInvalidDriver, name)
	}
	return d, nil
}

// Provider lazily constructs one driver and hands out the same instance on
// every call. Construction runs exactly once even under concurrent first use;
// a construction error is returned to every caller.
type Provider struct {
	name string
	get  func() (Driver, error)
}

// NewProvider defers building the named driver from the registry until first use
func NewProvider(registry *Registry, name string) *Provider {
	return &Provider{
		name: name,
		get: sync.OnceValues(func() (Driver, error) {
			return registry.Build(name)
		}),
	}
}

// StaticProvider wraps an already constructed driver
func StaticProvider(name string, d Driver) *Provider {
	return &Provider{
		name: name,
		get: func() (Driver, error) {
			if d == nil {
				return nil, fmt.Errorf("%w: %q is nil", ErrInvalidDriver, name)
			}
			return d, nil
		},
	}
}

// Name returns the configured driver name
func (p *Provider) Name() string {
	return p.name
}

// Driver returns the driver, constructing it on first use
func (p *Provider) Driver() (Driver, error) {
	return p.get()
}
