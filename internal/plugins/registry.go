package plugins

import (
	"fmt"
	"sort"
	"sync"

	"terrapipe/internal/config"
	"terrapipe/internal/services"
)

// Factory builds a fresh, unconfigured plugin instance.
type Factory func() Analysis

// Registry maps plugin names to factories. Plugin implementations are
// statically linked; configuration selects which ones run and with what
// parameters.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the builtin plugins.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for name, factory := range builtinFactories() {
		r.factories[name] = factory
	}
	return r
}

// Register adds a factory under a name. Registering a name twice is an
// error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("plugin registration requires a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("plugin already registered: %s", name)
	}
	r.factories[name] = factory
	return nil
}

// Names returns the registered plugin names in sorted order.
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

// Resolve instantiates and configures the plugins named in configuration,
// in configuration order. An unknown name or a Configure failure is a
// configuration error.
func (r *Registry) Resolve(cfgs []config.Plugin) ([]Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := make([]Analysis, 0, len(cfgs))
	for _, pc := range cfgs {
		factory, ok := r.factories[pc.Name]
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "plugins", "resolve",
				fmt.Sprintf("unknown plugin %q (registered: %v)", pc.Name, r.sortedNames()), nil)
		}
		analysis := factory()
		if err := analysis.Configure(pc.Params); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "plugins", "configure", pc.Name, err)
		}
		resolved = append(resolved, analysis)
	}
	return resolved, nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
