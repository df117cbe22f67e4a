// Package plugin is the extension point for cache and provider backends that
// are not in the builtin registries. A backend package registers a namespace
// of constructors under its module name, and configuration data addresses a
// constructor with a specifier string, either "module:Expression" (preferred)
// or the legacy dotted "module.Name" form.
package plugin

import (
	"fmt"
	"strings"
	"sync"
)

// Constructor builds a backend instance from a flat keyword-argument mapping.
type Constructor func(args map[string]any) (any, error)

// LoadError wraps any failure to resolve a specifier, echoing the original
// specifier string alongside the underlying cause.
type LoadError struct {
	Specifier string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("tried to load %s, but: %v", e.Specifier, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Registry maps specifier strings to constructors. Registration is the Go
// analogue of a module being importable; resolution is memoized process-wide
// so re-resolving a specifier is idempotent and never re-runs registration
// side effects.
type Registry struct {
	mu       sync.RWMutex
	modules  map[string]map[string]Constructor
	resolved map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{
		modules:  make(map[string]map[string]Constructor),
		resolved: make(map[string]Constructor),
	}
}

// Register adds a module namespace of exported constructors. Registering the
// same module twice merges the exports, later entries winning.
func (r *Registry) Register(module string, exports map[string]Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.modules[module]
	if !ok {
		ns = make(map[string]Constructor, len(exports))
		r.modules[module] = ns
	}
	for name, ctor := range exports {
		ns[name] = ctor
	}
}

// Resolve looks up a specifier, memoizing successful resolutions.
func (r *Registry) Resolve(specifier string) (Constructor, error) {
	r.mu.RLock()
	ctor, ok := r.resolved[specifier]
	r.mu.RUnlock()
	if ok {
		return ctor, nil
	}

	module, symbol, err := splitSpecifier(specifier)
	if err != nil {
		return nil, &LoadError{Specifier: specifier, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctor, ok := r.resolved[specifier]; ok {
		return ctor, nil
	}
	ns, ok := r.modules[module]
	if !ok {
		return nil, &LoadError{Specifier: specifier, Err: fmt.Errorf("no module %q registered", module)}
	}
	ctor, ok = ns[symbol]
	if !ok {
		return nil, &LoadError{Specifier: specifier, Err: fmt.Errorf("module %q has no symbol %q", module, symbol)}
	}
	if ctor == nil {
		return nil, &LoadError{Specifier: specifier, Err: fmt.Errorf("symbol %q in %q is nil", symbol, module)}
	}
	r.resolved[specifier] = ctor
	return ctor, nil
}

// Reset drops all registrations and memoized resolutions. Tests only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = make(map[string]map[string]Constructor)
	r.resolved = make(map[string]Constructor)
}

func splitSpecifier(specifier string) (module, symbol string, err error) {
	if module, symbol, ok := strings.Cut(specifier, ":"); ok {
		if module == "" || symbol == "" {
			return "", "", fmt.Errorf("malformed specifier")
		}
		return module, symbol, nil
	}
	// Legacy dotted form: everything before the last dot is the module.
	i := strings.LastIndex(specifier, ".")
	if i <= 0 || i == len(specifier)-1 {
		return "", "", fmt.Errorf("malformed specifier")
	}
	return specifier[:i], specifier[i+1:], nil
}

var defaultRegistry = NewRegistry()

// Register adds a module namespace to the process-wide registry.
func Register(module string, exports map[string]Constructor) {
	defaultRegistry.Register(module, exports)
}

// Resolve resolves a specifier against the process-wide registry.
func Resolve(specifier string) (Constructor, error) {
	return defaultRegistry.Resolve(specifier)
}
