package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// ModuleConfig names a pluggable backend and carries its raw settings.
// The config layer leaves Conf undecoded so each factory can apply its
// own schema.
type ModuleConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Factory constructs an implementation of T from raw settings.
type Factory[T any] func(map[string]any) (T, error)

// Registry maps backend names to factories. Registration happens in
// package init functions, creation at service assembly.
type Registry[T any] struct {
	mu       sync.RWMutex
	builders map[string]Factory[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{builders: map[string]Factory[T]{}}
}

// Register adds a factory under the given name. Registering the same
// name twice is an error so a plugin cannot silently shadow a builtin.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("factory nil for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.builders[name]; taken {
		return fmt.Errorf("factory already registered for %s", name)
	}
	r.builders[name] = f
	return nil
}

// Create instantiates the backend the configuration names.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	r.mu.RLock()
	f, ok := r.builders[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown module type %q, registered: %v", cfg.Type, r.Types())
	}
	return f(cfg.Conf)
}

// Types returns the registered backend names, sorted.
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode fills out a settings struct from raw config using json tags,
// the same tag set the file loader uses.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
