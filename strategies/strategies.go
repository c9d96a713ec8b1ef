// Package strategies defines the signal producer interface consumed by the
// backtest engine and a registry so strategies are constructed by name via
// factories rather than runtime type lookup
package strategies

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps lower case strategy names to factories. It is explicitly
// constructed and passed by reference, there is no package level instance
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the built in strategies
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	// registration of built ins cannot collide
	_ = r.Register(BuyAndHoldName, func() Handler { return new(BuyAndHold) })
	return r
}

// Register adds a strategy factory under a case insensitive name
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("%w: empty name or nil factory", ErrStrategyNotFound)
	}
	key := strings.ToLower(name)
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("%w: %v", ErrStrategyAlreadyExists, name)
	}
	r.factories[key] = factory
	return nil
}

// Create constructs a fresh instance of the named strategy
func (r *Registry) Create(name string) (Handler, error) {
	factory, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrStrategyNotFound, name)
	}
	return factory(), nil
}

// List returns the registered strategy names sorted alphabetically
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
