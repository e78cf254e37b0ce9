package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps strategy names to instances.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy. Names must be unique.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return fmt.Errorf("strategy is nil")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("strategy name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("strategy %s already registered", name)
	}
	r.strategies[name] = s
	return nil
}

func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return s, nil
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
