package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured providers keyed by ID.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. IDs must be unique.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("register provider: nil provider")
	}
	if !p.Capabilities().Type.IsValid() {
		return fmt.Errorf("register provider %s: unknown type %q", p.ID(), p.Capabilities().Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("provider %s: %w", id, ErrDuplicateProvider)
	}
	r.providers[id] = p
	return nil
}

// Get retrieves a provider by ID.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", id, ErrProviderNotFound)
	}
	return p, nil
}

// ListByType returns the providers of type t ordered by ID.
func (r *Registry) ListByType(t ProviderType) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Provider
	for _, p := range r.providers {
		if p.Capabilities().Type == t {
			result = append(result, p)
		}
	}
	sortByID(result)
	return result
}

// All returns every provider ordered by ID.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sortByID(result)
	return result
}

func sortByID(ps []Provider) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID() < ps[j].ID() })
}
