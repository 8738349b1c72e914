package llm

import (
	"fmt"
	"sync"
)

// Registry maps provider names to clients
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register registers a client under a provider name
func (r *Registry) Register(name string, client Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.clients[name] = client
	return nil
}

// Get retrieves a client by provider name
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return client, nil
}

// List returns all registered provider names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
