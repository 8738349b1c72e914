package capability

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// ExecutorFactory produces the executable behavior for one implementation
// key. Factories are registered once at process start; there is no runtime
// class lookup.
type ExecutorFactory func(capability models.Capability) (Executor, error)

// Executor is implemented by anything that can run a capability. The
// concrete contract lives in the action package; this indirection keeps the
// registry free of execution dependencies.
type Executor interface {
	Name() string
}

// Registry maps implementation keys to executor factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ExecutorFactory
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ExecutorFactory)}
}

// Register registers a factory for an implementation key
func (r *Registry) Register(implementationKey string, factory ExecutorFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[implementationKey]; exists {
		return fmt.Errorf("implementation %s already registered", implementationKey)
	}
	r.factories[implementationKey] = factory
	return nil
}

// Build produces an executor for the capability's implementation key
func (r *Registry) Build(capability models.Capability) (Executor, error) {
	r.mu.RLock()
	factory, exists := r.factories[capability.ImplementationKey]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("implementation %s not registered (registered: %s)",
			capability.ImplementationKey, strings.Join(r.Keys(), ", "))
	}
	return factory(capability)
}

// Keys returns all registered implementation keys, sorted
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
