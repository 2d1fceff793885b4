package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the reflected model set for the host application.
// It is populated once at startup (from a schema definition file or
// programmatically by the host) and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates an empty model registry
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
	}
}

// Register adds a model to the registry. Registering the same name twice
// is an error.
func (r *Registry) Register(m *Model) error {
	if m == nil || m.Name == "" {
		return fmt.Errorf("model must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("model already registered: %s", m.Name)
	}

	if m.Table == "" {
		m.Table = Tableize(m.Name)
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = "id"
	}
	r.models[m.Name] = m
	return nil
}

// Get returns the named model
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Names returns all registered model names in lexicographic order,
// skipping abstract models and any name on the exclusion list.
func (r *Registry) Names(excluded []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[name] = true
	}

	names := make([]string, 0, len(r.models))
	for name, m := range r.models {
		if m.Abstract || skip[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered models, abstract ones included
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
