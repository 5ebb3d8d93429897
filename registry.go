package norm

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry holds the schemas of the models known to a client. It is
// owned by the client and lives for the client's lifetime; there is no
// process-wide model state. Reads happen during query translation,
// writes only during registration, guarded by a single mutex.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*schema
	byName map[string]*schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: map[reflect.Type]*schema{},
		byName: map[string]*schema{},
	}
}

// schemaFor returns the schema for a model type, deriving and caching
// it on first use. Schemas obtained this way are usable for ad-hoc
// lifecycle queries but stay unregistered until RegisterModels runs.
func (r *Registry) schemaFor(t reflect.Type) (*schema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	s, ok := r.byType[t]
	r.mu.RUnlock()

	if ok {
		return s, nil
	}

	s, err := deriveSchema(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[t]; ok {
		return existing, nil
	}

	r.byType[t] = s

	return s, nil
}

// register marks a schema as registered and indexes it by model name.
func (r *Registry) register(s *schema) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.registered = true
	r.byType[s.typ] = s
	r.byName[s.name] = s
}

// registered returns the registered schema with the given model name.
func (r *Registry) registered(name string) (*schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredModel, name)
	}

	return s, nil
}

// Models returns the names of all registered models.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}

	return names
}
