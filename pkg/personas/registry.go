package personas

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Registry is a mutable, name-keyed collection of personas.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]Persona
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{personas: make(map[string]Persona)}
}

// LoadBuiltIn loads the embedded persona roster.
func (r *Registry) LoadBuiltIn() error {
	return r.loadYAML(builtinYAML)
}

// LoadFile merges personas from a YAML file on disk over whatever is
// already registered. Same-named entries are replaced.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("personas: read %s: %w", path, err)
	}
	return r.loadYAML(data)
}

func (r *Registry) loadYAML(data []byte) error {
	var doc struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("personas: parse: %w", err)
	}
	for _, p := range doc.Personas {
		if err := p.Validate(); err != nil {
			return err
		}
		r.Upsert(p)
	}
	return nil
}

// Upsert adds the persona or replaces an existing one with the same name.
func (r *Registry) Upsert(p Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas[p.Name] = p
}

// Get retrieves a persona by exact name.
func (r *Registry) Get(name string) (Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[name]
	return p, ok
}

// List returns all registered persona names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.personas))
	for name := range r.personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered personas.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}
