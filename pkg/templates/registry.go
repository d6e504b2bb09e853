// Package templates holds the sorting programs offered as ready-made trace
// sources, and validates the input arrays spliced into them.
package templates

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Placeholder is replaced by the formatted input array in a template source.
const Placeholder = "%input%"

// Template is a program with one Placeholder.
type Template struct {
	Name        string
	Title       string
	Description string
	Source      string
}

// Registry manages the available templates.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]Template),
	}
}

// Register adds a template to the registry.
// If a template with the same name exists, it is overwritten.
func (r *Registry) Register(t Template) error {
	if t.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if !strings.Contains(t.Source, Placeholder) {
		return fmt.Errorf("template %s has no %s placeholder", t.Name, Placeholder)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
	return nil
}

// Get looks up a template by name.
func (r *Registry) Get(name string) (Template, error) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return Template{}, fmt.Errorf("%w: %s", domain.ErrUnknownTemplate, name)
	}
	return t, nil
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns the registered templates sorted by name.
func (r *Registry) List() []Template {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Template, 0, len(names))
	for _, name := range names {
		out = append(out, r.templates[name])
	}
	return out
}

// Render validates input and returns the template source with the array spliced in.
func (r *Registry) Render(name, input string) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	values, err := ParseInput(input)
	if err != nil {
		return "", err
	}
	return strings.Replace(t.Source, Placeholder, values, 1), nil
}

var builtin = func() *Registry {
	r := NewRegistry()
	for _, t := range sortingTemplates {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}()

// Default returns the registry of built-in sorting templates.
func Default() *Registry { return builtin }

// Render renders a built-in template.
func Render(name, input string) (string, error) {
	return builtin.Render(name, input)
}

// Names lists the built-in templates.
func Names() []string {
	return builtin.Names()
}
