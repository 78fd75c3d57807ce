package tools

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds the resolved tool set. It is built once at startup and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools.
// Duplicate names are a wiring error and fail construction.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		r.tools[name] = t
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptions returns one description line per tool, sorted by name.
// Injected into the planner prompt as the available tool list.
func (r *Registry) Descriptions() string {
	var b strings.Builder
	for i, name := range r.Names() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.tools[name].Description())
	}
	return b.String()
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
