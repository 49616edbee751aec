package toolkit

import "fmt"

// Registry is the ordered capability list for one agent type. Order encodes
// dependency: a capability may only depend on capabilities registered
// before it, and the orchestrator walks the list strictly in order.
type Registry struct {
	caps   []Capability
	byName map[string]Capability
}

// NewRegistry validates and builds a registry from capabilities in
// registration order. It rejects duplicate names and forward or missing
// dependency references.
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{
		caps:   make([]Capability, 0, len(caps)),
		byName: make(map[string]Capability, len(caps)),
	}

	for _, c := range caps {
		name := c.Name()
		if name == "" {
			return nil, fmt.Errorf("registry: capability with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("registry: duplicate capability %q", name)
		}
		for _, dep := range c.DependsOn() {
			if _, ok := r.byName[dep]; !ok {
				return nil, fmt.Errorf("registry: capability %q depends on %q, which is not registered before it", name, dep)
			}
		}
		r.caps = append(r.caps, c)
		r.byName[name] = c
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for statically known capability lists.
func MustNewRegistry(caps ...Capability) *Registry {
	r, err := NewRegistry(caps...)
	if err != nil {
		panic(err)
	}
	return r
}

// Capabilities returns the capabilities in registration order. Callers must
// not mutate the returned slice.
func (r *Registry) Capabilities() []Capability { return r.caps }

// Get returns the named capability.
func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int { return len(r.caps) }
