package family

import (
	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Registry
// =============================================================================

// Registry owns every family of one synthesis run. Cross-references between
// families go through the registry by name, never through embedded pointers,
// so the object graph stays acyclic.
type Registry struct {
	families map[string]*Family
	order    []string
}

// NewRegistry returns an empty family registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*Family)}
}

// Assign places a service into the family named by its Family field,
// creating the family on first use. Families keep the order in which they
// were first referenced.
func (r *Registry) Assign(svc compose.Service) *Family {
	name := svc.Family
	if name == "" {
		name = svc.Name
	}
	f, ok := r.families[name]
	if !ok {
		f = newFamily(name)
		r.families[name] = f
		r.order = append(r.order, name)
	}
	f.addService(svc)
	return f
}

// Get returns the family by name.
func (r *Registry) Get(name string) (*Family, bool) {
	f, ok := r.families[name]
	return f, ok
}

// Families returns every family in first-reference order.
func (r *Registry) Families() []*Family {
	out := make([]*Family, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.families[name])
	}
	return out
}

// ExposedTargets lists the exposed endpoints of every family, in family
// order, for the listener target resolution phase.
func (r *Registry) ExposedTargets() []ExposedTarget {
	var targets []ExposedTarget
	for _, f := range r.Families() {
		targets = append(targets, f.ExposedTargets()...)
	}
	return targets
}
