package pattern

// Registry is an ordered, append-friendly collection of patterns keyed by
// name. It performs no locking: when patterns are mutated concurrently with
// analysis calls, the owner is responsible for serializing access.
type Registry struct {
	patterns []ScamPattern
}

// NewRegistry creates a registry seeded with the given patterns, in order.
func NewRegistry(patterns ...ScamPattern) *Registry {
	r := &Registry{}
	r.AddAll(patterns)
	return r
}

// Add appends a pattern. Name uniqueness is not enforced here; callers that
// want unique names check before adding.
func (r *Registry) Add(p ScamPattern) {
	r.patterns = append(r.patterns, p)
}

// AddAll appends each pattern in input order.
func (r *Registry) AddAll(patterns []ScamPattern) {
	r.patterns = append(r.patterns, patterns...)
}

// Remove drops the first pattern with the given name and reports whether
// one was found.
func (r *Registry) Remove(name string) bool {
	for i, p := range r.patterns {
		if p.Name == name {
			r.patterns = append(r.patterns[:i], r.patterns[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.patterns = nil
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	return len(r.patterns)
}

// Patterns returns a snapshot copy in registration order.
func (r *Registry) Patterns() []ScamPattern {
	out := make([]ScamPattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Find returns the first pattern with the given name.
func (r *Registry) Find(name string) (ScamPattern, bool) {
	for _, p := range r.patterns {
		if p.Name == name {
			return p, true
		}
	}
	return ScamPattern{}, false
}
