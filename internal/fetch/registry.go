package fetch

import (
	"fmt"

	"BioMedNews/internal/ports"
)

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]ports.PaperSource
	order   []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.PaperSource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source ports.PaperSource) {
	if r.sources == nil {
		r.sources = map[string]ports.PaperSource{}
	}
	if _, exists := r.sources[source.Name()]; !exists {
		r.order = append(r.order, source.Name())
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.PaperSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// All returns the registered sources in registration order.
func (r *Registry) All() []ports.PaperSource {
	sources := make([]ports.PaperSource, 0, len(r.order))
	for _, name := range r.order {
		sources = append(sources, r.sources[name])
	}
	return sources
}
