package goquery

import "github.com/fwojciec/urlkeep"

var _ urlkeep.ExtractorRegistry = (*Registry)(nil)

// Registry holds extractors in registration order in front of a fallback
// that always matches, so Select never comes back empty. Register is meant
// for wiring time and is not safe to call concurrently with Select.
type Registry struct {
	extractors []urlkeep.Extractor
	fallback   urlkeep.Extractor
}

// NewRegistry creates a new Registry with the given fallback extractor.
// A nil fallback means the GenericExtractor.
func NewRegistry(fallback urlkeep.Extractor) *Registry {
	if fallback == nil {
		fallback = NewGenericExtractor()
	}
	return &Registry{fallback: fallback}
}

// Register appends an extractor. Earlier registrations take priority.
func (r *Registry) Register(extractor urlkeep.Extractor) {
	r.extractors = append(r.extractors, extractor)
}

// Select returns the first registered extractor whose Match is true,
// falling back to the fallback extractor.
func (r *Registry) Select(page *urlkeep.Page) urlkeep.Extractor {
	for _, e := range r.extractors {
		if e.Match(page) {
			return e
		}
	}
	return r.fallback
}

// List returns extractor names in selection order, fallback last.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.extractors)+1)
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	return append(names, r.fallback.Name())
}
