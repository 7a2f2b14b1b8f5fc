package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.ExtractorRegistry = (*LoggingRegistry)(nil)

// LoggingRegistry wraps an ExtractorRegistry with debug logging of which
// extractor each page is routed to.
type LoggingRegistry struct {
	next   urlkeep.ExtractorRegistry
	logger *slog.Logger
}

// NewLoggingRegistry creates a new LoggingRegistry.
func NewLoggingRegistry(next urlkeep.ExtractorRegistry, logger *slog.Logger) *LoggingRegistry {
	return &LoggingRegistry{next: next, logger: logger}
}

// Register delegates to the wrapped registry.
func (r *LoggingRegistry) Register(extractor urlkeep.Extractor) {
	r.next.Register(extractor)
}

// Select delegates to the wrapped registry and logs the chosen extractor.
func (r *LoggingRegistry) Select(page *urlkeep.Page) urlkeep.Extractor {
	begin := time.Now()
	extractor := r.next.Select(page)
	r.logger.Debug("extractor selection",
		"url", page.URL,
		"match_url", page.SelectURL(),
		"extractor", extractor.Name(),
		"duration", time.Since(begin),
	)
	return extractor
}

// List delegates to the wrapped registry.
func (r *LoggingRegistry) List() []string {
	return r.next.List()
}
