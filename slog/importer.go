package slog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.Importer = (*LoggingImporter)(nil)

// LoggingImporter wraps an Importer with logging. Duplicates are logged at
// info level since they are an expected outcome.
type LoggingImporter struct {
	next   urlkeep.Importer
	logger *slog.Logger
}

// NewLoggingImporter creates a new LoggingImporter.
func NewLoggingImporter(next urlkeep.Importer, logger *slog.Logger) *LoggingImporter {
	return &LoggingImporter{next: next, logger: logger}
}

// Import delegates to the wrapped importer and logs the outcome.
func (i *LoggingImporter) Import(ctx context.Context, req urlkeep.ImportRequest) (rec *urlkeep.Record, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", req.URL, "duration", time.Since(begin)}
		if req.MatchURL != "" {
			attrs = append(attrs, "match_url", req.MatchURL)
		}

		var dup *urlkeep.DuplicateURLError
		switch {
		case err == nil:
			i.logger.Info("import", append(attrs, "title", rec.Title, "extractor", rec.Extractor)...)
		case errors.As(err, &dup):
			existing := ""
			if dup.Existing != nil {
				existing = dup.Existing.Title
			}
			i.logger.Info("import duplicate", append(attrs, "existing", existing)...)
		default:
			i.logger.Error("import", append(attrs, "code", urlkeep.ErrorCode(err), "err", err)...)
		}
	}(time.Now())
	return i.next.Import(ctx, req)
}
