// Package slog provides logging decorators for urlkeep services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with logging.
type LoggingFetcher struct {
	next   urlkeep.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next urlkeep.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch delegates to the wrapped fetcher and logs the outcome.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (content *urlkeep.Content, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", url, "duration", time.Since(begin)}
		if err != nil {
			f.logger.Warn("fetch", append(attrs, "code", urlkeep.ErrorCode(err), "err", err)...)
			return
		}
		if content.FinalURL != "" && content.FinalURL != url {
			attrs = append(attrs, "final_url", content.FinalURL)
		}
		f.logger.Info("fetch", append(attrs,
			"status", content.StatusCode,
			"media_type", content.MediaType,
			"bytes", len(content.Body),
		)...)
	}(time.Now())
	return f.next.Fetch(ctx, url)
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}
