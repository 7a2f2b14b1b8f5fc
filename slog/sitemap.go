package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService wraps a SitemapService with logging.
type LoggingSitemapService struct {
	next   urlkeep.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next urlkeep.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// DiscoverURLs delegates to the wrapped service and logs how many URLs were
// found for submission.
func (s *LoggingSitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *urlkeep.URLFilter) (urls []string, err error) {
	defer func(begin time.Time) {
		attrs := []any{"base_url", baseURL, "count", len(urls), "duration", time.Since(begin)}
		if filter != nil {
			attrs = append(attrs, "include", len(filter.Include), "exclude", len(filter.Exclude))
		}
		if err != nil {
			s.logger.WarnContext(ctx, "sitemap discovery failed",
				append(attrs, "code", urlkeep.ErrorCode(err), "err", err)...)
			return
		}
		s.logger.InfoContext(ctx, "sitemap discovery", attrs...)
	}(time.Now())
	return s.next.DiscoverURLs(ctx, baseURL, filter)
}
