package mock

import (
	"context"

	"github.com/fwojciec/urlkeep"
)

var (
	_ urlkeep.Fetcher        = (*Fetcher)(nil)
	_ urlkeep.Converter      = (*Converter)(nil)
	_ urlkeep.SitemapService = (*SitemapService)(nil)
)

// Fetcher is a mock implementation of urlkeep.Fetcher.
// A nil CloseFn makes Close a no-op.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (*urlkeep.Content, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*urlkeep.Content, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	if f.CloseFn == nil {
		return nil
	}
	return f.CloseFn()
}

// Converter is a mock implementation of urlkeep.Converter.
type Converter struct {
	ConvertFn func(html, baseURL string) (string, error)
}

func (c *Converter) Convert(html, baseURL string) (string, error) {
	return c.ConvertFn(html, baseURL)
}

// SitemapService is a mock implementation of urlkeep.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string, filter *urlkeep.URLFilter) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *urlkeep.URLFilter) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL, filter)
}
