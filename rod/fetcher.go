// Package rod renders pages in headless Chrome for sites whose metadata is
// only present after JavaScript runs.
package rod

import (
	"context"
	"time"

	"github.com/fwojciec/urlkeep"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultFetchTimeout bounds navigation plus load for one page.
const DefaultFetchTimeout = 10 * time.Second

var _ urlkeep.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML using Chrome browser automation.
// It is safe for concurrent use.
type Fetcher struct {
	manager  *BrowserManager
	timeout  time.Duration
	maxPages int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-page timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxPages sets how many pages a browser renders before it is
// replaced. Zero never replaces it.
func WithMaxPages(n int) Option {
	return func(f *Fetcher) {
		f.maxPages = n
	}
}

// NewFetcher launches a headless browser. Close must be called when the
// Fetcher is no longer needed.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{timeout: DefaultFetchTimeout, maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(f)
	}

	manager, err := NewBrowserManager(f.maxPages)
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to start browser")
	}
	f.manager = manager
	return f, nil
}

// Fetch navigates to url and returns the DOM after the load event.
// Status and media type come from the main document response.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*urlkeep.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to fetch %s", url)
	}

	page, release, err := f.manager.Page()
	if err != nil {
		return nil, err
	}
	defer release()
	page = page.Context(ctx).Timeout(f.timeout)

	var resp proto.NetworkResponseReceived
	waitResponse := page.WaitEvent(&resp)

	if err := page.Navigate(url); err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to fetch %s", url)
	}
	waitResponse()
	if err := page.WaitLoad(); err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "timed out loading %s", url)
	}

	if resp.Response == nil {
		return nil, urlkeep.Errorf(urlkeep.EFETCH, "no response for %s", url)
	}
	if resp.Response.Status >= 400 {
		return nil, urlkeep.Errorf(urlkeep.EFETCH, "HTTP %d for %s", resp.Response.Status, url)
	}
	if !urlkeep.IsHTMLMediaType(resp.Response.MIMEType) {
		return nil, urlkeep.Errorf(urlkeep.EUNSUPPORTED, "unsupported content type %q for %s", resp.Response.MIMEType, url)
	}

	info, err := page.Info()
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to read page info")
	}
	html, err := page.HTML()
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to read rendered HTML")
	}

	return &urlkeep.Content{
		URL:        url,
		FinalURL:   info.URL,
		StatusCode: resp.Response.Status,
		MediaType:  "text/html",
		Body:       []byte(html),
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() error {
	return f.manager.Close()
}
