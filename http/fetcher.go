// Package http fetches pages and sitemaps over plain HTTP.
package http

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/fwojciec/urlkeep"
	"golang.org/x/net/html/charset"
)

// Fetch defaults.
const (
	DefaultFetchTimeout = 5 * time.Second
	DefaultMaxRedirects = 10
	DefaultMaxBodySize  = 10 << 20
	DefaultUserAgent    = "urlkeep/1.0 (+https://github.com/fwojciec/urlkeep)"
)

const acceptHeader = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"

var _ urlkeep.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves HTML pages using plain HTTP requests. It negotiates
// gzip, deflate and brotli itself and converts bodies to UTF-8. Nothing is
// executed, so pages rendered by JavaScript come back as their shell; see
// rod.Fetcher for those.
type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxRedirects int
	maxBodySize  int64
	userAgent    string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds the whole request, redirects and body included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxRedirects sets how many redirects are followed before giving up.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		f.maxRedirects = n
	}
}

// WithMaxBodySize caps the decoded body size in bytes.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:      DefaultFetchTimeout,
		maxRedirects: DefaultMaxRedirects,
		maxBodySize:  DefaultMaxBodySize,
		userAgent:    DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Content-Encoding is negotiated by hand so brotli can be offered.
	transport.DisableCompression = true

	f.client = &http.Client{
		Timeout:   f.timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > f.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", f.maxRedirects)
			}
			return nil
		},
	}
	return f
}

// Client returns the underlying HTTP client, for collaborators such as the
// SitemapService that should share its transport and limits.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch retrieves url, following redirects.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*urlkeep.Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINVALID, err, "invalid request URL %s", url)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, transportError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, urlkeep.Errorf(urlkeep.EFETCH, "HTTP %d for %s", resp.StatusCode, url)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !urlkeep.IsHTMLMediaType(contentType) {
		return nil, urlkeep.Errorf(urlkeep.EUNSUPPORTED, "unsupported content type %q for %s", contentType, url)
	}

	body, err := f.readBody(resp)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, transportError(url, err)
		}
		return nil, err
	}

	if contentType == "" {
		contentType = http.DetectContentType(body)
		if !urlkeep.IsHTMLMediaType(contentType) {
			return nil, urlkeep.Errorf(urlkeep.EUNSUPPORTED, "unsupported content type %q for %s", contentType, url)
		}
	}

	body, err = toUTF8(body, contentType)
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to decode %s", url)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/html"
	}

	return &urlkeep.Content{
		URL:        url,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		MediaType:  mediaType,
		Body:       body,
	}, nil
}

// readBody undoes the Content-Encoding and enforces the size limit on the
// decoded bytes.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	r, err := decodeReader(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(r, f.maxBodySize+1))
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to read response body")
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, urlkeep.Errorf(urlkeep.EFETCH, "response body exceeds %d bytes", f.maxBodySize)
	}
	return body, nil
}

// decodeReader wraps body according to a Content-Encoding header value.
func decodeReader(body io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "invalid gzip body")
		}
		return zr, nil
	case "br":
		return brotli.NewReader(body), nil
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to read response body")
		}
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			return zr, nil
		}
		return flate.NewReader(bytes.NewReader(raw)), nil
	default:
		return nil, urlkeep.Errorf(urlkeep.EUNSUPPORTED, "unsupported content encoding %q", encoding)
	}
}

// toUTF8 converts body from the charset named in contentType, or sniffed
// from the document itself, to UTF-8.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func transportError(url string, err error) error {
	if isTimeout(err) {
		return urlkeep.WrapError(urlkeep.EFETCH, err, "timed out fetching %s", url)
	}
	return urlkeep.WrapError(urlkeep.EFETCH, err, "failed to fetch %s", url)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
