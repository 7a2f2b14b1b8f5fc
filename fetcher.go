package urlkeep

import (
	"context"
	"mime"
	"strings"
)

// Content is a fetched page body after transfer decoding.
type Content struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is where redirects ended up.
	FinalURL string

	StatusCode int
	MediaType  string
	Body       []byte
}

// Fetcher retrieves page content.
type Fetcher interface {
	// Fetch retrieves url, following redirects. Returns EFETCH for
	// transport failures and error statuses, and EUNSUPPORTED if the
	// content is not HTML.
	Fetch(ctx context.Context, url string) (*Content, error)

	// Close releases resources held by the fetcher.
	Close() error
}

var htmlMediaTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

// IsHTMLMediaType reports whether a Content-Type value denotes HTML.
// Parameters such as charset are ignored.
func IsHTMLMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return htmlMediaTypes[mediaType]
}
