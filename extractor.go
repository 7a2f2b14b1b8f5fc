package urlkeep

// GenericExtractorName identifies the fallback extractor. Records produced by
// it carry no url_extractor field.
const GenericExtractorName = "generic"

// Page is what an extractor sees: the fetched content plus the URLs it was
// requested under.
type Page struct {
	// URL is the URL the import was requested for. It becomes the
	// record's location and leads its text.
	URL string

	// MatchURL selects and parameterizes site-specific extractors.
	// Defaults to URL.
	MatchURL string

	Content *Content
}

// SelectURL returns the URL extractors should match against.
func (p *Page) SelectURL() string {
	if p.MatchURL != "" {
		return p.MatchURL
	}
	return p.URL
}

// BaseURL returns the URL relative links in the page resolve against: the
// final URL after redirects, or URL if the content does not say.
func (p *Page) BaseURL() string {
	if p.Content != nil && p.Content.FinalURL != "" {
		return p.Content.FinalURL
	}
	return p.URL
}

// HTML returns the page body as a string.
func (p *Page) HTML() string {
	if p.Content == nil {
		return ""
	}
	return string(p.Content.Body)
}

// PartialRecord is an extractor's output. Nil pointers mean "no data", which
// is distinct from an empty value.
type PartialRecord struct {
	Title       *string
	Description *string
	BodyText    *string
	ExtraFields map[string]string
}

// Extractor parses page content into a partial record.
type Extractor interface {
	// Name returns the extractor's identifier (e.g., "github", "generic").
	Name() string

	// Match reports whether the extractor applies to the page.
	Match(page *Page) bool

	// Extract parses the page. Returns EEXTRACT if the structure the
	// extractor relies on is absent.
	Extract(page *Page) (*PartialRecord, error)
}

// ExtractorRegistry holds extractors in priority order in front of a generic
// fallback that always matches.
type ExtractorRegistry interface {
	// Register appends an extractor. Extractors registered earlier win.
	Register(extractor Extractor)

	// Select returns the first registered extractor that matches the page,
	// or the fallback. Never returns nil.
	Select(page *Page) Extractor

	// List returns the names of all extractors in selection order,
	// ending with the fallback.
	List() []string
}

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms HTML content into Markdown, resolving relative
	// links against baseURL. An empty baseURL leaves links as they are.
	Convert(html, baseURL string) (string, error)
}
