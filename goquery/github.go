package goquery

import (
	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.Extractor = (*GitHubExtractor)(nil)

// GitHubExtractor handles repository pages on github.com. Owner and project
// come from the match URL, so a mirrored page can be imported as the
// repository it copies.
type GitHubExtractor struct{}

// NewGitHubExtractor creates a new GitHubExtractor.
func NewGitHubExtractor() *GitHubExtractor {
	return &GitHubExtractor{}
}

// Name returns the extractor's identifier.
func (e *GitHubExtractor) Name() string {
	return "github"
}

// Match returns true for github.com/<owner>/<repo> URLs and anything below.
func (e *GitHubExtractor) Match(page *urlkeep.Page) bool {
	u := page.SelectURL()
	return registrableDomain(u) == "github.com" && len(pathSegments(u)) >= 2
}

// Extract uses the repository name as the title.
func (e *GitHubExtractor) Extract(page *urlkeep.Page) (*urlkeep.PartialRecord, error) {
	segments := pathSegments(page.SelectURL())
	if len(segments) < 2 {
		return nil, urlkeep.Errorf(urlkeep.EEXTRACT, "not a GitHub repository URL: %s", page.SelectURL())
	}
	owner, project := segments[0], segments[1]

	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	description := pageDescription(doc)

	return &urlkeep.PartialRecord{
		Title:       stringPtr(project),
		Description: description,
		BodyText:    bodyText(page.URL, description),
		ExtraFields: map[string]string{
			"github_author":  owner,
			"github_project": project,
		},
	}, nil
}
