// Package htmltomarkdown renders HTML fragments as Markdown for record fields.
package htmltomarkdown

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.Converter = (*Converter)(nil)

// Converter wraps html-to-markdown.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter with CommonMark and table support.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &Converter{conv: conv}
}

// Convert transforms an HTML fragment taken from baseURL into Markdown,
// resolving relative links and images against it.
func (c *Converter) Convert(html, baseURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", urlkeep.Errorf(urlkeep.EINVALID, "empty HTML input")
	}

	var md string
	var err error
	if baseURL != "" {
		md, err = c.conv.ConvertString(html, converter.WithDomain(baseURL))
	} else {
		md, err = c.conv.ConvertString(html)
	}
	if err != nil {
		return "", urlkeep.WrapError(urlkeep.EEXTRACT, err, "failed to convert HTML to Markdown")
	}
	return strings.TrimSpace(md), nil
}
