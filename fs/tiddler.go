// Package fs exports records to the filesystem as .tid files.
package fs

import (
	"sort"
	"strings"

	"github.com/fwojciec/urlkeep"
)

// TiddlerExt is the extension of exported record files.
const TiddlerExt = ".tid"

// TiddlerFilename converts a record title to a file name.
// Characters that are unsafe in file names become underscores.
// Example: "Blog: a/b" → "Blog_ a_b.tid"
func TiddlerFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return '_'
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, title)
	name = strings.TrimRight(name, ". ")
	if name == "" {
		name = "_"
	}
	return name + TiddlerExt
}

// FormatTiddler renders a record in .tid format: one "name: value" header
// line per field with title first, a blank line, then the text.
func FormatTiddler(rec *urlkeep.Record) string {
	fields := rec.FieldMap()
	delete(fields, urlkeep.FieldText)
	delete(fields, urlkeep.FieldTitle)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	writeHeader(&b, urlkeep.FieldTitle, rec.Title)
	for _, name := range names {
		writeHeader(&b, name, fields[name])
	}
	b.WriteString("\n")
	b.WriteString(rec.Text)
	return b.String()
}

// Header values are single-line.
func writeHeader(b *strings.Builder, name, value string) {
	value = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value)
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
