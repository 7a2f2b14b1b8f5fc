package urlkeep

import "strings"

// FormatTitleList joins titles into the knowledge base's list syntax, where
// titles containing whitespace are wrapped in double brackets.
func FormatTitleList(titles []string) string {
	parts := make([]string, 0, len(titles))
	for _, t := range titles {
		if t == "" || strings.ContainsAny(t, " \t\n") {
			parts = append(parts, "[["+t+"]]")
		} else {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
