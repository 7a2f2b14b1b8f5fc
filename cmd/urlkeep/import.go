package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fwojciec/urlkeep"
)

// Run executes the import command.
func (c *ImportCmd) Run(deps *Dependencies) error {
	fields, err := parseFields(c.Field)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	rec, err := deps.Importer.Import(deps.Ctx, urlkeep.ImportRequest{
		URL:      c.URL,
		MatchURL: c.MatchURL,
		Fields:   fields,
	})
	var dup *urlkeep.DuplicateURLError
	switch {
	case errors.As(err, &dup):
		fmt.Fprintf(deps.Stderr, "error: %s\n", dup.Error())
		return err
	case err != nil:
		fmt.Fprintf(deps.Stderr, "error: could not import %s: %s\n", c.URL, urlkeep.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Imported %q\n", rec.Title)
	for _, name := range rec.FieldNames() {
		fmt.Fprintf(deps.Stdout, "  %s: %s\n", name, rec.Fields[name])
	}
	return nil
}

// parseFields turns name=value pairs into an override map.
func parseFields(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, urlkeep.Errorf(urlkeep.EINVALID, "field %q must be name=value", pair)
		}
		fields[name] = value
	}
	return fields, nil
}
