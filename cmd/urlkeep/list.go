package main

import (
	"fmt"

	"github.com/fwojciec/urlkeep"
)

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	var filter urlkeep.RecordFilter
	if c.Extractor != "" {
		filter.Extractor = &c.Extractor
	}

	records, err := deps.Records.FindRecords(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(deps.Stdout, "No records found. Use 'urlkeep import' to add one.")
		return nil
	}

	for _, r := range records {
		fmt.Fprintf(deps.Stdout, "%s  %s", r.Title, r.Location)
		if r.Extractor != "" {
			fmt.Fprintf(deps.Stdout, "  [%s]", r.Extractor)
		}
		fmt.Fprintln(deps.Stdout)
	}

	return nil
}
