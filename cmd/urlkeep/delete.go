package main

import (
	"fmt"

	"github.com/fwojciec/urlkeep"
)

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return urlkeep.Errorf(urlkeep.EINVALID, "use --force to confirm deletion")
	}

	rec, err := deps.Records.FindRecordByTitle(deps.Ctx, c.Title)
	if urlkeep.ErrorCode(err) == urlkeep.ENOTFOUND {
		fmt.Fprintf(deps.Stderr, "error: record %q not found. Use 'urlkeep list' to see imported records.\n", c.Title)
		return err
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	if err := deps.Records.DeleteRecord(deps.Ctx, rec.ID); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Deleted record %q (%s)\n", rec.Title, rec.Location)
	return nil
}
