package main

import (
	"fmt"

	"github.com/fwojciec/urlkeep"
)

// Run executes the canonicalize command.
func (c *CanonicalizeCmd) Run(deps *Dependencies) error {
	var firstErr error
	for _, u := range c.URLs {
		canonical, err := urlkeep.CanonicalizeURL(u)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintln(deps.Stdout, canonical)
	}
	return firstErr
}
