package main

import (
	"fmt"
	"regexp"

	"github.com/fwojciec/urlkeep"
	"github.com/google/uuid"
)

// Run executes the submit command.
func (c *SubmitCmd) Run(deps *Dependencies) error {
	texts := c.Text

	if c.Sitemap != "" {
		var filter *urlkeep.URLFilter
		if len(c.Filter) > 0 {
			filter = &urlkeep.URLFilter{}
			for _, pattern := range c.Filter {
				re, err := regexp.Compile(pattern)
				if err != nil {
					fmt.Fprintf(deps.Stderr, "error: invalid filter pattern %q: %v\n", pattern, err)
					return err
				}
				filter.Include = append(filter.Include, re)
			}
		}

		urls, err := deps.Sitemaps.DiscoverURLs(deps.Ctx, c.Sitemap, filter)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stdout, "Found %d URLs in sitemaps\n", len(urls))
		texts = append(texts, urls...)
	}

	if len(texts) == 0 {
		err := urlkeep.Errorf(urlkeep.EINVALID, "nothing to submit")
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	entries := make(map[string]*urlkeep.PendingEntry, len(texts))
	for _, text := range texts {
		entries[uuid.NewString()] = &urlkeep.PendingEntry{SourceText: text, State: urlkeep.StateQueued}
	}

	submit := deps.Batches.AddEntries
	if c.Replace {
		submit = deps.Batches.ReplaceBatch
	}
	b, err := submit(deps.Ctx, entries)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Queued %d entries (batch version %d)\n", len(entries), b.Version)
	return nil
}
