package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/config"
	"github.com/fwojciec/urlkeep/reconcile"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx        context.Context
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *slog.Logger
	Config     *config.Config
	Records    urlkeep.RecordService
	Batches    urlkeep.BatchService
	Sitemaps   urlkeep.SitemapService
	Importer   urlkeep.Importer
	Reconciler *reconcile.Reconciler
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	DB        string `name:"db" help:"Database path (overrides config)"`
	Config    string `name:"config" help:"YAML config file"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error"`
	LogFormat string `name:"log-format" help:"Log format: text or json"`
	Render    bool   `help:"Fetch pages with a headless browser"`

	Import       ImportCmd       `cmd:"" help:"Import a URL as a record"`
	Submit       SubmitCmd       `cmd:"" help:"Queue entries in the pending batch"`
	Reconcile    ReconcileCmd    `cmd:"" help:"Import queued URL entries"`
	Pending      PendingCmd      `cmd:"" help:"Show the pending batch"`
	List         ListCmd         `cmd:"" help:"List imported records"`
	Delete       DeleteCmd       `cmd:"" help:"Delete an imported record"`
	Export       ExportCmd       `cmd:"" help:"Write all records to a directory as .tid files"`
	Serve        ServeCmd        `cmd:"" help:"Serve the HTTP import API"`
	Canonicalize CanonicalizeCmd `cmd:"" help:"Print canonical forms of URLs"`
}

// apply overrides configuration with flags that were set.
func (c *CLI) apply(cfg *config.Config) {
	if c.DB != "" {
		cfg.DB = c.DB
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	if c.Render {
		cfg.Fetch.Render = true
	}
	if c.Serve.Addr != "" {
		cfg.Server.Addr = c.Serve.Addr
	}
	if c.Reconcile.Concurrency > 0 {
		cfg.Reconcile.Concurrency = c.Reconcile.Concurrency
	}
}

// ImportCmd is the "import" subcommand.
type ImportCmd struct {
	URL      string   `arg:"" help:"URL to import"`
	MatchURL string   `name:"match-url" help:"URL used to pick the extractor instead of the imported one"`
	Field    []string `short:"f" name:"field" help:"Override a field as name=value (repeatable)"`
}

// SubmitCmd is the "submit" subcommand.
type SubmitCmd struct {
	Text    []string `arg:"" optional:"" help:"Entries to queue; bare URLs are imported by reconcile"`
	Sitemap string   `help:"Queue every URL listed in this site's sitemaps"`
	Filter  []string `short:"F" name:"filter" help:"Keep sitemap URLs matching regex (repeatable)"`
	Replace bool     `help:"Replace the whole pending batch instead of adding to it"`
}

// ReconcileCmd is the "reconcile" subcommand.
type ReconcileCmd struct {
	Watch       bool `short:"w" help:"Keep running and import entries as they are submitted"`
	Concurrency int  `short:"c" help:"Concurrent imports (overrides config)"`
}

// PendingCmd is the "pending" subcommand.
type PendingCmd struct {
	ClearFailed     bool `name:"clear-failed" help:"Remove entries that failed to import"`
	ClearDuplicates bool `name:"clear-duplicates" help:"Remove entries whose URL was already imported"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct {
	Extractor string `short:"e" help:"Only records produced by this extractor"`
}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	Title string `arg:"" help:"Title of the record to delete"`
	Force bool   `help:"Confirm deletion"`
}

// ExportCmd is the "export" subcommand.
type ExportCmd struct {
	Dir string `arg:"" help:"Output directory; replaced atomically"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr        string `help:"Listen address (overrides config)"`
	NoReconcile bool   `name:"no-reconcile" help:"Do not import pending entries in the background"`
}

// CanonicalizeCmd is the "canonicalize" subcommand.
type CanonicalizeCmd struct {
	URLs []string `arg:"" name:"url" help:"URLs to canonicalize"`
}
