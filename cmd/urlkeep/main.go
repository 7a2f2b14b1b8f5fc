package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/bloom"
	"github.com/fwojciec/urlkeep/config"
	"github.com/fwojciec/urlkeep/goquery"
	"github.com/fwojciec/urlkeep/htmltomarkdown"
	keephttp "github.com/fwojciec/urlkeep/http"
	"github.com/fwojciec/urlkeep/importer"
	"github.com/fwojciec/urlkeep/reconcile"
	"github.com/fwojciec/urlkeep/rod"
	keepslog "github.com/fwojciec/urlkeep/slog"
	"github.com/fwojciec/urlkeep/sqlite"
	"github.com/fwojciec/urlkeep/trafilatura"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bloomCapacity sizes the canonical URL filter; past it the false positive
// rate degrades but lookups stay correct.
const bloomCapacity = 100_000

// Main represents the program.
type Main struct {
	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Fetcher is closed with the program.
	Fetcher urlkeep.Fetcher
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.Fetcher != nil {
		_ = m.Fetcher.Close()
	}
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("urlkeep"),
		kong.Description("Import web pages into a local knowledge base"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'urlkeep --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %s", urlkeep.ErrorMessage(err))
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %s", urlkeep.ErrorMessage(err))
	}
	deps.Config = cfg

	logger, err := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	deps.Logger = logger

	// canonicalize is pure and needs no database.
	if cmd == "canonicalize" {
		return kongCtx.Run(deps)
	}

	m.DB = sqlite.NewDB(cfg.DB)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set URLKEEP_DB or --db to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", cfg.DB, err)
	}
	defer m.Close()

	records := bloom.NewRecordService(sqlite.NewRecordService(m.DB), bloomCapacity, 0.01)
	if err := records.Warm(ctx); err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	if records.Saturated() {
		logger.Warn("url filter over capacity, duplicate checks will hit the database more often", "capacity", bloomCapacity)
	}
	deps.Records = records
	deps.Batches = sqlite.NewBatchService(m.DB)
	deps.Sitemaps = keepslog.NewLoggingSitemapService(keephttp.NewSitemapService(nil), logger)

	switch cmd {
	case "import", "reconcile", "serve":
		fetcher, err := m.openFetcher(cfg, logger)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: --render requires Chrome or Chromium")
			return fmt.Errorf("failed to start fetcher: %w", err)
		}

		registry, err := newRegistry(cfg, logger)
		if err != nil {
			return err
		}

		imp := importer.NewImporter(records, fetcher, registry)
		imp.Limiter = importer.NewDomainLimiter(cfg.Fetch.RatePerHost)
		deps.Importer = keepslog.NewLoggingImporter(imp, logger)

		r := reconcile.NewReconciler(deps.Batches, records, imp, logger)
		r.Concurrency = cfg.Reconcile.Concurrency
		r.Lease = cfg.Reconcile.Lease
		r.RetainFailed = cfg.Reconcile.RetainFailed
		r.RetainDuplicates = cfg.Reconcile.RetainDuplicates
		deps.Reconciler = r
	}

	return kongCtx.Run(deps)
}

func (m *Main) openFetcher(cfg *config.Config, logger *slog.Logger) (urlkeep.Fetcher, error) {
	if cfg.Fetch.Render {
		f, err := rod.NewFetcher(
			rod.WithTimeout(cfg.Fetch.Timeout),
			rod.WithMaxPages(cfg.Fetch.RenderMaxPages),
		)
		if err != nil {
			return nil, err
		}
		m.Fetcher = keepslog.NewLoggingFetcher(f, logger)
		return m.Fetcher, nil
	}

	opts := []keephttp.Option{
		keephttp.WithTimeout(cfg.Fetch.Timeout),
		keephttp.WithMaxRedirects(cfg.Fetch.MaxRedirects),
		keephttp.WithMaxBodySize(cfg.Fetch.MaxBodyBytes),
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, keephttp.WithUserAgent(cfg.Fetch.UserAgent))
	}
	m.Fetcher = keepslog.NewLoggingFetcher(keephttp.NewFetcher(opts...), logger)
	return m.Fetcher, nil
}

// newRegistry registers site extractors ahead of rule extractors, then the
// article extractor, in front of the generic fallback.
func newRegistry(cfg *config.Config, logger *slog.Logger) (urlkeep.ExtractorRegistry, error) {
	registry := goquery.NewRegistry(nil)
	registry.Register(goquery.NewGitHubExtractor())
	registry.Register(goquery.NewGoodreadsExtractor())

	if cfg.Extractors.Rules != "" {
		f, err := os.Open(cfg.Extractors.Rules)
		if err != nil {
			return nil, fmt.Errorf("failed to open extractor rules: %w", err)
		}
		defer f.Close()

		rules, err := goquery.LoadRules(f)
		if err != nil {
			return nil, fmt.Errorf("failed to load extractor rules %s: %s", cfg.Extractors.Rules, urlkeep.ErrorMessage(err))
		}
		for _, rule := range rules {
			registry.Register(rule)
		}
	}

	if cfg.Extractors.Article {
		registry.Register(trafilatura.NewArticleExtractor(htmltomarkdown.NewConverter()))
	}

	return keepslog.NewLoggingRegistry(registry, logger), nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
