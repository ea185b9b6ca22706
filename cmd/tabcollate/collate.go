package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"

	"github.com/nao1215/tabcollate/internal/browser"
	"github.com/nao1215/tabcollate/internal/catalog"
	"github.com/nao1215/tabcollate/internal/config"
	"github.com/nao1215/tabcollate/internal/database"
	"github.com/nao1215/tabcollate/internal/driver"
	"github.com/nao1215/tabcollate/internal/engine"
	"github.com/nao1215/tabcollate/internal/extract"
	applog "github.com/nao1215/tabcollate/internal/log"
	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/pipeline"
	"github.com/nao1215/tabcollate/internal/progress"
	"github.com/nao1215/tabcollate/internal/report"
	"github.com/nao1215/tabcollate/internal/retry"
)

// errIncomplete is returned when at least one target has failures or was aborted.
var errIncomplete = errors.New("collation incomplete")

// NewCollateCmd creates the collate command.
func NewCollateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collate [url...]",
		Short: "Collect every dropdown combination of a page into one table",
		Long: `Collate drives the dropdown controls of each page through every legal
combination of three axes, reads the result table at each combination,
validates it against the page's own totals and assembles the dataset.

The first two axes key the output rows, the third labels its columns. The
traversal order is chosen to minimise page interactions and does not change
the output shape.

A combination that keeps failing is recorded and the run goes on. Failed
combinations are listed in the report; 'collate --only-failed <run-id>'
re-visits just those and merges them into the stored dataset.

Examples:
  # Collate one page
  tabcollate collate --axes Year,State,Status https://stats.example.org/permits

  # Plan the route from sampled branching and write an Excel workbook
  tabcollate collate -a Year,State,Status --optimize -f xlsx -o permits.xlsx https://stats.example.org/permits

  # Retry the failed combinations of run 12
  tabcollate collate --only-failed 12

  # Attach to a running Chrome (chrome --remote-debugging-port=9222)
  tabcollate collate --remote-browser ws://127.0.0.1:9222/devtools/browser/<id> https://stats.example.org/permits`,
		Args: cobra.ArbitraryArgs,
		RunE: runCollateCmd,
	}

	// Traversal flags
	cmd.Flags().StringSliceP("axes", "a", nil,
		"The three axes to collate, in output order (default: the site's axes)")
	cmd.Flags().Bool("optimize", false,
		"Plan the route from sampled conditional branching (costs extra interactions)")
	cmd.Flags().Int("sample-limit", config.DefaultSampleLimit,
		"Values per axis sampled with --optimize")
	cmd.Flags().Int("revisit-on-mismatch", 0,
		"Re-visit a combination this many more times when its totals disagree")
	cmd.Flags().Int64("only-failed", 0,
		"Re-visit only the failed combinations of a stored run")

	// Interaction flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages collated at the same time")
	cmd.Flags().Int("attempts", config.DefaultAttempts,
		"Retry budget of each page interaction")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay,
		"Pause between attempts")
	cmd.Flags().DurationP("timeout", "t", config.DefaultStableTimeout,
		"Maximum wait for the page to settle after a choice")
	cmd.Flags().Duration("settle", config.DefaultSettle,
		"How long the page must stay unchanged to count as settled")
	cmd.Flags().Duration("poll", config.DefaultPoll,
		"Interval between settle probes")
	cmd.Flags().Duration("interaction-delay", 0,
		"Minimum gap between two choices on a page")

	// Browser flags
	cmd.Flags().Duration("navigation-timeout", config.DefaultNavigationTimeout,
		"Timeout for loading each page")
	cmd.Flags().Bool("headless", true,
		"Run the browser without a window")
	cmd.Flags().String("browser-path", "",
		"Chrome executable (default: found on PATH)")
	cmd.Flags().String("remote-browser", "",
		"DevTools websocket URL of a running browser")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User agent sent by the browser")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .tabcollate in current or home directory)")

	// Output flags
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Report format: "+strings.Join(config.Formats, ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("metrics-file", "",
		"Write progress gauges to this file in Prometheus text format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")
	cmd.Flags().Bool("save", true,
		"Store runs in the history database")

	return cmd
}

// runCollateCmd executes the collate command.
func runCollateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var db *database.RunDB
	if cfg.SaveToDB || cfg.OnlyFailed != 0 {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	var previous *model.RunReport
	if cfg.OnlyFailed != 0 {
		previous, err = loadFailedRun(ctx, db, cfg)
		if err != nil {
			return err
		}
		if len(previous.Failures) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Run %d has no failed combinations.\n", previous.ID)
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	for _, target := range cfg.Targets {
		if err := cfg.SiteConfigs.GetSiteConfig(target).Validate(cfg.Axes); err != nil {
			return fmt.Errorf("configuration error for %s: %w", target, err)
		}
	}
	if err := checkWritable(cfg.ReportFile); err != nil {
		return err
	}
	if err := checkWritable(cfg.MetricsFile); err != nil {
		return err
	}

	return runCollate(ctx, cmd.OutOrStdout(), cfg, db, previous, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a structured logger that masks cookies and tokens.
func setupLogger(verbose bool) *slog.Logger {
	return applog.NewSecureLogger(os.Stderr, verbose)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.Axes, err = flags.GetStringSlice("axes"); err != nil {
		return nil, err
	}
	for i, a := range cfg.Axes {
		cfg.Axes[i] = strings.TrimSpace(a)
	}
	if cfg.Optimize, err = flags.GetBool("optimize"); err != nil {
		return nil, err
	}
	if cfg.SampleLimit, err = flags.GetInt("sample-limit"); err != nil {
		return nil, err
	}
	if cfg.RevisitOnMismatch, err = flags.GetInt("revisit-on-mismatch"); err != nil {
		return nil, err
	}
	if cfg.OnlyFailed, err = flags.GetInt64("only-failed"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Attempts, err = flags.GetInt("attempts"); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = flags.GetDuration("retry-delay"); err != nil {
		return nil, err
	}
	if cfg.StableTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Settle, err = flags.GetDuration("settle"); err != nil {
		return nil, err
	}
	if cfg.Poll, err = flags.GetDuration("poll"); err != nil {
		return nil, err
	}
	if cfg.InteractionDelay, err = flags.GetDuration("interaction-delay"); err != nil {
		return nil, err
	}
	if cfg.NavigationTimeout, err = flags.GetDuration("navigation-timeout"); err != nil {
		return nil, err
	}
	if cfg.Headless, err = flags.GetBool("headless"); err != nil {
		return nil, err
	}
	if cfg.BrowserPath, err = flags.GetString("browser-path"); err != nil {
		return nil, err
	}
	if cfg.RemoteBrowser, err = flags.GetString("remote-browser"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Targets = args
	if len(cfg.Axes) == 0 && len(cfg.Targets) > 0 {
		cfg.Axes = cfg.SiteConfigs.GetSiteConfig(cfg.Targets[0]).Axes
	}
	return cfg, nil
}

// loadSiteConfigs loads the configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadSiteConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	switch {
	case found != "":
		cf, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return cf, nil
	case path != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	default:
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
}

// loadFailedRun loads the stored run to retry and points cfg at its target
// and axes.
func loadFailedRun(ctx context.Context, db *database.RunDB, cfg *config.Config) (*model.RunReport, error) {
	previous, err := db.GetRunByID(ctx, cfg.OnlyFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d: %w", cfg.OnlyFailed, err)
	}
	if previous == nil {
		return nil, fmt.Errorf("run %d not found (use 'tabcollate compare --list <url>' to see stored runs)", cfg.OnlyFailed)
	}
	if len(cfg.Targets) > 0 && (len(cfg.Targets) != 1 || cfg.Targets[0] != previous.Target) {
		return nil, fmt.Errorf("run %d collated %s; --only-failed takes no other targets", previous.ID, previous.Target)
	}
	cfg.Targets = []string{previous.Target}
	cfg.Axes = previous.Axes[:]
	return previous, nil
}

// checkWritable fails early when path cannot be written, so a long
// collation does not end without a place for its output.
func checkWritable(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("output file is not writable: %w", err)
	}
	return f.Close()
}

// runCollate collates every target and writes the reports.
func runCollate(ctx context.Context, out io.Writer, cfg *config.Config, db *database.RunDB, previous *model.RunReport, logger *slog.Logger) error {
	logger.Info("starting collation",
		"targets", cfg.Targets,
		"axes", cfg.Axes,
		"concurrency", cfg.Concurrency,
		"optimize", cfg.Optimize,
	)

	session, err := browser.Start(ctx,
		browser.WithExecPath(cfg.BrowserPath),
		browser.WithRemote(cfg.RemoteBrowser),
		browser.WithHeadless(cfg.Headless),
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithNavigationTimeout(cfg.NavigationTimeout),
		browser.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	var metrics *progress.Metrics
	reporters := progress.Multi{progress.NewTerminal(os.Stderr), progress.NewLog(logger)}
	if cfg.MetricsFile != "" {
		metrics = progress.NewMetrics()
		reporters = append(reporters, metrics)
	}

	factory := newSessionFactory(session, cfg, previous, reporters, logger)
	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	reports := make([]*model.RunReport, len(cfg.Targets))
	var mu sync.Mutex
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.RunReport, index int, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			logger.Error("collation failed", "target", r.Target, "error", err)
		}
		reports[index] = r
		if err := saveRun(ctx, db, cfg, r, logger); err != nil {
			logger.Error("failed to save run", "target", r.Target, "error", err)
		}
		if metrics != nil {
			if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
			}
		}
	})
	logger.Info("collation finished", "elapsed", time.Since(startTime).Round(time.Millisecond))

	done := make([]*model.RunReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			done = append(done, r)
		}
	}
	if len(done) > 0 {
		if err := outputReports(out, cfg, done); err != nil {
			return err
		}
	}
	if batchErr != nil {
		return batchErr
	}

	incomplete := 0
	for _, r := range done {
		if !r.IsComplete() {
			incomplete++
		}
	}
	if incomplete > 0 {
		return fmt.Errorf("%w: %d of %d targets have failures", errIncomplete, incomplete, len(cfg.Targets))
	}
	return nil
}

// newSessionFactory opens one tab per target and builds its engine.
func newSessionFactory(
	session *browser.Session,
	cfg *config.Config,
	previous *model.RunReport,
	reporter progress.Reporter,
	logger *slog.Logger,
) pipeline.SessionFactory {
	return func(ctx context.Context, target string) (pipeline.Runner, func(), error) {
		site := cfg.SiteConfigs.GetSiteConfig(target)
		page, err := session.Open(ctx, target, layoutFor(site), browser.Site{
			Cookie:  site.Cookie,
			Headers: site.Headers,
		})
		if err != nil {
			return nil, nil, err
		}
		return newEngine(page, cfg, site, previous, reporter, logger.With("target", target)), page.Close, nil
	}
}

// layoutFor maps a site configuration to browser selectors.
func layoutFor(site config.SiteConfig) browser.Layout {
	return browser.Layout{
		Controls:       site.Controls,
		Breakdown:      site.Breakdown,
		FixedBreakdown: site.FixedBreakdown,
		Table:          site.TableSelector(),
		Busy:           site.Busy,
		OptionCounts:   site.OptionCounts,
	}
}

// newEngine wires the driver, catalog, extractor and validator for one page.
// A non-nil previous run restricts the traversal to its failed prefixes
// and seeds the dataset with what it already collected.
func newEngine(
	page driver.Page,
	cfg *config.Config,
	site config.SiteConfig,
	previous *model.RunReport,
	reporter progress.Reporter,
	logger *slog.Logger,
) *engine.Engine {
	d := driver.New(page,
		driver.WithExecutor(retry.New(
			retry.WithAttempts(cfg.Attempts),
			retry.WithDelay(cfg.RetryDelay),
			retry.WithRetryable(driver.IsTransient),
			retry.WithLogger(logger),
		)),
		driver.WithStability(cfg.StableTimeout, cfg.Settle, cfg.Poll),
		driver.WithInteractionDelay(cfg.InteractionDelay),
		driver.WithLogger(logger),
	)

	extractOpts := []extract.Option{extract.WithTotalLabels(site.TotalLabels...)}
	if site.ValueColumn != 0 {
		extractOpts = append(extractOpts, extract.WithValueColumn(site.ValueColumn))
	}

	opts := []engine.Option{
		engine.WithCatalog(catalog.NewChecked(catalog.NewLive(d), catalog.WithSkip(placeholder(site.AllLabels)))),
		engine.WithExtractor(extract.New(extractOpts...)),
		engine.WithReporter(reporter),
		engine.WithLogger(logger),
		engine.WithOptimize(cfg.Optimize),
		engine.WithSampleLimit(cfg.SampleLimit),
		engine.WithRevisitOnMismatch(cfg.RevisitOnMismatch),
	}
	if site.FixedBreakdown != "" {
		opts = append(opts, engine.WithFixedBreakdown(site.FixedBreakdown))
	}
	if previous != nil {
		opts = append(opts,
			engine.WithRestrict(previous.FailedPrefixes()),
			engine.WithSeed(previous.Dataset),
			engine.WithRoute(previous.Route),
		)
	}
	return engine.New(d, cfg.AxisTriple(), opts...)
}

// placeholder reports option labels such as "All" that are not axis values.
func placeholder(labels []string) func(string) bool {
	folded := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		folded[cases.Fold().String(strings.TrimSpace(l))] = struct{}{}
	}
	return func(label string) bool {
		_, ok := folded[cases.Fold().String(strings.TrimSpace(label))]
		return ok || strings.TrimSpace(label) == ""
	}
}

// outputReports writes the reports in the requested format.
// With an output file, a summary is also printed to out.
func outputReports(out io.Writer, cfg *config.Config, reports []*model.RunReport) error {
	if cfg.ReportFile == "" {
		w, err := newReportWriter(cfg.Format, out)
		if err != nil {
			return err
		}
		_, err = w.Write(reports)
		return err
	}

	// Reports may name session-scoped pages; only the owner reads them.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	fileWriter, err := newReportWriter(cfg.Format, f)
	if err != nil {
		return err
	}
	w := report.NewMultiWriter(
		report.NewTextWriter(out, report.WithSummaryOnly(true), report.WithVerbose(cfg.Verbose)),
		fileWriter,
	)
	if _, err := w.Write(reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(out, "Report written to %s\n", cfg.ReportFile)
	return nil
}

// newReportWriter returns the writer for format. JSON documents carry the version.
func newReportWriter(format string, w io.Writer) (report.Writer, error) {
	if format == config.FormatJSON {
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion())), nil
	}
	return report.New(format, w)
}

// saveRun stores the run if saving is enabled. If db is nil, this function is a no-op.
func saveRun(ctx context.Context, db *database.RunDB, cfg *config.Config, r *model.RunReport, logger *slog.Logger) error {
	if db == nil || !cfg.SaveToDB {
		return nil
	}
	// A cancelled run is still worth keeping for --only-failed.
	id, err := db.SaveRun(context.WithoutCancel(ctx), r)
	if err != nil {
		return err
	}
	logger.Info("run saved to database", "target", r.Target, "id", id)
	return nil
}
