package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deadlinks/internal/checker"
	"github.com/nao1215/deadlinks/internal/config"
	"github.com/nao1215/deadlinks/internal/database"
	"github.com/nao1215/deadlinks/internal/deadlinks"
	"github.com/nao1215/deadlinks/internal/httpclient"
	"github.com/nao1215/deadlinks/internal/model"
	"github.com/nao1215/deadlinks/internal/pipeline"
	"github.com/nao1215/deadlinks/internal/report"
	"github.com/nao1215/deadlinks/internal/site"
)

// ErrDeadLinksFound is returned with --fail-on-dead when a dead link was found.
var ErrDeadLinksFound = errors.New("dead links found")

// ErrNoDocuments is returned when the given paths contain no content.
var ErrNoDocuments = errors.New("no content documents found (.html, .htm, .md)")

// checkConfig is everything the check command needs to run.
type checkConfig struct {
	Paths      []string
	ConfigPath string
	Settings   config.Settings
	Write      bool
	Jobs       int
	JSON       bool
	Markdown   bool
	Output     string
	History    bool
	HistoryDir string
	FailOnDead bool
	Verbose    bool
	Quiet      bool
}

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Check external links in HTML and Markdown content",
		Long: `Check finds every <a> and <object> element whose target starts with
"http" and does not belong to the site, requests each distinct URL once per
document and reports the dead ones.

A link is dead when it answers with a status in 400-499, or when it cannot
be reached within the timeout and --timeout-is-error is set. Redirects are
followed; other statuses such as 5xx are accepted.

HTML files (.html, .htm) can be rewritten in place with --write. Markdown
files (.md) are rendered to HTML and checked, but never rewritten.

Validation is on unless the configuration file sets "validation: false".
A file without the key, or no file at all, checks links. Markdown front
matter can override it per document with "deadlinks: true|false".

Examples:
  # Check the generated site
  deadlinks check public/

  # Ignore links to the site itself and rewrite dead links in place
  deadlinks check --site-url https://example.com --write public/

  # Flag unreachable links too, with labels and a custom class
  deadlinks check --timeout-is-error --labels --class dead public/

  # Fail a CI job when a dead link is found
  deadlinks check --fail-on-dead --markdown -o deadlinks.md public/

  # Record findings for 'deadlinks history'
  deadlinks check --history public/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .deadlinks in current or home directory)")
	cmd.Flags().String("site-url", "",
		"Base URL of the site; links starting with it are not checked")

	// Validation options; each overrides the configuration file when set.
	cmd.Flags().Bool("archive", config.DefaultArchive,
		"Rewrite dead links to their web archive lookup URL")
	cmd.Flags().Bool("labels", config.DefaultLabels,
		"Insert a status label after each dead link")
	cmd.Flags().StringSlice("class", nil,
		"CSS class to add to dead links (repeatable)")
	cmd.Flags().DurationP("timeout", "t", time.Duration(config.DefaultTimeoutDurationMS)*time.Millisecond,
		"Timeout for each request")
	cmd.Flags().Bool("timeout-is-error", config.DefaultTimeoutIsError,
		"Report unreachable links as dead instead of skipping them")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Distinct URLs of one document checked at once")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second (0 is unlimited)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for checks (e.g. 127.0.0.1:9050)")
	cmd.Flags().Int("max-redirects", config.DefaultMaxRedirects,
		"Requests a redirect chain may take (0 or 1 keeps the first response)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with each check")

	// Run flags
	cmd.Flags().BoolP("write", "w", false,
		"Rewrite HTML files that contain dead links")
	cmd.Flags().IntP("jobs", "j", pipeline.DefaultConcurrency,
		"Number of documents processed in parallel")
	cmd.Flags().Bool("fail-on-dead", false,
		"Exit with an error when a dead link is found")

	// Report flags
	cmd.Flags().BoolP("json", "J", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed); a text summary still goes to stdout unless --quiet")
	cmd.Flags().Bool("history", false,
		"Record the run in the history database")
	cmd.Flags().String("history-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(cmd)

	cfg, err := buildCheckConfig(cmd, args, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCheck(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildCheckConfig resolves the configuration file and flags into a checkConfig.
// Flags override file values only when they were set explicitly.
func buildCheckConfig(cmd *cobra.Command, args []string, logger *slog.Logger) (*checkConfig, error) {
	flags := cmd.Flags()
	cfg := &checkConfig{
		Paths:   args,
		Verbose: getBoolFlag(cmd, "verbose"),
		Quiet:   getBoolFlag(cmd, "quiet"),
	}
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"."}
	}

	var err error
	if cfg.ConfigPath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Settings, err = loadSettings(cfg.ConfigPath, logger); err != nil {
		return nil, err
	}

	s := &cfg.Settings
	if flags.Changed("site-url") {
		if s.SiteURL, err = flags.GetString("site-url"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("archive") {
		if s.Options.Archive, err = flags.GetBool("archive"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("labels") {
		if s.Options.Labels, err = flags.GetBool("labels"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("class") {
		if s.Options.Classes, err = flags.GetStringSlice("class"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		timeout, err := flags.GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		s.Options.TimeoutDurationMS = float64(timeout) / float64(time.Millisecond)
	}
	if flags.Changed("timeout-is-error") {
		if s.Options.TimeoutIsError, err = flags.GetBool("timeout-is-error"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if s.Options.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rate") {
		if s.Options.RequestsPerSecond, err = flags.GetFloat64("rate"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if s.Options.Proxy, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-redirects") {
		if s.Options.MaxRedirects, err = flags.GetInt("max-redirects"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if s.Options.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if cfg.Write, err = flags.GetBool("write"); err != nil {
		return nil, err
	}
	if cfg.Jobs, err = flags.GetInt("jobs"); err != nil {
		return nil, err
	}
	if cfg.FailOnDead, err = flags.GetBool("fail-on-dead"); err != nil {
		return nil, err
	}
	if cfg.JSON, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.Markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.History, err = flags.GetBool("history"); err != nil {
		return nil, err
	}
	if cfg.HistoryDir, err = flags.GetString("history-dir"); err != nil {
		return nil, err
	}
	if cfg.HistoryDir == "" {
		cfg.HistoryDir = config.XDGDataDir()
	}

	return cfg, nil
}

// loadSettings reads the configuration file. A missing file is an error
// only when its path was given explicitly. Mistyped options are logged and
// keep their defaults.
func loadSettings(explicitPath string, logger *slog.Logger) (config.Settings, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return config.Settings{}, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return config.DefaultSettings(), nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	settings, err := file.Settings(true)
	if err != nil {
		if !config.IsOptionTypeError(err) {
			return config.Settings{}, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		logger.Warn("ignoring mistyped options", "config", path, "error", err)
	}

	logger.Debug("configuration loaded", "config", path)
	return settings, nil
}

// newHTTPClient creates the client used for checks, verifying the proxy first.
func newHTTPClient(ctx context.Context, opts config.Options) (*http.Client, error) {
	clientOpts := []httpclient.Option{httpclient.WithMaxRedirects(opts.MaxRedirects)}
	if opts.Proxy != "" {
		if status := httpclient.CheckProxy(ctx, opts.Proxy); status != httpclient.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed for %s: %w", opts.Proxy, status.Err())
		}
		clientOpts = append(clientOpts, httpclient.WithProxy(opts.Proxy))
	}
	return httpclient.New(clientOpts...)
}

// runCheck checks every document below cfg.Paths and writes the report to stdout
// or cfg.Output.
func runCheck(ctx context.Context, cfg *checkConfig, stdout io.Writer, logger *slog.Logger) error {
	paths, err := site.Discover(cfg.Paths)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return ErrNoDocuments
	}

	opts := cfg.Settings.Options
	client, err := newHTTPClient(ctx, opts)
	if err != nil {
		return err
	}

	chk := checker.New(client,
		checker.WithUserAgent(opts.UserAgent),
		checker.WithMaxBodySize(opts.MaxBodySize),
		checker.WithRateLimit(opts.RequestsPerSecond),
		checker.WithLogger(logger),
	)
	plugin := deadlinks.NewPlugin(
		deadlinks.NewProcessor(chk, deadlinks.WithLogger(logger)),
		cfg.Settings,
		deadlinks.WithPluginLogger(logger),
	)
	loader := site.NewLoader(nil)

	build := model.NewBuildReport(cfg.Settings.SiteURL)

	var db *database.HistoryDB
	var runID int64
	if cfg.History {
		db, err = database.Open(cfg.HistoryDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if runID, err = db.BeginRun(ctx, build); err != nil {
			return err
		}
		logger.Debug("history run started", "run", runID, "db", db.Path())
	}

	logger.Debug("resolved options", "options", opts.ToMap())
	logger.Info("starting check",
		"documents", len(paths),
		"jobs", cfg.Jobs,
		"write", cfg.Write,
	)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			// A failed write must not keep the document out of the history.
			p := pipeline.New(pipeline.WithLogger(logger), pipeline.WithContinueOnError(true))
			p.AddSteps(pipeline.NewLoadStep(loader), pipeline.NewValidateStep(plugin))
			if cfg.Write {
				p.AddStep(pipeline.NewWriteStep(pipeline.WithWriteLogger(logger)))
			}
			if db != nil {
				p.AddStep(pipeline.NewHistoryStep(db, runID))
			}
			return p
		},
		pipeline.WithConcurrency(cfg.Jobs),
		pipeline.WithBatchLogger(logger),
	)

	jobs, batchErr := bp.ProcessBatch(ctx, paths)
	for i, job := range jobs {
		switch {
		case job == nil:
			continue
		case job.Report == nil:
			build.AddDocument(model.NewDocumentReport(paths[i]))
		default:
			build.AddDocument(job.Report)
		}
	}
	build.Finish()

	if db != nil {
		// The run is finished even when interrupted so partial results are kept.
		if err := db.FinishRun(context.WithoutCancel(ctx), runID, build); err != nil {
			logger.Error("failed to save run", "run", runID, "error", err)
		}
	}

	if err := outputReport(cfg, build, stdout); err != nil {
		return err
	}
	if batchErr != nil {
		return fmt.Errorf("check interrupted: %w", batchErr)
	}
	if cfg.FailOnDead && build.HasDeadLinks() {
		return fmt.Errorf("%w: %d", ErrDeadLinksFound, build.Summary().Dead)
	}
	return nil
}

// outputReport writes the report in the requested format. With an output
// file the plain text summary still goes to stdout unless quiet is set.
func outputReport(cfg *checkConfig, build *model.BuildReport, stdout io.Writer) error {
	if cfg.Output == "" {
		return writeReport(formatWriter(cfg, stdout), build)
	}

	dir := filepath.Dir(cfg.Output)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	writers := []report.Writer{formatWriter(cfg, f)}
	if !cfg.Quiet {
		writers = append(writers, report.NewSimpleWriter(stdout, report.WithVerbose(cfg.Verbose)))
	}
	return writeReport(report.NewMultiWriter(writers...), build)
}

// formatWriter returns the writer for the requested report format.
func formatWriter(cfg *checkConfig, output io.Writer) report.Writer {
	switch {
	case cfg.JSON:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.Markdown:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

func writeReport(w report.Writer, build *model.BuildReport) error {
	if _, err := w.Write(build); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
