package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/deadlinks/internal/database"
	"github.com/nao1215/deadlinks/internal/deadlinks"
	"github.com/nao1215/deadlinks/internal/site"
)

// ErrNoPage is returned by steps that need a loaded page when LoadStep
// has not run or failed.
var ErrNoPage = errors.New("no page loaded")

// LoadStep reads the job's file into a site.Page.
type LoadStep struct {
	loader *site.Loader
}

// NewLoadStep creates a LoadStep. A nil loader uses site.NewLoader(nil).
func NewLoadStep(loader *site.Loader) *LoadStep {
	if loader == nil {
		loader = site.NewLoader(nil)
	}
	return &LoadStep{loader: loader}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do loads the page.
func (s *LoadStep) Do(_ context.Context, job *Job) error {
	page, err := s.loader.Load(job.Path)
	if err != nil {
		return err
	}
	job.Page = page
	return nil
}

// ValidateStep checks and annotates the links of the loaded page.
type ValidateStep struct {
	plugin *deadlinks.Plugin
}

// NewValidateStep creates a ValidateStep running plugin on each page.
func NewValidateStep(plugin *deadlinks.Plugin) *ValidateStep {
	return &ValidateStep{plugin: plugin}
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return "validate"
}

// Do validates the page. The page's front matter may switch validation
// on or off for this document.
func (s *ValidateStep) Do(ctx context.Context, job *Job) error {
	if job.Page == nil {
		return ErrNoPage
	}

	report, err := s.plugin.ContentObjectInit(ctx, job.Page)
	if report != nil {
		job.Report = report
	}
	return err
}

// WriteStep saves pages whose markup was changed by validation.
type WriteStep struct {
	logger *slog.Logger
}

// WriteStepOption configures a WriteStep.
type WriteStepOption func(*WriteStep)

// WithWriteLogger sets a custom logger for the write step.
func WithWriteLogger(logger *slog.Logger) WriteStepOption {
	return func(s *WriteStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewWriteStep creates a WriteStep.
func NewWriteStep(opts ...WriteStepOption) *WriteStep {
	s := &WriteStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do saves a modified HTML page in place. Markdown sources are never
// rewritten; the rendered output exists only in memory.
func (s *WriteStep) Do(_ context.Context, job *Job) error {
	if job.Page == nil {
		return ErrNoPage
	}
	if !job.Page.Modified() {
		return nil
	}
	if job.Page.Format != site.FormatHTML {
		s.logger.Info("markdown source not rewritten", "path", job.Path)
		return nil
	}

	if err := site.Save(job.Page); err != nil {
		return err
	}
	job.Written = true
	s.logger.Info("page rewritten", "path", job.Path)
	return nil
}

// HistoryStep records the dead links of each document under one run.
type HistoryStep struct {
	db    *database.HistoryDB
	runID int64
}

// NewHistoryStep creates a HistoryStep writing to runID in db.
func NewHistoryStep(db *database.HistoryDB, runID int64) *HistoryStep {
	return &HistoryStep{db: db, runID: runID}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do stores the job's dead links. Jobs without a report store nothing.
func (s *HistoryStep) Do(ctx context.Context, job *Job) error {
	if job.Report == nil {
		return nil
	}
	if err := s.db.RecordDocument(ctx, s.runID, job.Report); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}
