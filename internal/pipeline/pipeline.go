package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/deadlinks/internal/model"
	"github.com/nao1215/deadlinks/internal/site"
)

// Job carries one document through the pipeline.
type Job struct {
	// Path is the file being processed.
	Path string

	// Page is set by LoadStep.
	Page *site.Page

	// Report is set by ValidateStep, or by the pipeline when a step fails
	// before a report exists.
	Report *model.DocumentReport

	// Written is true when WriteStep saved the page.
	Written bool

	// Steps lists the steps that ran, in order.
	Steps []string
}

// NewJob creates a Job for the file at path.
func NewJob(path string) *Job {
	return &Job{Path: path}
}

// Step is one stage of document processing.
type Step interface {
	// Do executes the step. An error stops the pipeline unless it was
	// created with WithContinueOnError.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing the remaining steps after one fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps on job. Cancellation is checked between steps;
// steps handle their own timeouts.
//
// A failing step records its error in job.Report, creating the report
// when no step has done so yet.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			p.recordError(job, ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"path", job.Path,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"path", job.Path,
				"error", err,
			)
			p.recordError(job, err)

			if !p.continueOnError {
				return err
			}
		}

		job.Steps = append(job.Steps, step.Name())
	}

	return nil
}

func (p *Pipeline) recordError(job *Job, err error) {
	if job.Report == nil {
		job.Report = model.NewDocumentReport(job.Path)
	}
	if job.Report.Error == "" {
		job.Report.Error = err.Error()
	}
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
