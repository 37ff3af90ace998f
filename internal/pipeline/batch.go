package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of documents processed at once.
const DefaultConcurrency = 4

// BatchProcessor processes many documents concurrently, one fresh
// Pipeline per document.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of documents processed at once.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every path through its own pipeline and returns the
// jobs in input order. A failed document does not stop the batch; its
// error is recorded in the job's report. The returned error is non-nil
// only when ctx was cancelled, in which case documents that never
// started have a nil entry.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, paths []string) ([]*Job, error) {
	jobs := make([]*Job, len(paths))
	err := bp.ProcessBatchWithCallback(ctx, paths, func(job *Job, i int) {
		jobs[i] = job
	})
	return jobs, err
}

// ProcessBatchWithCallback runs every path and calls callback with each
// finished job and its index in paths. callback is called from worker
// goroutines and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	paths []string,
	callback func(job *Job, index int),
) error {
	bp.logger.Info("starting batch processing",
		"documents", len(paths),
		"concurrency", bp.concurrency,
		"steps", bp.pipelineFactory().StepNames(),
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			job := NewJob(path)
			if err := bp.pipelineFactory().Execute(ctx, job); err != nil {
				bp.logger.Warn("document failed",
					"path", path,
					"error", err,
				)
			}

			callback(job, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"documents", len(paths),
		"elapsed", time.Since(startTime),
	)

	return err
}
