package deadlinks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/deadlinks/internal/annotate"
	"github.com/nao1215/deadlinks/internal/checker"
	"github.com/nao1215/deadlinks/internal/config"
	"github.com/nao1215/deadlinks/internal/document"
	"github.com/nao1215/deadlinks/internal/extract"
	"github.com/nao1215/deadlinks/internal/model"
)

// LinkChecker checks a single URL. *checker.Checker implements it.
type LinkChecker interface {
	Check(ctx context.Context, url string, timeout time.Duration) model.Outcome
}

// Processor validates the links of one document at a time.
// A Processor holds no per-document state and may be used concurrently.
type Processor struct {
	checker LinkChecker
	logger  *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger for link diagnostics.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a Processor that checks links with lc.
func NewProcessor(lc LinkChecker, opts ...ProcessorOption) *Processor {
	p := &Processor{
		checker: lc,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// link is a qualifying element and its URL.
type link struct {
	node *html.Node
	url  string
}

// Process validates the links of markup and returns the possibly modified
// markup together with a report.
//
// Link failures never produce an error. An error is returned only when the
// markup cannot be parsed or rendered, or when ctx is done before all links
// were checked; the original markup is returned in those cases.
func (p *Processor) Process(ctx context.Context, source, markup string, settings config.Settings) (string, *model.DocumentReport, error) {
	report := model.NewDocumentReport(source)
	defer func() { report.Elapsed = time.Since(report.CheckedAt) }()

	logger := p.logger
	if source != "" {
		logger = logger.With("source", source)
	}

	if markup == "" {
		return markup, report, nil
	}

	if !settings.Validation {
		logger.Debug("validation disabled")
		report.Disabled = true
		return markup, report, nil
	}

	report.ComputeDigest([]byte(markup))

	doc, err := document.Parse(markup)
	if err != nil {
		report.Error = err.Error()
		return markup, report, err
	}

	ext := extract.New(settings.SiteURL, extract.WithLogger(logger))

	// Collect first; annotation inserts siblings into the tree being walked.
	var links []link
	for n, u := range ext.LinksIn(doc) {
		links = append(links, link{node: n, url: u})
	}
	if len(links) == 0 {
		return markup, report, nil
	}

	opts := settings.Options
	timeout := opts.Timeout()
	cache := checker.NewCache()
	check := p.checker.Check

	if opts.Concurrency > 1 {
		urls := make([]string, len(links))
		for i, l := range links {
			urls[i] = l.url
		}
		if err := cache.Prefetch(ctx, urls, timeout, opts.Concurrency, check); err != nil {
			return p.abort(markup, report, err)
		}
	}

	annotator := annotate.New(opts)
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return p.abort(markup, report, err)
		}

		outcome, _ := cache.Resolve(ctx, l.url, timeout, check)
		verdict := Classify(outcome, opts.TimeoutIsError)
		p.dispatch(logger, annotator, l, outcome, verdict)

		report.Add(model.LinkResult{
			URL:     l.url,
			Tag:     l.node.Data,
			Outcome: outcome,
			Verdict: verdict,
		})
	}
	report.Checked = cache.Len()

	if !report.Modified || !annotator.Changes() {
		return markup, report, nil
	}

	if n := doc.Dropped(); n > 0 {
		logger.Warn("leaving markup unchanged, rendering would drop elements",
			"dropped", n, "fragment", doc.IsFragment())
		report.Modified = false
		return markup, report, nil
	}

	out, err := doc.Render()
	if err != nil {
		report.Error = err.Error()
		return markup, report, err
	}
	return out, report, nil
}

// dispatch logs the verdict and annotates the element of a dead link.
func (p *Processor) dispatch(logger *slog.Logger, annotator *annotate.Annotator, l link, o model.Outcome, v model.Verdict) {
	var err error
	switch v {
	case model.VerdictConnectionError:
		logger.Warn("dead link", "url", l.url, "reason", o.String())
		err = annotator.Annotate(l.node, annotate.NotAvailable())
	case model.VerdictSkipped:
		logger.Warn("skipping link", "url", l.url, "reason", o.String())
	case model.VerdictAccessError:
		logger.Warn("dead link", "url", l.url, "status", o.StatusCode)
		err = annotator.Annotate(l.node, annotate.AccessError(o.StatusCode))
	default:
		logger.Debug("good link", "url", l.url, "status", o.StatusCode)
	}

	if errors.Is(err, document.ErrNoParent) {
		logger.Warn("cannot place label", "url", l.url)
	}
}

func (p *Processor) abort(markup string, report *model.DocumentReport, err error) (string, *model.DocumentReport, error) {
	err = fmt.Errorf("link validation interrupted: %w", err)
	report.Error = err.Error()
	return markup, report, err
}
