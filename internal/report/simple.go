package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/deadlinks/internal/model"
)

// SimpleWriter writes a plain text report for terminals.
type SimpleWriter struct {
	baseWriter

	// verbose lists every checked link, not only the dead ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every link with its verdict.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *SimpleWriter) Write(report *model.BuildReport) (int, error) {
	var sb strings.Builder

	w.writeSummary(&sb, report)
	w.writeDocuments(&sb, report)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.BuildReport) {
	s := report.Summary()

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("DEADLINKS REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	if report.SiteURL != "" {
		fmt.Fprintf(sb, "Site URL:   %s\n", report.SiteURL)
	}
	fmt.Fprintf(sb, "Documents:  %d", s.Documents)
	if s.Failed > 0 {
		fmt.Fprintf(sb, " (%d failed)", s.Failed)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Links:      %d (%d distinct checks)\n", s.Links, s.Checked)
	fmt.Fprintf(sb, "  good:     %d\n", s.Good)
	fmt.Fprintf(sb, "  ignored:  %d\n", s.Ignored)
	fmt.Fprintf(sb, "  skipped:  %d\n", s.Skipped)
	fmt.Fprintf(sb, "  dead:     %d\n", s.Dead)
	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(sb, "Elapsed:    %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDocuments(sb *strings.Builder, report *model.BuildReport) {
	for _, d := range report.Documents {
		links := d.Links
		if !w.verbose {
			links = d.DeadLinks()
		}
		if len(links) == 0 && d.Error == "" {
			continue
		}

		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		fmt.Fprintf(sb, "%s [%s]\n", d.Source, documentStatus(d))
		if d.Error != "" {
			fmt.Fprintf(sb, "  error: %s\n", d.Error)
		}
		for _, l := range links {
			fmt.Fprintf(sb, "  [%s] %s (%s)\n", verdictIndicator(l.Verdict), l.URL, l.Outcome)
		}
		sb.WriteString("\n")
	}
}

// verdictIndicator returns a short marker for the verdict.
func verdictIndicator(v model.Verdict) string {
	switch v {
	case model.VerdictAccessError, model.VerdictConnectionError:
		return "x"
	case model.VerdictSkipped:
		return "?"
	case model.VerdictIgnored:
		return "~"
	default:
		return "+"
	}
}

// verdictLabel turns a verdict name like "access_error" into "Access Error".
func verdictLabel(v model.Verdict) string {
	return cases.Title(language.English).String(strings.ReplaceAll(v.String(), "_", " "))
}
