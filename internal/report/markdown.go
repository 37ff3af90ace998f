package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/deadlinks/internal/model"
)

// MarkdownWriter writes a GitHub-flavored Markdown report.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report.
func (w *MarkdownWriter) Write(report *model.BuildReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeDeadLinks(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.BuildReport) {
	md.H1("Dead Links Report")
	md.PlainText("")

	rows := [][]string{
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if report.SiteURL != "" {
		rows = append([][]string{{"Site URL", "`" + report.SiteURL + "`"}}, rows...)
	}
	if !report.FinishedAt.IsZero() {
		rows = append(rows, []string{"Duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String()})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.BuildReport) {
	s := report.Summary()

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Count"},
		Rows: [][]string{
			{"Documents", strconv.Itoa(s.Documents)},
			{"Links", strconv.Itoa(s.Links)},
			{"Distinct checks", strconv.Itoa(s.Checked)},
			{"Good", strconv.Itoa(s.Good)},
			{"Ignored", strconv.Itoa(s.Ignored)},
			{"Skipped", strconv.Itoa(s.Skipped)},
			{"**Dead**", "**" + strconv.Itoa(s.Dead) + "**"},
		},
	})
	md.PlainText("")

	if s.Links > 0 {
		w.writePieChart(md, s)
	}

	switch {
	case s.Dead > 0:
		md.Warningf("%d dead link(s) found in %d document(s).", s.Dead, countDocumentsWithDeadLinks(report))
	case s.Skipped > 0:
		md.Note(fmt.Sprintf("No dead links, but %d link(s) could not be reached and were skipped.", s.Skipped))
	default:
		md.Tip("No dead links found.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Verdicts"),
		piechart.WithShowData(true),
	)

	for _, slice := range []struct {
		label string
		count int
	}{
		{"Good", s.Good},
		{"Ignored", s.Ignored},
		{"Skipped", s.Skipped},
		{"Dead", s.Dead},
	} {
		if slice.count > 0 {
			chart.LabelAndIntValue(slice.label, uint64(slice.count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeDeadLinks(md *markdown.Markdown, report *model.BuildReport) {
	md.H2("Dead Links")
	md.PlainText("")

	found := false
	for _, d := range report.Documents {
		dead := d.DeadLinks()
		if len(dead) == 0 {
			continue
		}
		found = true

		md.H3("`" + d.Source + "`")
		md.PlainText("")

		rows := make([][]string, len(dead))
		for i, l := range dead {
			rows[i] = []string{truncateString(l.URL, 80), l.Tag, verdictLabel(l.Verdict), l.Outcome.String()}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Element", "Verdict", "Result"},
			Rows:   rows,
		})
		md.PlainText("")

		seen := make(map[model.Verdict]bool)
		for _, l := range dead {
			if seen[l.Verdict] {
				continue
			}
			seen[l.Verdict] = true
			info := model.GetVerdictInfo(l.Verdict)
			md.Details(info.Title, info.Impact+" "+info.Recommendation)
		}
		md.PlainText("")
	}

	if !found {
		md.PlainText("No dead links found.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.BuildReport) {
	var failed []string
	for _, d := range report.Documents {
		if d.Error != "" {
			failed = append(failed, "`"+d.Source+"`: "+d.Error)
		}
	}
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Documents")
	md.PlainText("")
	md.Cautionf("%d document(s) could not be processed.", len(failed))
	md.PlainText("")
	md.BulletList(failed...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [deadlinks](https://github.com/nao1215/deadlinks)*")
}

func countDocumentsWithDeadLinks(report *model.BuildReport) int {
	n := 0
	for _, d := range report.Documents {
		if len(d.DeadLinks()) > 0 {
			n++
		}
	}
	return n
}
