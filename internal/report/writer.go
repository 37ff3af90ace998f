package report

import (
	"io"

	"github.com/nao1215/deadlinks/internal/model"
)

// Writer writes a run report in some format.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.BuildReport) (int, error)
}

// MultiWriter writes to several Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every writer and stops on the first error.
func (m *MultiWriter) Write(report *model.BuildReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString shortens s to maxLen bytes, ending with "..." when cut.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// documentStatus is the one-word state of a document.
func documentStatus(d *model.DocumentReport) string {
	switch {
	case d.Error != "":
		return "error"
	case d.Disabled:
		return "disabled"
	case len(d.DeadLinks()) > 0:
		return "dead links"
	default:
		return "ok"
	}
}
