package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/deadlinks/internal/model"
)

// JSONWriter writes reports as JSON.
type JSONWriter struct {
	baseWriter

	indent  bool
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents the output by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// WithVersion records the generating version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the top-level JSON document.
type JSONReport struct {
	Version string             `json:"version,omitempty"`
	Summary model.Summary      `json:"summary"`
	Report  *model.BuildReport `json:"report"`
}

// Write outputs the report with its summary.
func (w *JSONWriter) Write(report *model.BuildReport) (int, error) {
	doc := JSONReport{
		Version: w.version,
		Summary: report.Summary(),
		Report:  report,
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
