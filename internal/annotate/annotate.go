package annotate

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/deadlinks/internal/config"
	"github.com/nao1215/deadlinks/internal/document"
)

// ArchiveURLFormat is the web archive lookup for a URL, with %s replaced
// by the original URL verbatim.
const ArchiveURLFormat = "https://web.archive.org/web/*/%s"

// Label is the badge inserted after a flagged element.
type Label struct {
	// Class is the class attribute of the badge.
	Class string

	// Text is the badge content.
	Text string
}

// NotAvailable is the label for links that could not be reached.
func NotAvailable() Label {
	return Label{Class: "label label-danger", Text: "not available"}
}

// AccessError is the label for links answering with a client error code.
func AccessError(code int) Label {
	return Label{Class: "label label-warning", Text: strconv.Itoa(code)}
}

// Node builds the detached <span> element for the label.
func (l Label) Node() *html.Node {
	return document.NewElement(atom.Span, l.Text, html.Attribute{Key: "class", Val: l.Class})
}

// ArchiveURL returns the web archive lookup URL for url. The original URL
// is embedded as is, without escaping.
func ArchiveURL(url string) string {
	return fmt.Sprintf(ArchiveURLFormat, url)
}

// Annotator applies the configured markings to dead link elements.
type Annotator struct {
	classes []string
	labels  bool
	archive bool
}

// New creates an Annotator from resolved options.
func New(opts config.Options) *Annotator {
	return &Annotator{
		classes: append([]string(nil), opts.Classes...),
		labels:  opts.Labels,
		archive: opts.Archive,
	}
}

// Annotate marks el in this order: configured classes are appended, the
// label is inserted right after el when labels are enabled, and href is
// pointed at the web archive when archiving is enabled.
//
// A detached element cannot receive a label; the error is returned after
// the remaining markings have been applied.
func (a *Annotator) Annotate(el *html.Node, label Label) error {
	for _, c := range a.classes {
		document.AddClass(el, c)
	}

	var err error
	if a.labels {
		err = document.InsertAfter(el, label.Node())
	}

	if a.archive {
		if href, ok := document.Attr(el, "href"); ok {
			document.SetAttr(el, "href", ArchiveURL(href))
		}
	}
	return err
}

// Changes reports whether Annotate modifies elements at all.
func (a *Annotator) Changes() bool {
	return len(a.classes) > 0 || a.labels || a.archive
}
