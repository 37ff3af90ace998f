package extract

import (
	"iter"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/deadlinks/internal/document"
)

// linkElements is the closed set of elements whose href is inspected.
// The parser lower-cases tag names, so matching on atoms is case-insensitive.
var linkElements = map[atom.Atom]bool{
	atom.A:      true,
	atom.Object: true,
}

// Extractor yields the checkable links of a document.
type Extractor struct {
	// baseURL is the site URL. Links starting with it are internal.
	// Empty means every http link is external.
	baseURL string

	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger that reports skipped internal links.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Extractor for a site served at baseURL.
func New(baseURL string, opts ...Option) *Extractor {
	e := &Extractor{
		baseURL: baseURL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Links parses markup and yields each link element with its URL, in
// document order. Every call parses markup again, so the sequence can be
// ranged over any number of times. Unparsable markup yields nothing.
func (e *Extractor) Links(markup string) iter.Seq2[*html.Node, string] {
	return func(yield func(*html.Node, string) bool) {
		doc, err := document.Parse(markup)
		if err != nil {
			e.logger.Debug("cannot parse markup", "error", err)
			return
		}
		for n, u := range e.LinksIn(doc) {
			if !yield(n, u) {
				return
			}
		}
	}
}

// LinksIn yields the link elements of an already parsed document. The
// yielded nodes belong to doc, so edits to them show up when doc is rendered.
func (e *Extractor) LinksIn(doc *document.Document) iter.Seq2[*html.Node, string] {
	return func(yield func(*html.Node, string) bool) {
		for n := range doc.Elements() {
			u, ok := e.Qualify(n)
			if !ok {
				continue
			}
			if !yield(n, u) {
				return
			}
		}
	}
}

// Qualify reports whether n is a checkable link and returns its URL.
func (e *Extractor) Qualify(n *html.Node) (string, bool) {
	if n.Type != html.ElementNode || !linkElements[n.DataAtom] {
		return "", false
	}

	href, ok := document.Attr(n, "href")
	if !ok {
		return "", false
	}

	// Relative paths, anchors and non-http schemes are not interesting.
	if !strings.HasPrefix(href, "http") {
		return "", false
	}

	// With an empty base URL (local preview builds) the previous check
	// already drops internal links. Published builds use absolute URLs.
	if e.baseURL != "" && strings.HasPrefix(href, e.baseURL) {
		e.logger.Info("link skipped as internal", "url", href, "site_url", e.baseURL)
		return "", false
	}

	return href, true
}
