package markdown

import (
	"bytes"
	"fmt"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// FrontMatter holds the front matter keys deadlinks understands.
// Other keys are ignored.
type FrontMatter struct {
	Title string `yaml:"title" toml:"title"`

	// Deadlinks switches link validation for this document. Nil means the
	// global setting applies.
	Deadlinks *bool `yaml:"deadlinks" toml:"deadlinks"`
}

// Document is a rendered Markdown source.
type Document struct {
	FrontMatter FrontMatter
	HTML        string
}

// Renderer converts Markdown to HTML with goldmark.
// It is stateless and safe for concurrent use.
type Renderer struct {
	engine goldmark.Markdown
}

// Option configures a Renderer.
type Option func(*settings)

type settings struct {
	unsafe    bool
	hardWraps bool
}

// WithUnsafe controls whether raw HTML in the source is passed through.
// It is on by default because content authors embed <object> elements.
func WithUnsafe(unsafe bool) Option {
	return func(s *settings) {
		s.unsafe = unsafe
	}
}

// WithHardWraps renders soft line breaks as <br>.
func WithHardWraps() Option {
	return func(s *settings) {
		s.hardWraps = true
	}
}

// NewRenderer creates a Renderer with GFM, autolinks and task lists.
func NewRenderer(opts ...Option) *Renderer {
	s := &settings{unsafe: true}
	for _, opt := range opts {
		opt(s)
	}

	var rendererOptions []goldmark.Option
	var htmlOptions []renderer.Option
	if s.unsafe {
		htmlOptions = append(htmlOptions, html.WithUnsafe())
	}
	if s.hardWraps {
		htmlOptions = append(htmlOptions, html.WithHardWraps())
	}
	if len(htmlOptions) > 0 {
		rendererOptions = append(rendererOptions, goldmark.WithRendererOptions(htmlOptions...))
	}

	engine := goldmark.New(append(rendererOptions,
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.TaskList),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)...)

	return &Renderer{engine: engine}
}

// Render strips the front matter from source and renders the rest.
func (r *Renderer) Render(source []byte) (*Document, error) {
	var fm FrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(source), &fm)
	if err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}

	var buf bytes.Buffer
	if err := r.engine.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	return &Document{FrontMatter: fm, HTML: buf.String()}, nil
}
