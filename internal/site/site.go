package site

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/nao1215/deadlinks/internal/markdown"
)

// Format is the source format of a page.
type Format int

const (
	// FormatHTML is a built HTML page.
	FormatHTML Format = iota

	// FormatMarkdown is a Markdown source rendered on load.
	FormatMarkdown
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatMarkdown {
		return "markdown"
	}
	return "html"
}

var (
	// ErrUnsupportedFormat is returned for files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrReadOnly is returned when saving a page that cannot be written back.
	ErrReadOnly = errors.New("page cannot be written back")
)

var extensions = map[string]Format{
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// FormatOf returns the format for path based on its extension.
func FormatOf(path string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Discover returns the supported files under paths. Directories are walked
// recursively, skipping hidden directories; files are taken as given when
// their extension is supported. The result is sorted and free of duplicates.
func Discover(paths []string) ([]string, error) {
	found := make([]string, 0)
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if _, ok := FormatOf(root); !ok {
				return nil, fmt.Errorf("%s: %w", root, ErrUnsupportedFormat)
			}
			found = append(found, filepath.Clean(root))
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if _, ok := FormatOf(path); ok {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	slices.Sort(found)
	return slices.Compact(found), nil
}

// Page is a loaded content document.
type Page struct {
	// Path is the file the page was loaded from.
	Path string

	// Format is the source format.
	Format Format

	// Title comes from the Markdown front matter, when present.
	Title string

	// Charset is the encoding the file was decoded from.
	Charset string

	// Validate overrides the global validation switch when non-nil.
	Validate *bool

	markup   string
	modified bool
}

// Source implements deadlinks.Content.
func (p *Page) Source() string {
	return p.Path
}

// Markup implements deadlinks.Content. Every loaded page has a body,
// possibly empty.
func (p *Page) Markup() (string, bool) {
	return p.markup, true
}

// SetMarkup implements deadlinks.Content.
func (p *Page) SetMarkup(markup string) {
	if markup != p.markup {
		p.markup = markup
		p.modified = true
	}
}

// ValidationOverride implements deadlinks.ValidationOverrider.
func (p *Page) ValidationOverride() (bool, bool) {
	if p.Validate == nil {
		return false, false
	}
	return *p.Validate, true
}

// Modified reports whether SetMarkup changed the page.
func (p *Page) Modified() bool {
	return p.modified
}

// Loader reads pages from disk.
type Loader struct {
	renderer *markdown.Renderer
}

// NewLoader creates a Loader. A nil renderer uses markdown.NewRenderer().
func NewLoader(renderer *markdown.Renderer) *Loader {
	if renderer == nil {
		renderer = markdown.NewRenderer()
	}
	return &Loader{renderer: renderer}
}

// Load reads and decodes the page at path.
func (l *Loader) Load(path string) (*Page, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	raw, err := os.ReadFile(path) //nolint:gosec // paths come from Discover
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	page := &Page{Path: path, Format: format}

	switch format {
	case FormatMarkdown:
		doc, err := l.renderer.Render(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		page.markup = doc.HTML
		page.Title = doc.FrontMatter.Title
		page.Validate = doc.FrontMatter.Deadlinks
		page.Charset = "utf-8"
	default:
		markup, name, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		page.markup = markup
		page.Charset = name
	}

	return page, nil
}

// decode converts raw HTML to UTF-8 using its BOM, meta charset or a guess.
func decode(raw []byte) (string, string, error) {
	enc, name, _ := charset.DetermineEncoding(raw, "text/html")
	if name == "utf-8" {
		return string(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))), name, nil
	}

	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", name, err
	}
	return string(out), name, nil
}

// Save writes the page's markup back to its file as UTF-8.
// Markdown pages cannot be saved.
func Save(p *Page) error {
	if p.Format != FormatHTML {
		return fmt.Errorf("%s: %w", p.Path, ErrReadOnly)
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", p.Path, err)
	}

	// Write to a sibling file first so a failed write leaves the page intact.
	tmp, err := os.CreateTemp(filepath.Dir(p.Path), "."+filepath.Base(p.Path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if _, err := io.WriteString(tmp, p.markup); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", p.Path, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set mode on %s: %w", p.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.Path, err)
	}
	if err := os.Rename(tmp.Name(), p.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", p.Path, err)
	}

	p.modified = false
	return nil
}
