package extract

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"golang.org/x/net/html/atom"

	"github.com/nao1215/deadlinks/internal/document"
)

func collect(e *Extractor, markup string) ([]string, []string) {
	var urls, tags []string
	for n, u := range e.Links(markup) {
		urls = append(urls, u)
		tags = append(tags, n.Data)
	}
	return urls, tags
}

func TestLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		markup  string
		want    []string
	}{
		{
			name:   "no links",
			markup: `<p>Nothing to see here.</p>`,
			want:   nil,
		},
		{
			name:   "anchor and object in document order",
			markup: `<a href="https://one.example/">1</a><object href="http://two.example/x"></object>`,
			want:   []string{"https://one.example/", "http://two.example/x"},
		},
		{
			name:   "relative and fragment links are skipped",
			markup: `<a href="/about">a</a><a href="#top">b</a><a href="../x.html">c</a>`,
			want:   nil,
		},
		{
			name:   "non-http schemes are skipped",
			markup: `<a href="mailto:me@example.com">m</a><a href="ftp://example.com/f">f</a>`,
			want:   nil,
		},
		{
			name:   "missing href is skipped",
			markup: `<a name="anchor">x</a><object data="https://example.com/o.swf"></object>`,
			want:   nil,
		},
		{
			name:   "other elements are ignored",
			markup: `<link href="https://cdn.example/s.css"><area href="https://example.com/map">`,
			want:   nil,
		},
		{
			name:   "upper-case tags match",
			markup: `<A HREF="https://example.com/">x</A>`,
			want:   []string{"https://example.com/"},
		},
		{
			name:    "links under the site url are internal",
			baseURL: "https://blog.example",
			markup:  `<a href="https://blog.example/post">in</a><a href="https://other.example/">out</a>`,
			want:    []string{"https://other.example/"},
		},
		{
			name:    "empty site url treats every http link as external",
			baseURL: "",
			markup:  `<a href="https://blog.example/post">in</a>`,
			want:    []string{"https://blog.example/post"},
		},
		{
			name:   "duplicates are all yielded",
			markup: `<a href="https://x.example/">1</a><a href="https://x.example/">2</a>`,
			want:   []string{"https://x.example/", "https://x.example/"},
		},
		{
			name:   "prefix match is literal",
			markup: `<a href="httpfoo">odd</a>`,
			want:   []string{"httpfoo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := New(tt.baseURL)
			got, _ := collect(e, tt.markup)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinks_Restartable(t *testing.T) {
	t.Parallel()

	e := New("")
	seq := e.Links(`<a href="https://a.example/">a</a><a href="https://b.example/">b</a>`)

	var first, second []string
	for _, u := range seq {
		first = append(first, u)
	}
	for _, u := range seq {
		second = append(second, u)
	}
	if !slices.Equal(first, second) || len(first) != 2 {
		t.Errorf("expected identical passes, got %v and %v", first, second)
	}
}

func TestLinks_EarlyBreak(t *testing.T) {
	t.Parallel()

	e := New("")
	count := 0
	for range e.Links(`<a href="https://a.example/">a</a><a href="https://b.example/">b</a>`) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected 1 iteration, got %d", count)
	}
}

func TestLinks_Tags(t *testing.T) {
	t.Parallel()

	_, tags := collect(New(""), `<object href="https://o.example/"></object><a href="https://a.example/">a</a>`)
	if !slices.Equal(tags, []string{"object", "a"}) {
		t.Errorf("unexpected tags %v", tags)
	}
}

func TestLinksIn_SharesNodes(t *testing.T) {
	t.Parallel()

	doc, err := document.Parse(`<p><a href="https://a.example/">a</a></p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for n := range New("").LinksIn(doc) {
		if n.DataAtom != atom.A {
			t.Fatalf("unexpected element %s", n.Data)
		}
		document.SetAttr(n, "href", "https://changed.example/")
	}

	out, err := doc.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "https://changed.example/") {
		t.Errorf("edit not visible in rendered document: %s", out)
	}
}

func TestLinks_LogsInternalSkip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	e := New("https://blog.example", WithLogger(logger))
	got, _ := collect(e, `<a href="https://blog.example/post">in</a>`)
	if len(got) != 0 {
		t.Fatalf("expected no links, got %v", got)
	}
	if !strings.Contains(buf.String(), "https://blog.example/post") {
		t.Errorf("expected skip to be logged, got %q", buf.String())
	}
}
