package deadlinks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/deadlinks/internal/checker"
	"github.com/nao1215/deadlinks/internal/config"
	"github.com/nao1215/deadlinks/internal/model"
)

// fakeChecker answers from a table and counts calls per URL.
// URLs missing from the table answer 200.
type fakeChecker struct {
	mu       sync.Mutex
	outcomes map[string]model.Outcome
	calls    map[string]int
}

func newFakeChecker(outcomes map[string]model.Outcome) *fakeChecker {
	return &fakeChecker{outcomes: outcomes, calls: make(map[string]int)}
}

func (f *fakeChecker) Check(_ context.Context, url string, _ time.Duration) model.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if o, ok := f.outcomes[url]; ok {
		return o
	}
	return model.Responded(http.StatusOK)
}

func (f *fakeChecker) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func settingsWith(modify func(*config.Options)) config.Settings {
	s := config.DefaultSettings()
	modify(&s.Options)
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

const (
	okURL      = "https://ok.example/"
	missingURL = "https://missing.example/"
	brokenURL  = "https://broken.example/"
	slowURL    = "https://slow.example/"
)

var table = map[string]model.Outcome{
	missingURL: model.Responded(404),
	brokenURL:  model.Responded(500),
	slowURL:    model.TimedOut(context.DeadlineExceeded),
}

func TestProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		markup    string
		settings  config.Settings
		want      string
		wantCalls int
	}{
		{
			name:      "document without links is unchanged",
			markup:    `<p>No links, just <a href="/local">local</a> and <a href="#top">anchors</a>.</p>`,
			settings:  config.DefaultSettings(),
			want:      `<p>No links, just <a href="/local">local</a> and <a href="#top">anchors</a>.</p>`,
			wantCalls: 0,
		},
		{
			name:      "good link is unchanged",
			markup:    `<p><a href="` + okURL + `">ok</a></p>`,
			settings:  settingsWith(func(o *config.Options) { o.Labels = true; o.Classes = []string{"dead"} }),
			want:      `<p><a href="` + okURL + `">ok</a></p>`,
			wantCalls: 1,
		},
		{
			name:      "server error is unchanged",
			markup:    `<p><a href="` + brokenURL + `">x</a></p>`,
			settings:  settingsWith(func(o *config.Options) { o.Labels = true; o.Classes = []string{"dead"} }),
			want:      `<p><a href="` + brokenURL + `">x</a></p>`,
			wantCalls: 1,
		},
		{
			name:      "timeout is skipped by default",
			markup:    `<p><a href="` + slowURL + `">x</a></p>`,
			settings:  config.DefaultSettings(),
			want:      `<p><a href="` + slowURL + `">x</a></p>`,
			wantCalls: 1,
		},
		{
			name:      "timeout as error goes to the archive",
			markup:    `<p><a href="` + slowURL + `">x</a></p>`,
			settings:  settingsWith(func(o *config.Options) { o.TimeoutIsError = true }),
			want:      `<p><a href="https://web.archive.org/web/*/` + slowURL + `">x</a></p>`,
			wantCalls: 1,
		},
		{
			name:   "timeout as error with label",
			markup: `<p><a href="` + slowURL + `">x</a></p>`,
			settings: settingsWith(func(o *config.Options) {
				o.TimeoutIsError = true
				o.Archive = false
				o.Labels = true
			}),
			want:      `<p><a href="` + slowURL + `">x</a><span class="label label-danger">not available</span></p>`,
			wantCalls: 1,
		},
		{
			name:   "404 gets class and label",
			markup: `<p><a href="` + missingURL + `">x</a></p>`,
			settings: settingsWith(func(o *config.Options) {
				o.Archive = false
				o.Labels = true
				o.Classes = []string{"dead"}
			}),
			want:      `<p><a href="` + missingURL + `" class="dead">x</a><span class="label label-warning">404</span></p>`,
			wantCalls: 1,
		},
		{
			name:      "404 with defaults goes to the archive",
			markup:    `<a href="` + missingURL + `">x</a>`,
			settings:  config.DefaultSettings(),
			want:      `<a href="https://web.archive.org/web/*/` + missingURL + `">x</a>`,
			wantCalls: 1,
		},
		{
			name:   "links under the site url are not checked",
			markup: `<p><a href="https://blog.example/about">me</a></p>`,
			settings: func() config.Settings {
				s := config.DefaultSettings()
				s.SiteURL = "https://blog.example"
				return s
			}(),
			want:      `<p><a href="https://blog.example/about">me</a></p>`,
			wantCalls: 0,
		},
		{
			name:   "validation disabled leaves dead links alone",
			markup: `<p><a href="` + missingURL + `">x</a></p>`,
			settings: func() config.Settings {
				s := config.DefaultSettings()
				s.Validation = false
				return s
			}(),
			want:      `<p><a href="` + missingURL + `">x</a></p>`,
			wantCalls: 0,
		},
		{
			name:      "empty markup",
			markup:    "",
			settings:  config.DefaultSettings(),
			want:      "",
			wantCalls: 0,
		},
		{
			name:   "object element is annotated",
			markup: `<p><object href="` + missingURL + `"></object></p>`,
			settings: settingsWith(func(o *config.Options) {
				o.Archive = false
				o.Classes = []string{"dead"}
			}),
			want:      `<p><object href="` + missingURL + `" class="dead"></object></p>`,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fc := newFakeChecker(table)
			p := NewProcessor(fc, WithLogger(quietLogger()))

			got, report, err := p.Process(context.Background(), "post.html", tt.markup, tt.settings)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
			if fc.total() != tt.wantCalls {
				t.Errorf("expected %d checks, got %d", tt.wantCalls, fc.total())
			}
			if report == nil {
				t.Fatal("expected a report")
			}
			if report.Checked != tt.wantCalls {
				t.Errorf("report.Checked = %d, want %d", report.Checked, tt.wantCalls)
			}
		})
	}
}

func TestProcess_Memoization(t *testing.T) {
	t.Parallel()

	markup := `<ul>` +
		`<li><a href="` + missingURL + `">1</a></li>` +
		`<li><a href="` + okURL + `">2</a></li>` +
		`<li><a href="` + missingURL + `">3</a></li>` +
		`<li><object href="` + missingURL + `"></object></li>` +
		`</ul>`

	for _, concurrency := range []int{1, 4} {
		fc := newFakeChecker(table)
		p := NewProcessor(fc, WithLogger(quietLogger()))
		settings := settingsWith(func(o *config.Options) {
			o.Archive = false
			o.Classes = []string{"dead"}
			o.Concurrency = concurrency
		})

		got, report, err := p.Process(context.Background(), "", markup, settings)
		if err != nil {
			t.Fatalf("concurrency %d: unexpected error: %v", concurrency, err)
		}

		if fc.calls[missingURL] != 1 || fc.calls[okURL] != 1 {
			t.Errorf("concurrency %d: expected one check per url, got %v", concurrency, fc.calls)
		}
		if n := strings.Count(got, `class="dead"`); n != 3 {
			t.Errorf("concurrency %d: expected 3 annotated elements, got %d in %s", concurrency, n, got)
		}
		if len(report.Links) != 4 || report.Checked != 2 {
			t.Errorf("concurrency %d: expected 4 links and 2 checks, got %d and %d", concurrency, len(report.Links), report.Checked)
		}
		if len(report.DeadLinks()) != 3 {
			t.Errorf("concurrency %d: expected 3 dead links, got %d", concurrency, len(report.DeadLinks()))
		}
	}
}

func TestProcess_ClassesAppliedOnce(t *testing.T) {
	t.Parallel()

	fc := newFakeChecker(table)
	p := NewProcessor(fc, WithLogger(quietLogger()))
	settings := settingsWith(func(o *config.Options) {
		o.Archive = false
		o.Classes = []string{"dead", "broken"}
	})

	got, _, err := p.Process(context.Background(), "", `<a class="ext" href="`+missingURL+`">x</a>`, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<a class="ext dead broken" href="` + missingURL + `">x</a>`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestProcess_TableFragments(t *testing.T) {
	t.Parallel()

	settings := settingsWith(func(o *config.Options) {
		o.Archive = true
		o.Labels = false
		o.Classes = []string{"dead"}
	})
	archived := `<a href="https://web.archive.org/web/*/` + missingURL + `" class="dead">a</a>`

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "row fragment keeps its cells",
			markup: `<tr><td><a href="` + missingURL + `">a</a></td></tr>`,
			want:   `<tr><td>` + archived + `</td></tr>`,
		},
		{
			name:   "cell fragment keeps its cells",
			markup: `<td><a href="` + missingURL + `">a</a></td><td>b</td>`,
			want:   `<td>` + archived + `</td><td>b</td>`,
		},
		{
			name:   "table body fragment keeps its rows",
			markup: `<tbody><tr><td><a href="` + missingURL + `">a</a></td></tr></tbody>`,
			want:   `<tbody><tr><td>` + archived + `</td></tr></tbody>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewProcessor(newFakeChecker(table), WithLogger(quietLogger()))
			got, report, err := p.Process(context.Background(), "rows.html", tt.markup, settings)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
			if !report.Modified {
				t.Error("expected the document to be modified")
			}
		})
	}

	t.Run("markup the parser would drop is left unchanged", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		p := NewProcessor(newFakeChecker(table), WithLogger(logger))

		markup := `<p>intro</p><tr><td><a href="` + missingURL + `">a</a></td></tr>`
		got, report, err := p.Process(context.Background(), "rows.html", markup, settings)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != markup {
			t.Errorf("expected original markup, got %s", got)
		}
		if report.Modified {
			t.Error("expected the document not to be modified")
		}
		if len(report.DeadLinks()) != 1 {
			t.Errorf("expected the dead link to be reported, got %d", len(report.DeadLinks()))
		}
		if !strings.Contains(buf.String(), "rendering would drop elements") {
			t.Errorf("expected a warning, got %q", buf.String())
		}
	})
}

func TestProcess_Report(t *testing.T) {
	t.Parallel()

	fc := newFakeChecker(table)
	p := NewProcessor(fc, WithLogger(quietLogger()))
	markup := `<a href="` + okURL + `">a</a><a href="` + missingURL + `">b</a><a href="` + brokenURL + `">c</a><a href="` + slowURL + `">d</a>`

	_, report, err := p.Process(context.Background(), "post.html", markup, config.DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Source != "post.html" {
		t.Errorf("unexpected source %q", report.Source)
	}
	if report.Digest == "" {
		t.Error("expected a digest")
	}
	if !report.Modified {
		t.Error("expected the document to be modified")
	}

	want := map[model.Verdict]int{
		model.VerdictGood:        1,
		model.VerdictAccessError: 1,
		model.VerdictIgnored:     1,
		model.VerdictSkipped:     1,
	}
	for v, n := range want {
		if got := report.Count(v); got != n {
			t.Errorf("Count(%v) = %d, want %d", v, got, n)
		}
	}
}

func TestProcess_Logging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := NewProcessor(newFakeChecker(table), WithLogger(logger))
	markup := `<a href="` + okURL + `">a</a><a href="` + missingURL + `">b</a><a href="` + slowURL + `">c</a>`
	if _, _, err := p.Process(context.Background(), "post.html", markup, config.DefaultSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`level=DEBUG msg="good link"`,
		`level=WARN msg="dead link" source=post.html url=` + missingURL + ` status=404`,
		`level=WARN msg="skipping link" source=post.html url=` + slowURL,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output:\n%s", want, out)
		}
	}

	buf.Reset()
	disabled := config.DefaultSettings()
	disabled.Validation = false
	if _, _, err := p.Process(context.Background(), "", markup, disabled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "validation disabled") {
		t.Errorf("expected a debug message, got %q", buf.String())
	}
}

func TestProcess_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	markup := `<a href="` + missingURL + `">x</a>`
	fc := newFakeChecker(table)
	got, report, err := NewProcessor(fc, WithLogger(quietLogger())).Process(ctx, "", markup, config.DefaultSettings())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got != markup {
		t.Errorf("expected original markup, got %s", got)
	}
	if report.Error == "" {
		t.Error("expected the error in the report")
	}
	if fc.total() != 0 {
		t.Errorf("expected no checks, got %d", fc.total())
	}
}

// TestProcess_HTTP runs the processor against a real server.
func TestProcess_HTTP(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	hits := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()

		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusGone)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)

	markup := `<p>` +
		`<a href="` + srv.URL + `/ok">ok</a>` +
		`<a href="` + srv.URL + `/gone">gone</a>` +
		`<a href="` + srv.URL + `/gone">again</a>` +
		`<a href="` + srv.URL + `/slow">slow</a>` +
		`</p>`

	settings := settingsWith(func(o *config.Options) {
		o.Archive = false
		o.Labels = true
		o.TimeoutDurationMS = 200
	})

	p := NewProcessor(checker.New(srv.Client()), WithLogger(quietLogger()))
	got, _, err := p.Process(context.Background(), "", markup, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := strings.Count(got, `<span class="label label-warning">410</span>`); n != 2 {
		t.Errorf("expected 2 labels, got %d in %s", n, got)
	}
	if strings.Contains(got, "label-danger") {
		t.Errorf("timeout must not be labelled by default: %s", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits["/gone"] != 1 {
		t.Errorf("expected /gone to be requested once, got %d", hits["/gone"])
	}
}
