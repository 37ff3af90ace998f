package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/deadlinks/internal/config"
	"github.com/nao1215/deadlinks/internal/report"
)

// linkServer answers /gone with 404 and everything else with 200.
func linkServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path == "/gone" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

// writeSite creates a content directory with one page linking to srv.
func writeSite(t *testing.T, srv *httptest.Server) (dir, page string) {
	t.Helper()

	dir = t.TempDir()
	page = filepath.Join(dir, "index.html")
	body := `<p><a href="` + srv.URL + `/ok">ok</a> <a href="` + srv.URL + `/gone">gone</a> <a href="` + srv.URL + `/gone">again</a></p>`
	if err := os.WriteFile(page, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir, page
}

// writeConfig writes a configuration file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "deadlinks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCLI executes the root command and returns stdout and the error.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	t.Log(stderr.String())
	return stdout.String(), err
}

func TestCheckCmd(t *testing.T) {
	t.Parallel()

	t.Run("reports dead links without modifying files", func(t *testing.T) {
		t.Parallel()

		srv, requests := linkServer(t)
		dir, page := writeSite(t, srv)
		before, _ := os.ReadFile(page)

		out, err := runCLI(t, "check", "-q", "--config", writeConfig(t, "{}"), dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "[x] "+srv.URL+"/gone (404 Not Found)") {
			t.Errorf("expected dead link in report:\n%s", out)
		}
		if requests.Load() != 2 {
			t.Errorf("expected one request per distinct URL, got %d", requests.Load())
		}

		after, _ := os.ReadFile(page)
		if !bytes.Equal(before, after) {
			t.Error("page changed without --write")
		}
	})

	t.Run("write rewrites dead links in place", func(t *testing.T) {
		t.Parallel()

		srv, _ := linkServer(t)
		dir, page := writeSite(t, srv)
		cfg := writeConfig(t, "options:\n  labels: true\n  classes: dead\n")

		if _, err := runCLI(t, "check", "-q", "--config", cfg, "--write", dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(page)
		if err != nil {
			t.Fatal(err)
		}
		content := string(data)
		for _, want := range []string{
			`href="https://web.archive.org/web/*/` + srv.URL + `/gone"`,
			`class="dead"`,
			`<span class="label label-warning">404</span>`,
			`href="` + srv.URL + `/ok"`,
		} {
			if !strings.Contains(content, want) {
				t.Errorf("expected %q in rewritten page:\n%s", want, content)
			}
		}
	})

	t.Run("site url excludes links", func(t *testing.T) {
		t.Parallel()

		srv, requests := linkServer(t)
		dir, _ := writeSite(t, srv)

		if _, err := runCLI(t, "check", "-q", "--config", writeConfig(t, "{}"), "--site-url", srv.URL, "--fail-on-dead", dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if requests.Load() != 0 {
			t.Errorf("expected no requests, got %d", requests.Load())
		}
	})

	t.Run("config without validation key checks links", func(t *testing.T) {
		t.Parallel()

		srv, requests := linkServer(t)
		dir, _ := writeSite(t, srv)

		_, err := runCLI(t, "check", "-q", "--config", writeConfig(t, "options:\n  labels: true\n"), "--fail-on-dead", dir)
		if !errors.Is(err, ErrDeadLinksFound) {
			t.Errorf("expected ErrDeadLinksFound, got %v", err)
		}
		if requests.Load() == 0 {
			t.Error("expected links to be checked")
		}
	})

	t.Run("help describes the validation default", func(t *testing.T) {
		t.Parallel()

		out, err := runCLI(t, "check", "--help")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, `Validation is on unless the configuration file sets "validation: false"`) {
			t.Errorf("expected the validation default in help, got %s", out)
		}
	})

	t.Run("disabled validation checks nothing", func(t *testing.T) {
		t.Parallel()

		srv, requests := linkServer(t)
		dir, _ := writeSite(t, srv)

		if _, err := runCLI(t, "check", "-q", "--config", writeConfig(t, "validation: false\n"), "--fail-on-dead", dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if requests.Load() != 0 {
			t.Errorf("expected no requests, got %d", requests.Load())
		}
	})

	t.Run("fail on dead", func(t *testing.T) {
		t.Parallel()

		srv, _ := linkServer(t)
		dir, _ := writeSite(t, srv)

		_, err := runCLI(t, "check", "-q", "--config", writeConfig(t, "{}"), "--fail-on-dead", dir)
		if !errors.Is(err, ErrDeadLinksFound) {
			t.Errorf("expected ErrDeadLinksFound, got %v", err)
		}
	})

	t.Run("json report to file", func(t *testing.T) {
		t.Parallel()

		srv, _ := linkServer(t)
		dir, _ := writeSite(t, srv)
		output := filepath.Join(t.TempDir(), "reports", "deadlinks.json")

		out, err := runCLI(t, "check", "-q", "--config", writeConfig(t, "{}"), "--json", "-o", output, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "" {
			t.Errorf("expected no stdout output in quiet mode, got %q", out)
		}

		data, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		var got report.JSONReport
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Summary.Documents != 1 || got.Summary.Dead != 2 || got.Summary.Good != 1 || got.Summary.Checked != 2 {
			t.Errorf("unexpected summary %+v", got.Summary)
		}
	})

	t.Run("report file with summary on stdout", func(t *testing.T) {
		t.Parallel()

		srv, _ := linkServer(t)
		dir, _ := writeSite(t, srv)
		output := filepath.Join(t.TempDir(), "deadlinks.md")

		out, err := runCLI(t, "check", "--config", writeConfig(t, "{}"), "--markdown", "-o", output, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "DEADLINKS REPORT") {
			t.Errorf("expected the text summary on stdout, got %q", out)
		}

		data, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		if !strings.Contains(string(data), "# Dead Links Report") {
			t.Errorf("expected a markdown report, got %s", data)
		}
	})

	t.Run("json and markdown are exclusive", func(t *testing.T) {
		t.Parallel()

		if _, err := runCLI(t, "check", "--json", "--markdown", t.TempDir()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		t.Parallel()

		_, err := runCLI(t, "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"), t.TempDir())
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("no documents", func(t *testing.T) {
		t.Parallel()

		_, err := runCLI(t, "check", "-q", "--config", writeConfig(t, "{}"), t.TempDir())
		if !errors.Is(err, ErrNoDocuments) {
			t.Errorf("expected ErrNoDocuments, got %v", err)
		}
	})

	t.Run("invalid timeout", func(t *testing.T) {
		t.Parallel()

		_, err := runCLI(t, "check", "--config", writeConfig(t, "{}"), "--timeout", "0s", t.TempDir())
		if !errors.Is(err, config.ErrInvalidTimeout) {
			t.Errorf("expected ErrInvalidTimeout, got %v", err)
		}
	})
}

func TestBuildCheckConfig(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	cfgPath := writeConfig(t, `
site_url: https://blog.example.com
options:
  labels: true
  archive: false
  timeout_duration_ms: 500
  classes: [dead]
`)

	t.Run("file values without flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewCheckCmd()
		if err := cmd.ParseFlags([]string{"--config", cfgPath}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCheckConfig(cmd, nil, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s := cfg.Settings
		if !s.Validation || s.SiteURL != "https://blog.example.com" {
			t.Errorf("unexpected settings %+v", s)
		}
		if !s.Options.Labels || s.Options.Archive || s.Options.TimeoutDurationMS != 500 {
			t.Errorf("unexpected options %+v", s.Options)
		}
		if len(cfg.Paths) != 1 || cfg.Paths[0] != "." {
			t.Errorf("expected default path, got %v", cfg.Paths)
		}
		if cfg.HistoryDir != config.XDGDataDir() {
			t.Errorf("unexpected history dir %q", cfg.HistoryDir)
		}
	})

	t.Run("explicit flags override the file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCheckCmd()
		err := cmd.ParseFlags([]string{
			"--config", cfgPath,
			"--timeout", "2.5s",
			"--archive",
			"--class", "a", "--class", "b",
			"--site-url", "https://other.example.com",
			"--timeout-is-error",
			"--concurrency", "3",
			"-j", "2",
		})
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCheckConfig(cmd, []string{"public"}, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		o := cfg.Settings.Options
		if o.TimeoutDurationMS != 2500 || !o.Archive || !o.TimeoutIsError || o.Concurrency != 3 {
			t.Errorf("flags not applied: %+v", o)
		}
		if len(o.Classes) != 2 || o.Classes[0] != "a" || o.Classes[1] != "b" {
			t.Errorf("unexpected classes %v", o.Classes)
		}
		if !o.Labels {
			t.Error("unset flag must keep the file value")
		}
		if cfg.Settings.SiteURL != "https://other.example.com" || cfg.Jobs != 2 || cfg.Paths[0] != "public" {
			t.Errorf("unexpected config %+v", cfg)
		}
	})

	t.Run("mistyped options keep defaults", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "options:\n  labels: \"yes\"\n  timeout_duration_ms: 300\n")
		cmd := NewCheckCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCheckConfig(cmd, nil, logger)
		if err != nil {
			t.Fatalf("mistyped options should only warn: %v", err)
		}
		if cfg.Settings.Options.Labels != config.DefaultLabels || cfg.Settings.Options.TimeoutDurationMS != 300 {
			t.Errorf("unexpected options %+v", cfg.Settings.Options)
		}
	})
}
