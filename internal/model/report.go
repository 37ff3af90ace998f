package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// LinkResult is one checked link occurrence within a document.
// A URL referenced by several elements appears once per element, all of
// them sharing the same cached Outcome.
type LinkResult struct {
	// URL is the original link target as written in the document.
	URL string `json:"url"`

	// Tag is the element name ("a" or "object").
	Tag string `json:"tag"`

	// Outcome is the (possibly cached) result of checking URL.
	Outcome Outcome `json:"outcome"`

	// Verdict is how the dispatch policy classified Outcome.
	Verdict Verdict `json:"verdict"`
}

// DocumentReport holds the result of processing a single content document.
type DocumentReport struct {
	// Source identifies the document (usually a file path).
	Source string `json:"source"`

	// Digest is the SHA3-256 of the markup before it was modified.
	Digest string `json:"digest,omitempty"`

	// Disabled is true when link validation was turned off and the
	// document was passed through unchanged.
	Disabled bool `json:"disabled,omitempty"`

	// Links contains one entry per qualifying link element, in document order.
	Links []LinkResult `json:"links"`

	// Checked is the number of distinct URLs actually requested.
	Checked int `json:"checked"`

	// Modified is true when at least one element was annotated.
	Modified bool `json:"modified"`

	// CheckedAt is when processing started.
	CheckedAt time.Time `json:"checked_at"`

	// Elapsed is the wall-clock time spent on the document.
	Elapsed time.Duration `json:"elapsed"`

	// Error is set when the document could not be processed at all,
	// e.g. unreadable input. Link failures never end up here.
	Error string `json:"error,omitempty"`
}

// NewDocumentReport creates an empty report for the given source.
func NewDocumentReport(source string) *DocumentReport {
	return &DocumentReport{
		Source:    source,
		Links:     make([]LinkResult, 0),
		CheckedAt: time.Now(),
	}
}

// Add appends a link result and tracks whether the document was modified.
func (r *DocumentReport) Add(result LinkResult) {
	r.Links = append(r.Links, result)
	if result.Verdict.IsDead() {
		r.Modified = true
	}
}

// ComputeDigest stores the SHA3-256 hex digest of the original markup.
func (r *DocumentReport) ComputeDigest(markup []byte) {
	sum := sha3.Sum256(markup)
	r.Digest = hex.EncodeToString(sum[:])
}

// DeadLinks returns the results whose verdict is a dead link.
func (r *DocumentReport) DeadLinks() []LinkResult {
	dead := make([]LinkResult, 0)
	for _, l := range r.Links {
		if l.Verdict.IsDead() {
			dead = append(dead, l)
		}
	}
	return dead
}

// Count returns the number of link results with the given verdict.
func (r *DocumentReport) Count(v Verdict) int {
	n := 0
	for _, l := range r.Links {
		if l.Verdict == v {
			n++
		}
	}
	return n
}

// Summary holds aggregate counts over one or more documents.
type Summary struct {
	Documents int `json:"documents"`
	Failed    int `json:"failed"`
	Links     int `json:"links"`
	Checked   int `json:"checked"`
	Good      int `json:"good"`
	Ignored   int `json:"ignored"`
	Skipped   int `json:"skipped"`
	Dead      int `json:"dead"`
}

// BuildReport aggregates the document reports of one run.
type BuildReport struct {
	// SiteURL is the base URL used to exclude same-site links.
	SiteURL string `json:"site_url,omitempty"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished.
	FinishedAt time.Time `json:"finished_at"`

	// Documents holds one report per processed document, in input order.
	Documents []*DocumentReport `json:"documents"`
}

// NewBuildReport creates an empty BuildReport starting now.
func NewBuildReport(siteURL string) *BuildReport {
	return &BuildReport{
		SiteURL:   siteURL,
		StartedAt: time.Now(),
		Documents: make([]*DocumentReport, 0),
	}
}

// AddDocument appends a document report. Nil reports are ignored.
func (b *BuildReport) AddDocument(r *DocumentReport) {
	if r == nil {
		return
	}
	b.Documents = append(b.Documents, r)
}

// Finish records the end time of the run.
func (b *BuildReport) Finish() {
	b.FinishedAt = time.Now()
}

// Summary counts documents, links and verdicts over the whole run.
func (b *BuildReport) Summary() Summary {
	s := Summary{Documents: len(b.Documents)}
	for _, d := range b.Documents {
		if d.Error != "" {
			s.Failed++
		}
		s.Links += len(d.Links)
		s.Checked += d.Checked
		for _, l := range d.Links {
			switch {
			case l.Verdict == VerdictGood:
				s.Good++
			case l.Verdict == VerdictIgnored:
				s.Ignored++
			case l.Verdict == VerdictSkipped:
				s.Skipped++
			case l.Verdict.IsDead():
				s.Dead++
			}
		}
	}
	return s
}

// HasDeadLinks reports whether any document contains a dead link.
func (b *BuildReport) HasDeadLinks() bool {
	for _, d := range b.Documents {
		for _, l := range d.Links {
			if l.Verdict.IsDead() {
				return true
			}
		}
	}
	return false
}
