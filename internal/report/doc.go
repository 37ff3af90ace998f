// Package report writes the results of a deadlinks run.
//
// Three formats are available: SimpleWriter for terminals, JSONWriter for
// tooling and MarkdownWriter for sharing (CI job summaries, pull request
// comments). MultiWriter fans one report out to several writers.
package report
