// Package checker requests remote links and memoizes the outcome per document.
//
// Check issues a single GET per call and never returns an error: a response
// of any status, a timeout and any other failure each map to a distinct
// model.Outcome. Cache guarantees that a URL is requested at most once while
// the cache lives, which is for the duration of one document.
package checker
