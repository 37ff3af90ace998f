// Package model defines the core data structures used throughout deadlinks.
//
// This package contains the following main types:
//   - Outcome: The result of checking one URL (availability, success, status code)
//   - Verdict: How the dispatch policy classified an Outcome
//   - DocumentReport: Every checked link of a single content document
//   - BuildReport: All document reports produced by one run
//
// Models live in their own package so that the checker, the dispatcher,
// the report writers and the history database can share them without
// import cycles. All of them serialize to JSON.
package model
