// Package database keeps a SQLite history of deadlinks runs.
//
// Each run is stored with its summary counts and the full JSON report,
// and every dead link found during the run is stored as a finding so a
// URL can be traced across builds. The history is only written and
// listed; link checking never consults it.
//
// The database is a single file (deadlinks.db) opened through
// modernc.org/sqlite, which needs no cgo. WAL mode is enabled by default.
package database
