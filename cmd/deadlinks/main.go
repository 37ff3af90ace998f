// Package main provides the entry point for the deadlinks CLI.
//
// deadlinks finds external links in rendered site content that no longer
// resolve, marks them in the markup and points them at the web archive.
//
// Usage:
//
//	deadlinks check public/
//	deadlinks check --write --site-url https://example.com public/
//	deadlinks history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
