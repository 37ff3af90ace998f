// Package pipeline runs content documents through a sequence of steps.
//
// A typical run loads a page from disk, validates its links, writes the
// annotated markup back and records the dead links in the history
// database. Each stage is a Step operating on a Job. BatchProcessor runs
// one Pipeline per document with bounded concurrency using errgroup.
//
// Every document is validated with its own check cache, so a URL that
// appears in several documents is requested once per document.
package pipeline
