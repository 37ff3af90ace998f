// Package annotate marks dead link elements in place.
//
// An Annotator appends the configured classes to a flagged element and may
// insert a label badge as its next sibling. With archiving enabled the href
// is pointed at the web archive lookup for the original URL.
//
//	a := annotate.New(opts)
//	err := a.Annotate(el, annotate.AccessError(404))
package annotate
