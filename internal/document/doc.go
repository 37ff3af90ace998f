// Package document wraps golang.org/x/net/html trees for in-place editing.
//
// Content documents are usually fragments (the body of a post) rather than
// complete HTML pages. Parse keeps fragments under an owned container node
// so that every element, including top-level ones, has a parent and can
// receive a following sibling.
package document
