// Package deadlinks validates the remote links of a content document and
// marks the dead ones.
//
// For each document, Processor extracts the remote links, checks every
// distinct URL once, classifies the outcome and annotates the elements whose
// link is dead. The document is returned unchanged when validation is
// disabled or nothing had to be marked.
//
// Plugin adapts a Processor to a static-site build hook that hands over
// content objects one at a time.
package deadlinks
