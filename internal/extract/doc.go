// Package extract finds the remote links of a content document.
//
// A link is an <a> or <object> element whose href starts with "http".
// Links pointing into the site itself, recognized by the configured site
// URL prefix, are left out. Relative links, fragments, mailto: and other
// schemes never qualify.
package extract
