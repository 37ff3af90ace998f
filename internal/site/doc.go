// Package site finds and loads the content documents of a built site.
//
// HTML files are decoded to UTF-8 using the charset they declare. Markdown
// sources are rendered to HTML first; they are validated but never written
// back.
package site
