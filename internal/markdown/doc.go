// Package markdown renders Markdown sources to HTML so that their links can
// be validated like any other content.
//
// Sources may start with a YAML or TOML front matter block. The block is
// removed before rendering; its title and deadlinks keys are returned to the
// caller.
package markdown
