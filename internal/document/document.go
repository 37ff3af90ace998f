package document

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoParent is returned by InsertAfter when the reference node is detached.
var ErrNoParent = errors.New("node has no parent")

// Document is a parsed content document.
type Document struct {
	root *html.Node
	full bool

	// dropped counts start tags the parser discarded.
	dropped int
}

// Parse parses markup. Input starting with a doctype or an <html> tag is
// parsed as a complete page; anything else is parsed as a fragment whose
// context element is chosen from its first start tag.
func Parse(markup string) (*Document, error) {
	if isFullDocument(markup) {
		root, err := html.Parse(strings.NewReader(markup))
		if err != nil {
			return nil, fmt.Errorf("failed to parse document: %w", err)
		}
		d := &Document{root: root, full: true}
		d.dropped = max(countStartTags(markup)-countElements(root), 0)
		return d, nil
	}

	container := fragmentContext(markup)
	nodes, err := html.ParseFragment(strings.NewReader(markup), container)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	d := &Document{root: container}
	d.dropped = max(countStartTags(markup)-(countElements(container)-1), 0)
	return d, nil
}

func isFullDocument(markup string) bool {
	head := strings.ToLower(strings.TrimLeft(markup, " \t\r\n\ufeff"))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// fragmentContexts maps a leading start tag to the element it is only
// valid inside of. Tags not listed parse in <body>.
var fragmentContexts = map[atom.Atom]atom.Atom{
	atom.Tr:       atom.Tbody,
	atom.Td:       atom.Tr,
	atom.Th:       atom.Tr,
	atom.Tbody:    atom.Table,
	atom.Thead:    atom.Table,
	atom.Tfoot:    atom.Table,
	atom.Caption:  atom.Table,
	atom.Colgroup: atom.Table,
	atom.Col:      atom.Colgroup,
}

// fragmentContext returns a detached container element for parsing markup.
func fragmentContext(markup string) *html.Node {
	ctx := atom.Body
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, _ := z.TagName()
		if c, ok := fragmentContexts[atom.Lookup(name)]; ok {
			ctx = c
		}
		break
	}
	return &html.Node{
		Type:     html.ElementNode,
		Data:     ctx.String(),
		DataAtom: ctx,
	}
}

// countStartTags counts the start tags in markup as the tokenizer sees them.
func countStartTags(markup string) int {
	n := 0
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return n
		case html.StartTagToken, html.SelfClosingTagToken:
			n++
		}
	}
}

func countElements(root *html.Node) int {
	n := 0
	walk(root, func(*html.Node) bool {
		n++
		return true
	})
	return n
}

// IsFragment reports whether the document was parsed as a fragment.
func (d *Document) IsFragment() bool {
	return !d.full
}

// Dropped returns the number of start tags in the markup that have no
// element in the parsed tree. Rendering such a document loses markup.
func (d *Document) Dropped() int {
	return d.dropped
}

// Render serializes the document. Fragments render their top-level nodes
// only, without the container.
func (d *Document) Render() (string, error) {
	var sb strings.Builder
	if d.full {
		if err := html.Render(&sb, d.root); err != nil {
			return "", fmt.Errorf("failed to render document: %w", err)
		}
		return sb.String(), nil
	}

	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("failed to render fragment: %w", err)
		}
	}
	return sb.String(), nil
}

// Elements yields every element node in document order.
func (d *Document) Elements() iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		if d.full {
			walk(d.root, yield)
			return
		}
		for c := d.root.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c, yield) {
				return
			}
		}
	}
}

func walk(n *html.Node, yield func(*html.Node) bool) bool {
	if n.Type == html.ElementNode && !yield(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// Attr returns the value of the attribute key and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets the attribute key, adding it when absent.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Classes returns the element's class list.
func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

// AddClass appends name to the element's class list. Existing classes keep
// their order and duplicates are kept.
func AddClass(n *html.Node, name string) {
	classes := append(Classes(n), name)
	SetAttr(n, "class", strings.Join(classes, " "))
}

// InsertAfter inserts n as the sibling immediately following ref.
func InsertAfter(ref, n *html.Node) error {
	if ref.Parent == nil {
		return ErrNoParent
	}
	ref.Parent.InsertBefore(n, ref.NextSibling)
	return nil
}

// NewElement builds a detached element with the given attributes and an
// optional text child.
func NewElement(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     attrs,
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			collect(k)
		}
	}
	collect(n)
	return sb.String()
}
