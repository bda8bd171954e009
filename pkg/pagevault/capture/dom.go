package capture

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// walk visits every node in the tree rooted at n in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// elementsByAtom collects all elements with the given tag atom.
func elementsByAtom(root *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
	})
	return out
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// setAttr sets or adds the named attribute.
func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// textContent concatenates all text nodes under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

// setTextContent replaces all children of n with a single text node.
func setTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// cloneTree deep-copies a node tree. Parent/sibling links of the copy are
// rebuilt; the original is left untouched.
func cloneTree(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]html.Attribute, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneTree(c))
	}
	return clone
}

// documentHead finds the <head> element, or nil.
func documentHead(doc *html.Node) *html.Node {
	heads := elementsByAtom(doc, atom.Head)
	if len(heads) == 0 {
		return nil
	}
	return heads[0]
}

// documentTitle returns the text of the first <title> element.
func documentTitle(doc *html.Node) string {
	titles := elementsByAtom(doc, atom.Title)
	if len(titles) == 0 {
		return ""
	}
	return strings.TrimSpace(textContent(titles[0]))
}

// removeDoctypes strips doctype nodes so serialization can prepend a
// single canonical declaration.
func removeDoctypes(doc *html.Node) {
	for c := doc.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.DoctypeNode {
			doc.RemoveChild(c)
		}
		c = next
	}
}

// newStyleElement builds a <style> element containing css.
func newStyleElement(css string) *html.Node {
	style := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     "style",
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	return style
}
