package poml

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// hiddenHTML elements contribute no visible text.
var hiddenHTML = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Svg:      true,
}

// blockHTML elements start and end a paragraph of extracted text.
var blockHTML = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Body: true, atom.Dd: true, atom.Details: true, atom.Div: true, atom.Dl: true,
	atom.Dt: true, atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true,
	atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true,
	atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Summary: true, atom.Table: true,
	atom.Td: true, atom.Th: true, atom.Tr: true, atom.Ul: true,
}

// textCollector gathers visible text as paragraphs of whitespace-collapsed
// lines.
type textCollector struct {
	paragraphs []string
	lines      []string
	cur        strings.Builder
}

func (c *textCollector) endLine() {
	if line := strings.Join(strings.Fields(c.cur.String()), " "); line != "" {
		c.lines = append(c.lines, line)
	}
	c.cur.Reset()
}

func (c *textCollector) endParagraph() {
	c.endLine()
	if len(c.lines) > 0 {
		c.paragraphs = append(c.paragraphs, strings.Join(c.lines, "\n"))
		c.lines = nil
	}
}

func (c *textCollector) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		c.cur.WriteString(n.Data)
		return
	case html.ElementNode:
		if hiddenHTML[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			c.endLine()
			return
		}
	case html.DocumentNode:
	default:
		return
	}
	block := blockHTML[n.DataAtom]
	if block {
		c.endParagraph()
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.walk(child)
	}
	if block {
		c.endParagraph()
	}
}

func (c *textCollector) text() string {
	c.endParagraph()
	return strings.Join(c.paragraphs, "\n\n")
}

// htmlToText returns the visible text of an HTML document with block
// elements separated by blank lines.
func htmlToText(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body)
	}
	var c textCollector
	c.walk(doc)
	return c.text()
}

// selectHTMLText returns the visible text of the outermost elements matching
// selector, a tag name or #id. Matches are separated by blank lines.
func selectHTMLText(body, selector string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	match := func(n *html.Node) bool {
		if id, ok := strings.CutPrefix(selector, "#"); ok {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == "id" && a.Val == id {
					return true
				}
			}
			return false
		}
		return strings.EqualFold(n.Data, selector)
	}
	var parts []string
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if hiddenHTML[n.DataAtom] && !match(n) {
				return
			}
			if match(n) {
				var c textCollector
				c.walk(n)
				if text := c.text(); text != "" {
					parts = append(parts, text)
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			find(child)
		}
	}
	find(doc)
	return strings.Join(parts, "\n\n")
}
