package fetch

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipElements are elements whose subtrees carry no readable content.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Aside:    true,
}

var headingPrefix = map[atom.Atom]string{
	atom.H1: "# ",
	atom.H2: "## ",
	atom.H3: "### ",
	atom.H4: "#### ",
	atom.H5: "##### ",
	atom.H6: "###### ",
}

// toMarkdown parses an HTML document and returns its title and the
// readable body rendered as light markdown: headings, list items, and
// blockquotes keep their markers, everything else becomes paragraphs.
func toMarkdown(raw string) (title, markdown string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", collapseBlankLines(stripAllTags(raw))
	}

	title = findTitle(doc)

	var b strings.Builder
	renderNode(doc, &b)
	return title, collapseBlankLines(b.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func renderNode(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipElements[n.DataAtom] {
			return
		}
		if prefix, ok := headingPrefix[n.DataAtom]; ok {
			writeBlock(b, prefix+inlineText(n))
			return
		}
		switch n.DataAtom {
		case atom.P:
			writeBlock(b, inlineText(n))
			return
		case atom.Li:
			writeBlock(b, "- "+inlineText(n))
			return
		case atom.Blockquote:
			writeBlock(b, "> "+inlineText(n))
			return
		case atom.Pre:
			writeBlock(b, "```\n"+strings.TrimRight(textContent(n), "\n")+"\n```")
			return
		case atom.A:
			text := inlineText(n)
			href := attrValue(n, "href")
			if text != "" && href != "" && !strings.HasPrefix(href, "#") {
				b.WriteString("[" + text + "](" + href + ") ")
				return
			}
		case atom.Br:
			b.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(c, b)
	}
}

// inlineText flattens an element's subtree to one line of text, keeping
// link targets in markdown form.
func inlineText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.DataAtom] {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			text := strings.Join(strings.Fields(textContent(n)), " ")
			href := attrValue(n, "href")
			if text != "" && href != "" && !strings.HasPrefix(href, "#") {
				b.WriteString("[" + text + "](" + href + ") ")
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func writeBlock(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(text)
}

// collapseBlankLines trims trailing spaces and squeezes runs of blank
// lines down to one.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	prevEmpty := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if prevEmpty {
				continue
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// stripAllTags is the fallback for unparseable documents.
func stripAllTags(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return b.String()
		}
		if tt == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
			b.WriteString(" ")
		}
	}
}
