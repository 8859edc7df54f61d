package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func classes(n *html.Node) []string {
	return strings.Fields(attrValue(n, "class"))
}

// classContains reports whether any class token of n contains the keyword
// as a substring, case-insensitively. Chat UIs ship hashed/prefixed class
// names, so exact matching is useless.
func classContains(n *html.Node, keyword string) bool {
	for _, c := range classes(n) {
		if strings.Contains(strings.ToLower(c), keyword) {
			return true
		}
	}
	return false
}

// walk visits the element nodes under root in document order. Returning
// false from visit skips the node's subtree.
func walk(root *html.Node, visit func(*html.Node) bool) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		descend := true
		if c.Type == html.ElementNode {
			descend = visit(c)
		}
		if descend {
			walk(c, visit)
		}
	}
}

// findAll collects element nodes matching pred in document order,
// without descending into a match (the outermost match wins).
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if pred(n) {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func contains(root *html.Node, pred func(*html.Node) bool) bool {
	found := false
	walk(root, func(n *html.Node) bool {
		if found {
			return false
		}
		if pred(n) {
			found = true
			return false
		}
		return true
	})
	return found
}

var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "li": {}, "tr": {}, "br": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"blockquote": {}, "section": {}, "article": {},
}

// textContent renders the visible text of n. Code blocks (<pre>) are
// emitted verbatim inside markdown fences so downstream distillation can
// keep them intact; block elements produce line breaks.
func textContent(n *html.Node) string {
	var b strings.Builder
	renderText(n, &b)
	return normalizeText(b.String())
}

func renderText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "svg", "button":
			return
		case "br":
			b.WriteString("\n")
			return
		case "pre":
			b.WriteString("\n```")
			if lang := codeLanguage(n); lang != "" {
				b.WriteString(lang)
			}
			b.WriteString("\n")
			b.WriteString(strings.Trim(rawText(n), "\n"))
			b.WriteString("\n```\n")
			return
		case "img":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, b)
	}
	if n.Type == html.ElementNode {
		if _, ok := blockTags[n.Data]; ok {
			b.WriteString("\n")
		}
	}
}

// rawText is textContent without any formatting, used inside <pre>.
func rawText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

// codeLanguage pulls the language hint from a language-* class on the
// <pre> or a nested <code>.
func codeLanguage(pre *html.Node) string {
	nodes := append([]*html.Node{pre}, findAll(pre, func(n *html.Node) bool { return n.Data == "code" })...)
	for _, n := range nodes {
		for _, c := range classes(n) {
			if lang, ok := strings.CutPrefix(c, "language-"); ok {
				return lang
			}
		}
	}
	return ""
}

// normalizeText collapses runs of spaces and blank lines left behind by
// markup without touching fenced code block content.
func normalizeText(s string) string {
	var out []string
	inFence := false
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			out = append(out, strings.TrimSpace(line))
			blank = 0
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n ")
}

func hasCodeBlock(n *html.Node) bool {
	return contains(n, func(c *html.Node) bool { return c.Data == "pre" || c.Data == "code" })
}

func hasImage(n *html.Node) bool {
	return contains(n, func(c *html.Node) bool { return c.Data == "img" })
}
