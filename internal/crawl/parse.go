package crawl

import (
	"encoding/xml"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the text content of one fetched document.
type Page struct {
	URL   string
	Title string
	Text  string
	Links []string
	Code  []CodeBlock
}

// CodeBlock is a <pre> block found on a page.
type CodeBlock struct {
	Language string
	Content  string
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Iframe:   true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true, atom.Main: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Table: true, atom.Tr: true,
	atom.Blockquote: true, atom.Br: true, atom.Hr: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Aside: true,
}

var headingLevel = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// ParseHTML extracts the title, readable text, same-scheme links and code
// blocks from an HTML document. Headings become markdown headings and <pre>
// blocks become fenced code.
func ParseHTML(r io.Reader, base *url.URL) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, err
	}
	p := &pageBuilder{base: base, seen: make(map[string]struct{})}
	p.walk(doc)
	page := Page{
		Title: strings.TrimSpace(collapseSpace(p.title.String())),
		Text:  tidy(p.text.String()),
		Links: p.links,
		Code:  p.code,
	}
	if base != nil {
		page.URL = base.String()
	}
	return page, nil
}

type pageBuilder struct {
	base  *url.URL
	title strings.Builder
	text  strings.Builder
	links []string
	seen  map[string]struct{}
	code  []CodeBlock
}

func (p *pageBuilder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		p.text.WriteString(collapseSpace(n.Data))
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
		switch n.DataAtom {
		case atom.Title:
			p.title.WriteString(textContent(n))
			return
		case atom.Pre:
			p.pre(n)
			return
		case atom.A:
			p.link(n)
		}
		if level, ok := headingLevel[n.DataAtom]; ok {
			p.text.WriteString("\n\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(collapseSpace(textContent(n))) + "\n\n")
			return
		}
	}

	block := n.Type == html.ElementNode && blocks[n.DataAtom]
	if block {
		p.text.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
	if block {
		p.text.WriteString("\n")
	}
}

func (p *pageBuilder) pre(n *html.Node) {
	content := strings.Trim(textContent(n), "\n")
	if strings.TrimSpace(content) == "" {
		return
	}
	lang := languageOf(n)
	for c := n.FirstChild; c != nil && lang == ""; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			lang = languageOf(c)
		}
	}
	p.code = append(p.code, CodeBlock{Language: lang, Content: content})
	p.text.WriteString("\n\n```" + lang + "\n" + content + "\n```\n\n")
}

func (p *pageBuilder) link(n *html.Node) {
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" || strings.HasPrefix(href, "#") || p.base == nil {
		return
	}
	ref, err := url.Parse(href)
	if err != nil {
		return
	}
	resolved := p.base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return
	}
	resolved.Fragment = ""
	key := resolved.String()
	if _, ok := p.seen[key]; ok {
		return
	}
	p.seen[key] = struct{}{}
	p.links = append(p.links, key)
}

func languageOf(n *html.Node) string {
	for _, class := range strings.Fields(attr(n, "class")) {
		for _, prefix := range []string{"language-", "lang-"} {
			if strings.HasPrefix(class, prefix) {
				return strings.TrimPrefix(class, prefix)
			}
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	lead := s[0] == ' ' || s[0] == '\n' || s[0] == '\t' || s[0] == '\r'
	last := s[len(s)-1]
	trail := last == ' ' || last == '\n' || last == '\t' || last == '\r'
	out := strings.Join(strings.Fields(s), " ")
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

// tidy trims every line and collapses runs of blank lines outside code
// fences.
func tidy(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	blank := 0
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			line = strings.TrimSpace(line)
		} else if !inFence {
			line = strings.TrimSpace(line)
		}
		if line == "" && !inFence {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

type sitemap struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// ParseSitemap returns the page locations listed in a sitemap document.
func ParseSitemap(r io.Reader) ([]string, error) {
	var sm sitemap
	if err := xml.NewDecoder(r).Decode(&sm); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(sm.URLs))
	for _, u := range sm.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}
