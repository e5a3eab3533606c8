package pages

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	MaxTitleLength   = 120
	MaxAuthorLength  = 50
	MaxContentLength = 1 << 20
)

// allowedElements lists the formatting elements kept by SanitizeContent and the attributes each may carry.
var allowedElements = map[string][]string{
	"a":          {"href", "title", "target"},
	"b":          nil,
	"blockquote": nil,
	"br":         nil,
	"code":       nil,
	"em":         nil,
	"figcaption": nil,
	"figure":     nil,
	"h1":         nil,
	"h2":         nil,
	"h3":         nil,
	"h4":         nil,
	"hr":         nil,
	"i":          nil,
	"img":        {"src", "alt", "title", "width", "height"},
	"li":         nil,
	"ol":         nil,
	"p":          nil,
	"pre":        nil,
	"s":          nil,
	"strong":     nil,
	"u":          nil,
	"ul":         nil,
}

// droppedElements are removed together with everything inside them.
var droppedElements = map[string]struct{}{
	"embed":    {},
	"head":     {},
	"iframe":   {},
	"noscript": {},
	"object":   {},
	"script":   {},
	"style":    {},
	"template": {},
	"title":    {},
}

// SanitizeContent reduces rich-text markup to the allowlisted formatting elements.
// Unknown elements are unwrapped, event handlers and inline styles are dropped and
// links are limited to http(s), mailto and relative targets.
func SanitizeContent(raw string) (string, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(raw), parent)
	if err != nil {
		return "", eris.Wrap(err, "parsing page content")
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, node := range nodes {
		appendAllowed(root, node)
	}

	var builder strings.Builder
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&builder, child); err != nil {
			return "", eris.Wrap(err, "rendering sanitized content")
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// PlainText strips all markup and collapses whitespace.
func PlainText(raw string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	var builder strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(builder.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if _, drop := droppedElements[string(name)]; drop {
				skipDepth++
			}
			builder.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if _, drop := droppedElements[string(name)]; drop && skipDepth > 0 {
				skipDepth--
			}
			builder.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				builder.Write(tokenizer.Text())
			}
		}
	}
}

// Excerpt returns at most limit runes of the page's plain text.
func Excerpt(content string, limit int) string {
	return truncateRunes(PlainText(content), limit)
}

func appendAllowed(dst, src *html.Node) {
	switch src.Type {
	case html.TextNode:
		dst.AppendChild(&html.Node{Type: html.TextNode, Data: src.Data})
	case html.ElementNode:
		name := strings.ToLower(src.Data)
		if _, drop := droppedElements[name]; drop {
			return
		}

		allowedAttrs, ok := allowedElements[name]
		if !ok {
			for child := src.FirstChild; child != nil; child = child.NextSibling {
				appendAllowed(dst, child)
			}
			return
		}

		clean := &html.Node{
			Type:     html.ElementNode,
			Data:     name,
			DataAtom: atom.Lookup([]byte(name)),
			Attr:     filterAttributes(name, src.Attr, allowedAttrs),
		}
		for child := src.FirstChild; child != nil; child = child.NextSibling {
			appendAllowed(clean, child)
		}
		dst.AppendChild(clean)
	}
}

func filterAttributes(element string, attrs []html.Attribute, allowed []string) []html.Attribute {
	if len(allowed) == 0 {
		return nil
	}

	kept := make([]html.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(attr.Key)
		if attr.Namespace != "" || !containsString(allowed, key) {
			continue
		}

		value := strings.TrimSpace(attr.Val)
		switch key {
		case "href", "src":
			if !safeURL(value, key == "href") {
				continue
			}
		case "target":
			if value != "_blank" {
				continue
			}
		}
		kept = append(kept, html.Attribute{Key: key, Val: value})
	}

	if element == "a" {
		kept = append(kept, html.Attribute{Key: "rel", Val: "nofollow noopener noreferrer"})
	}

	return kept
}

func safeURL(value string, allowMailto bool) bool {
	lower := strings.ToLower(value)
	switch {
	case lower == "":
		return false
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return true
	case strings.HasPrefix(lower, "mailto:"):
		return allowMailto
	case strings.HasPrefix(lower, "//"):
		return false
	}

	colon := strings.IndexByte(lower, ':')
	if colon == -1 {
		return true
	}
	// A colon after the first path, query or fragment delimiter is not a scheme.
	delimiter := strings.IndexAny(lower, "/?#")
	return delimiter != -1 && delimiter < colon
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit]))
}
