// Package sanitize strips active content from note HTML.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dropped elements are removed together with everything inside them
var dropped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Frame:    true,
	atom.Frameset: true,
}

var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"formaction": true,
	"xlink:href": true,
}

// HTML returns s with scripts, event handler attributes and javascript: URLs removed.
// Text and permitted markup pass through unchanged apart from entity normalisation.
func HTML(s string) string {
	if s == "" {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or malformed tail; keep what was parsed
			return b.String()
		}

		tok := z.Token()
		switch tt {
		case html.StartTagToken:
			if dropped[tok.DataAtom] {
				skipDepth++
				continue
			}
		case html.EndTagToken:
			if dropped[tok.DataAtom] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
		case html.SelfClosingTagToken:
			if dropped[tok.DataAtom] {
				continue
			}
		case html.CommentToken, html.DoctypeToken:
			continue
		}

		if skipDepth > 0 {
			continue
		}

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok.Attr = cleanAttrs(tok.Attr)
		}
		b.WriteString(tok.String())
	}
}

func cleanAttrs(attrs []html.Attribute) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if urlAttrs[key] && isScriptURL(a.Val) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func isScriptURL(v string) bool {
	v = strings.ToLower(strings.Join(strings.Fields(v), ""))
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "vbscript:") || strings.HasPrefix(v, "data:text/html")
}
