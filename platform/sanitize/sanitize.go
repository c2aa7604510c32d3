// Package sanitize provides text sanitization utilities to prevent XSS attacks.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements whose text content is dropped together with the element.
var dropContent = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"noscript": true,
	"template": true,
}

var allowedTags = map[string]bool{
	"p": true, "br": true, "hr": true, "div": true, "span": true,
	"strong": true, "b": true, "em": true, "i": true, "u": true, "small": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "a": true, "img": true,
	"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true, "th": true, "td": true,
}

var allowedAttrs = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true, "target": true,
	"width": true, "height": true, "align": true, "colspan": true, "rowspan": true, "class": true,
}

var voidTags = map[string]bool{"br": true, "hr": true, "img": true}

// StripHTML removes all markup from s and returns the plain text content.
// Content of script and style elements is discarded entirely.
func StripHTML(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if dropContent[string(name)] {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if dropContent[string(name)] && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// Text sanitizes a string for safe text storage by stripping markup and
// entity-escaping what remains. Use for user-provided text fields.
func Text(s string) string {
	return html.EscapeString(StripHTML(strings.TrimSpace(s)))
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// HTML keeps a constrained set of formatting tags and attributes. Event
// handler attributes are removed, javascript: links become "#", and data:
// URIs are only kept on src when they carry an image.
func HTML(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(strings.TrimSpace(s)))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if dropContent[tok.Data] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 || !allowedTags[tok.Data] {
				continue
			}
			writeStartTag(&b, tok)
		case html.EndTagToken:
			tok := z.Token()
			if dropContent[tok.Data] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 || !allowedTags[tok.Data] || voidTags[tok.Data] {
				continue
			}
			b.WriteString("</" + tok.Data + ">")
		case html.TextToken:
			if skip == 0 {
				b.WriteString(html.EscapeString(string(z.Text())))
			}
		}
	}
}

func writeStartTag(b *strings.Builder, tok html.Token) {
	b.WriteString("<" + tok.Data)
	for _, attr := range tok.Attr {
		key := strings.ToLower(attr.Key)
		if strings.HasPrefix(key, "on") || !allowedAttrs[key] {
			continue
		}
		val := attr.Val
		switch key {
		case "href":
			if isScheme(val, "javascript:") || isScheme(val, "vbscript:") {
				val = "#"
			}
		case "src":
			if isScheme(val, "javascript:") {
				continue
			}
			if isScheme(val, "data:") && !isScheme(val, "data:image/") {
				continue
			}
		}
		b.WriteString(" " + key + `="` + html.EscapeString(val) + `"`)
	}
	if voidTags[tok.Data] {
		b.WriteString(" />")
		return
	}
	b.WriteString(">")
}

// isScheme compares a URL prefix ignoring case and embedded whitespace or
// control characters, which browsers also ignore.
func isScheme(val, scheme string) bool {
	var b strings.Builder
	for _, r := range val {
		if r <= ' ' {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= len(scheme) {
			break
		}
	}
	return strings.EqualFold(b.String(), scheme)
}
