// Package sanitize prepares message bodies for display in a browser.  Bodies arrive from the
// remote mail store untrusted; they may be plain text or HTML.
package sanitize

import (
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
)

var (
	anyStyle = regexp.MustCompile(".*")

	// Style attributes are filtered by rewriteStyles before the policy runs.
	policy = bluemonday.UGCPolicy().
		AllowElements("center", "font").
		AllowAttrs("color", "face").OnElements("font").
		AllowAttrs("style").Matching(anyStyle).Globally().
		RequireNoReferrerOnLinks(true).
		AddTargetBlankToFullyQualifiedLinks(true)

	markup = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|table|span|a|b|i|em|strong|font|center|img|ul|ol|h[1-6])[\s/>]`)
	links  = regexp.MustCompile(`https?://[^\s<>"]+[^\s<>".,;:!?)\]]`)
)

// Body renders a message body as safe HTML.  Bodies that look like markup are sanitized;
// anything else is treated as plain text.
func Body(body string) (string, error) {
	if LooksHTML(body) {
		return HTML(body)
	}
	return Text(body), nil
}

// LooksHTML reports whether body contains common HTML elements.
func LooksHTML(body string) bool {
	return markup.MatchString(body)
}

// HTML sanitizes the provided html, keeping the inline styles a message display can tolerate.
func HTML(s string) (string, error) {
	var b strings.Builder
	if err := rewriteStyles(&b, strings.NewReader(s)); err != nil {
		return "", err
	}
	return policy.Sanitize(b.String()), nil
}

// Text escapes a plain text body, preserves its line breaks, and links bare URLs.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	last := 0
	for _, loc := range links.FindAllStringIndex(s, -1) {
		b.WriteString(html.EscapeString(s[last:loc[0]]))
		u := html.EscapeString(s[loc[0]:loc[1]])
		b.WriteString(`<a href="` + u + `" rel="nofollow noreferrer" target="_blank">` + u + `</a>`)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(s[last:]))

	return strings.ReplaceAll(b.String(), "\n", "<br>\n")
}

// rewriteStyles copies the token stream from r to w, replacing every style attribute with its
// filtered form.  Style attributes left empty are dropped.
func rewriteStyles(w io.StringWriter, r io.Reader) error {
	z := nethtml.NewTokenizer(r)
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return err
			}
			return nil
		}
		if tt != nethtml.StartTagToken && tt != nethtml.SelfClosingTagToken {
			if _, err := w.WriteString(string(z.Raw())); err != nil {
				return err
			}
			continue
		}

		tok := z.Token()
		attrs := tok.Attr[:0]
		for _, a := range tok.Attr {
			if strings.EqualFold(a.Key, "style") {
				a.Key = "style"
				if a.Val = filterStyle(a.Val); a.Val == "" {
					continue
				}
			}
			attrs = append(attrs, a)
		}
		tok.Attr = attrs

		if _, err := w.WriteString(tok.String()); err != nil {
			return err
		}
	}
}
