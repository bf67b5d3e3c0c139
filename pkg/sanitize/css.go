package sanitize

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

// Properties a message may style itself with.  Anything able to escape the message pane
// (position, z-index, ...) is absent.
var allowedProperties = map[string]bool{
	"background-color": true,
	"border":           true,
	"border-bottom":    true,
	"border-collapse":  true,
	"border-color":     true,
	"border-left":      true,
	"border-radius":    true,
	"border-right":     true,
	"border-spacing":   true,
	"border-top":       true,
	"color":            true,
	"direction":        true,
	"display":          true,
	"font":             true,
	"font-family":      true,
	"font-size":        true,
	"font-style":       true,
	"font-weight":      true,
	"height":           true,
	"letter-spacing":   true,
	"line-height":      true,
	"list-style-type":  true,
	"margin":           true,
	"margin-bottom":    true,
	"margin-left":      true,
	"margin-right":     true,
	"margin-top":       true,
	"max-width":        true,
	"min-width":        true,
	"padding":          true,
	"padding-bottom":   true,
	"padding-left":     true,
	"padding-right":    true,
	"padding-top":      true,
	"text-align":       true,
	"text-decoration":  true,
	"text-indent":      true,
	"text-transform":   true,
	"vertical-align":   true,
	"white-space":      true,
	"width":            true,
	"word-break":       true,
}

// declaration is a single property: value pair being scanned.
type declaration struct {
	property string
	value    strings.Builder
	colon    bool
	rejected bool
}

func (d *declaration) String() string {
	return d.property + ":" + strings.TrimSpace(d.value.String())
}

// filterStyle keeps the allowed declarations of an inline style attribute.  Declarations
// referencing external resources or expressions are removed.  Unparseable input yields "".
func filterStyle(input string) string {
	var kept []string
	d := &declaration{}

	flush := func() {
		if d.property != "" && d.colon && !d.rejected && strings.TrimSpace(d.value.String()) != "" {
			kept = append(kept, d.String())
		}
		d = &declaration{}
	}

	s := scanner.New(input)
	for {
		t := s.Next()
		switch t.Type {
		case scanner.TokenEOF:
			flush()
			return strings.Join(kept, "; ")
		case scanner.TokenError:
			return ""
		case scanner.TokenS, scanner.TokenComment:
			if d.colon {
				d.value.WriteString(" ")
			}
		case scanner.TokenChar:
			switch {
			case t.Value == ";":
				flush()
			case t.Value == ":" && !d.colon:
				d.colon = true
			case !d.colon:
				d.rejected = true
			default:
				d.value.WriteString(t.Value)
			}
		case scanner.TokenIdent:
			if !d.colon {
				if d.property != "" {
					d.rejected = true
				}
				d.property = strings.ToLower(t.Value)
				d.rejected = d.rejected || !allowedProperties[d.property]
				continue
			}
			if strings.EqualFold(t.Value, "expression") {
				d.rejected = true
			}
			d.value.WriteString(t.Value)
		case scanner.TokenURI, scanner.TokenFunction, scanner.TokenAtKeyword:
			if strings.HasPrefix(strings.ToLower(t.Value), "url") ||
				strings.HasPrefix(strings.ToLower(t.Value), "expression") ||
				t.Type == scanner.TokenAtKeyword {
				d.rejected = true
			}
			d.value.WriteString(t.Value)
		default:
			if !d.colon {
				d.rejected = true
			}
			d.value.WriteString(t.Value)
		}
	}
}
