// browser/dom/style.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

type declaration struct{ prop, value string }

func parseStyle(s string) []declaration {
	var out []declaration
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		out = append(out, declaration{prop, strings.TrimSpace(value)})
	}
	return out
}

// StyleProperty reads one property from the inline style attribute.
func StyleProperty(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	for _, d := range parseStyle(Attr(n, "style")) {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

// SetStyleProperty sets one inline style property. An empty value removes
// it, and the attribute goes away once no declarations are left.
func SetStyleProperty(n *html.Node, prop, value string) {
	prop = strings.ToLower(strings.TrimSpace(prop))
	decls := parseStyle(Attr(n, "style"))
	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.prop != prop {
			out = append(out, d)
			continue
		}
		if value != "" && !replaced {
			out = append(out, declaration{prop, value})
			replaced = true
		}
	}
	if value != "" && !replaced {
		out = append(out, declaration{prop, value})
	}

	if len(out) == 0 {
		RemoveAttr(n, "style")
		return
	}
	parts := make([]string, len(out))
	for i, d := range out {
		parts[i] = d.prop + ": " + d.value
	}
	SetAttr(n, "style", strings.Join(parts, "; ")+";")
}
