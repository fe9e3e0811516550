// browser/dom/node.go
package dom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Attr returns the value of an attribute, or "".
func Attr(n *html.Node, key string) string {
	return htmlquery.SelectAttr(n, key)
}

// HasAttr reports whether the attribute is present, whatever its value.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or adds an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr drops an attribute if present.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// Tag returns the lower-cased element name.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// InputType mirrors HTMLInputElement.type: lower-cased, "text" when absent.
// Selects report "select-one" or "select-multiple" and textareas "textarea".
func InputType(n *html.Node) string {
	switch Tag(n) {
	case "textarea":
		return "textarea"
	case "select":
		if HasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	case "input":
		if t := strings.ToLower(strings.TrimSpace(Attr(n, "type"))); t != "" {
			return t
		}
		return "text"
	}
	return ""
}

// IsToggle reports whether n is a checkbox or radio input.
func IsToggle(n *html.Node) bool {
	t := InputType(n)
	return Tag(n) == "input" && (t == "checkbox" || t == "radio")
}

// Text returns the element's text content with whitespace runs collapsed.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
}

// Closest walks up from n (exclusive) to the first ancestor whose tag is one
// of tags.
func Closest(n *html.Node, tags ...string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		t := Tag(p)
		for _, want := range tags {
			if t == want {
				return p
			}
		}
	}
	return nil
}

// Walk visits element nodes under root in document order. Returning false
// from fn stops the walk.
func Walk(root *html.Node, fn func(*html.Node) bool) {
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	if root != nil {
		visit(root)
	}
}

// IsFormControl reports whether n is an input, textarea or select.
func IsFormControl(n *html.Node) bool {
	switch Tag(n) {
	case "input", "textarea", "select":
		return true
	}
	return false
}

// FormControls lists every input, textarea and select under root in
// document order.
func FormControls(root *html.Node) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if IsFormControl(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// -- Option handling --

// OptionValue is the option's value attribute, or its text when absent.
func OptionValue(opt *html.Node) string {
	if HasAttr(opt, "value") {
		return Attr(opt, "value")
	}
	return strings.TrimSpace(Text(opt))
}

// OptionNodes lists the option elements of a select in document order.
func OptionNodes(sel *html.Node) []*html.Node {
	var out []*html.Node
	Walk(sel, func(n *html.Node) bool {
		if Tag(n) == "option" {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Options lists a select's options with the browser's notion of selection:
// the last option carrying `selected`, else the first option of a
// single-choice select.
func Options(sel *html.Node) []Option {
	nodes := OptionNodes(sel)
	out := make([]Option, len(nodes))
	chosen := -1
	for i, o := range nodes {
		out[i] = Option{Value: OptionValue(o), Text: Text(o)}
		if HasAttr(o, "selected") {
			chosen = i
		}
	}
	if chosen == -1 && len(out) > 0 && !HasAttr(sel, "multiple") {
		chosen = 0
	}
	if chosen >= 0 {
		out[chosen].Selected = true
	}
	return out
}

// Value mirrors the element's `value` property. For checkboxes and radios it
// is the value attribute ("on" when absent) regardless of checked state.
func Value(n *html.Node) string {
	switch Tag(n) {
	case "textarea":
		return htmlquery.InnerText(n)
	case "select":
		for _, o := range Options(n) {
			if o.Selected {
				return o.Value
			}
		}
		return ""
	case "input":
		if IsToggle(n) && !HasAttr(n, "value") {
			return "on"
		}
		return Attr(n, "value")
	}
	return ""
}

// SetValue writes v the way the native setter would. A select keeps only the
// option whose value equals v selected; when none matches nothing stays
// selected.
func SetValue(n *html.Node, v string) {
	switch Tag(n) {
	case "textarea":
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	case "select":
		matched := false
		for _, o := range OptionNodes(n) {
			if !matched && OptionValue(o) == v {
				SetAttr(o, "selected", "")
				matched = true
				continue
			}
			RemoveAttr(o, "selected")
		}
	default:
		SetAttr(n, "value", v)
	}
}

// Checked reports the checked state of a toggle.
func Checked(n *html.Node) bool {
	return HasAttr(n, "checked")
}

// SetChecked toggles n. Checking a radio clears the rest of its group, scoped
// to the enclosing form when there is one.
func SetChecked(doc, n *html.Node, checked bool) {
	if !checked {
		RemoveAttr(n, "checked")
		return
	}
	SetAttr(n, "checked", "")
	if InputType(n) != "radio" {
		return
	}
	name := Attr(n, "name")
	if name == "" {
		return
	}
	scope := Closest(n, "form")
	if scope == nil {
		scope = doc
	}
	Walk(scope, func(other *html.Node) bool {
		if other != n && Tag(other) == "input" && InputType(other) == "radio" && Attr(other, "name") == name {
			RemoveAttr(other, "checked")
		}
		return true
	})
}

// ByKey finds the element tagged with key.
func ByKey(root *html.Node, key string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if Attr(n, KeyAttr) == key {
			found = n
			return false
		}
		return true
	})
	return found
}
