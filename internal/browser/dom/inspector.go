// browser/dom/inspector.go
package dom

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// contextTags are the containers whose text is a weak signal for a field.
var contextTags = []string{"div", "td", "li"}

// AssignKeys tags every untagged form control under root and returns the
// number of keys added. Existing keys are kept.
func AssignKeys(root *html.Node) int {
	next := keyIndex(root)
	added := 0
	for _, n := range FormControls(root) {
		if Attr(n, KeyAttr) != "" {
			continue
		}
		SetAttr(n, KeyAttr, "f"+strconv.Itoa(next))
		next++
		added++
	}
	return added
}

// keyIndex returns one past the highest numeric key under root.
func keyIndex(root *html.Node) int {
	next := 0
	Walk(root, func(n *html.Node) bool {
		if k := Attr(n, KeyAttr); strings.HasPrefix(k, "f") {
			if i, err := strconv.Atoi(k[1:]); err == nil && i >= next {
				next = i + 1
			}
		}
		return true
	})
	return next
}

func nextKey(root *html.Node) string {
	return "f" + strconv.Itoa(keyIndex(root))
}

// Inspect describes every form control under doc in document order. Keys must
// already be assigned.
func Inspect(doc *html.Node) []schemas.FieldDescriptor {
	controls := FormControls(doc)
	out := make([]schemas.FieldDescriptor, 0, len(controls))
	for _, n := range controls {
		out = append(out, Describe(doc, n))
	}
	return out
}

// Describe extracts the matchable signals of one element. It never mutates
// the tree.
func Describe(doc, n *html.Node) schemas.FieldDescriptor {
	d := schemas.FieldDescriptor{
		Key:          Attr(n, KeyAttr),
		Tag:          Tag(n),
		ID:           Attr(n, "id"),
		Name:         Attr(n, "name"),
		Placeholder:  Attr(n, "placeholder"),
		ClassName:    Attr(n, "class"),
		Type:         InputType(n),
		Autocomplete: Attr(n, "autocomplete"),
		AriaLabel:    Attr(n, "aria-label"),
		Accept:       Attr(n, "accept"),
		InForm:       Closest(n, "form") != nil,
		Hidden:       InputType(n) == "hidden",
		Disabled:     HasAttr(n, "disabled"),
		ReadOnly:     HasAttr(n, "readonly"),
	}

	if IsToggle(n) {
		d.Checked = Checked(n)
		d.ToggleValue = Value(n)
		// An unchecked toggle holds nothing as far as matching is concerned.
		if d.Checked {
			d.CurrentValue = d.ToggleValue
		}
	} else if d.Type != "file" {
		d.CurrentValue = Value(n)
	}

	if ids := strings.Fields(Attr(n, "aria-labelledby")); len(ids) > 0 {
		var parts []string
		for _, id := range ids {
			if ref := ByID(doc, id); ref != nil {
				if t := Text(ref); t != "" {
					parts = append(parts, t)
				}
			}
		}
		d.AriaLabelledByText = strings.Join(parts, " ")
	}

	if label := FindLabel(doc, n); label != nil {
		d.LabelText = Text(label)
	}
	if container := Closest(n, contextTags...); container != nil {
		d.ParentText = Text(container)
	}
	return d
}

// FindLabel resolves the label for n: label[for=id], an enclosing label, the
// first label in the nearest div/td/li container, then the nearest preceding
// sibling label.
func FindLabel(doc, n *html.Node) *html.Node {
	if id := Attr(n, "id"); id != "" && !strings.Contains(id, "'") {
		if l := htmlquery.FindOne(doc, "//label[@for='"+id+"']"); l != nil {
			return l
		}
	}
	if l := Closest(n, "label"); l != nil {
		return l
	}
	if container := Closest(n, contextTags...); container != nil {
		if l := htmlquery.FindOne(container, ".//label"); l != nil {
			return l
		}
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if Tag(s) == "label" {
			return s
		}
	}
	return nil
}

// ByID returns the first element with the given id.
func ByID(doc *html.Node, id string) *html.Node {
	var found *html.Node
	Walk(doc, func(n *html.Node) bool {
		if Attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// DisplayLabel is the human-facing name of a field: its label text, else
// placeholder, name or id.
func DisplayLabel(d schemas.FieldDescriptor) string {
	for _, s := range []string{d.LabelText, d.Placeholder, d.Name, d.ID} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "알 수 없음"
}
