// browser/dom/selector.go
package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPath builds a short, stable expression for n. The nearest ancestor with a
// usable id anchors the path; otherwise the path is absolute from <html>.
func XPath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		tag := Tag(n)
		if tag == "" {
			continue
		}
		// Ids with quotes cannot be embedded in a literal; fall through to indexes.
		if id := Attr(n, "id"); id != "" && !strings.Contains(id, "'") {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}

		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if Tag(prev) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// IsXPath reports whether selector should be evaluated as XPath rather than
// CSS. Generated suggestions use both forms.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(/")
}

// Find evaluates a CSS selector or XPath expression against doc and returns
// the first matching element.
func Find(doc *html.Node, selector string) (*html.Node, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("empty selector: %w", ErrNotFound)
	}

	if IsXPath(selector) {
		n, err := htmlquery.Query(doc, selector)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", selector, err)
		}
		if n == nil {
			return nil, fmt.Errorf("xpath %q: %w", selector, ErrNotFound)
		}
		return n, nil
	}

	sel := goquery.NewDocumentFromNode(doc).Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("selector %q: %w", selector, ErrNotFound)
	}
	return sel.Nodes[0], nil
}

// ResolveKey finds the element for selector and returns its key, tagging it
// first when it has none. Non-control elements get keys too so suggestions
// may address any element.
func ResolveKey(doc *html.Node, selector string) (string, error) {
	n, err := Find(doc, selector)
	if err != nil {
		return "", err
	}
	if k := Attr(n, KeyAttr); k != "" {
		return k, nil
	}
	AssignKeys(doc)
	if k := Attr(n, KeyAttr); k != "" {
		return k, nil
	}
	k := nextKey(doc)
	SetAttr(n, KeyAttr, k)
	return k, nil
}
