// internal/browser/jsbind/element.go
package jsbind

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/internal/browser/dom"
)

// element is the Go side of a wrapped node.
type element struct {
	b    *Bridge
	node *html.Node
	obj  *goja.Object
}

// styleProps maps the camelCase style properties scripts commonly touch.
var styleProps = map[string]string{
	"border":          "border",
	"borderColor":     "border-color",
	"outline":         "outline",
	"backgroundColor": "background-color",
	"color":           "color",
	"display":         "display",
	"visibility":      "visibility",
}

func (b *Bridge) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if n == b.doc {
		return b.document
	}
	if obj, ok := b.wrappers[n]; ok {
		return obj
	}

	e := &element{b: b, node: n, obj: b.vm.NewObject()}
	b.wrappers[n] = e.obj
	if err := e.obj.DefineDataProperty(wrapperKey, b.vm.ToValue(e), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		panic(b.vm.NewGoError(err))
	}
	e.installNode()
	switch n.Type {
	case html.ElementNode:
		e.installElement()
		switch dom.Tag(n) {
		case "input", "textarea", "select", "option", "button":
			e.installControl()
		}
	case html.TextNode, html.CommentNode:
		text := func() interface{} { return n.Data }
		setText := func(v goja.Value) { n.Data = v.String() }
		for _, name := range []string{"nodeValue", "data", "textContent"} {
			b.accessor(e.obj, name, text, setText)
		}
	}
	return e.obj
}

func (e *element) get(name string, fn func() interface{}) {
	e.b.accessor(e.obj, name, fn, nil)
}

func (e *element) prop(name string, get func() interface{}, set func(goja.Value)) {
	e.b.accessor(e.obj, name, get, set)
}

func (e *element) method(name string, fn func(call goja.FunctionCall) goja.Value) {
	_ = e.obj.Set(name, fn)
}

func (e *element) arg(call goja.FunctionCall, i int, op string) *element {
	target, err := e.b.unwrap(call.Argument(i))
	if err != nil {
		panic(e.b.vm.NewTypeError("%s: %v", op, err))
	}
	return target
}

// -- Node --

func (e *element) installNode() {
	n := e.node
	_ = e.obj.Set("nodeType", nodeType(n))
	_ = e.obj.Set("nodeName", nodeName(n))

	e.get("parentNode", func() interface{} { return e.b.wrap(n.Parent) })
	e.get("parentElement", func() interface{} {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return e.b.wrap(n.Parent)
	})
	e.get("childNodes", func() interface{} {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			kids = append(kids, c)
		}
		return e.b.wrapList(kids)
	})
	e.get("firstChild", func() interface{} { return e.b.wrap(n.FirstChild) })
	e.get("lastChild", func() interface{} { return e.b.wrap(n.LastChild) })
	e.get("nextSibling", func() interface{} { return e.b.wrap(n.NextSibling) })
	e.get("previousSibling", func() interface{} { return e.b.wrap(n.PrevSibling) })

	e.method("appendChild", func(call goja.FunctionCall) goja.Value {
		child := e.arg(call, 0, "appendChild")
		detach(child.node)
		n.AppendChild(child.node)
		return call.Argument(0)
	})
	e.method("removeChild", func(call goja.FunctionCall) goja.Value {
		child := e.arg(call, 0, "removeChild")
		if child.node.Parent != n {
			panic(e.b.vm.NewTypeError("removeChild: the node to be removed is not a child of this node"))
		}
		n.RemoveChild(child.node)
		return call.Argument(0)
	})
	e.method("insertBefore", func(call goja.FunctionCall) goja.Value {
		child := e.arg(call, 0, "insertBefore")
		var ref *html.Node
		if r := call.Argument(1); !goja.IsNull(r) && !goja.IsUndefined(r) {
			ref = e.arg(call, 1, "insertBefore").node
			if ref.Parent != n {
				panic(e.b.vm.NewTypeError("insertBefore: the reference node is not a child of this node"))
			}
		}
		detach(child.node)
		n.InsertBefore(child.node, ref)
		return call.Argument(0)
	})
	e.method("cloneNode", func(call goja.FunctionCall) goja.Value {
		return e.b.wrap(cloneNode(n, call.Argument(0).ToBoolean()))
	})
	e.method("remove", func(goja.FunctionCall) goja.Value {
		detach(n)
		return goja.Undefined()
	})
}

// -- Element --

func (e *element) installElement() {
	n := e.node
	b := e.b
	_ = e.obj.Set("tagName", strings.ToUpper(n.Data))

	for prop, attr := range map[string]string{"id": "id", "className": "class", "name": "name", "placeholder": "placeholder", "href": "href", "src": "src"} {
		attr := attr
		e.prop(prop, func() interface{} { return dom.Attr(n, attr) }, func(v goja.Value) { dom.SetAttr(n, attr, v.String()) })
	}
	for prop, attr := range map[string]string{"readOnly": "readonly", "disabled": "disabled", "required": "required", "multiple": "multiple", "hidden": "hidden"} {
		attr := attr
		e.prop(prop, func() interface{} { return dom.HasAttr(n, attr) }, func(v goja.Value) {
			if v.ToBoolean() {
				dom.SetAttr(n, attr, "")
			} else {
				dom.RemoveAttr(n, attr)
			}
		})
	}

	text := func() interface{} { return htmlquery.InnerText(n) }
	e.prop("textContent", text, func(v goja.Value) { replaceChildren(n, &html.Node{Type: html.TextNode, Data: v.String()}) })
	e.prop("innerText", text, func(v goja.Value) { replaceChildren(n, &html.Node{Type: html.TextNode, Data: v.String()}) })
	e.prop("innerHTML", func() interface{} {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			_ = html.Render(&sb, c)
		}
		return sb.String()
	}, func(v goja.Value) {
		nodes, err := html.ParseFragment(strings.NewReader(v.String()), n)
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("failed to parse HTML: %w", err)))
		}
		replaceChildren(n, nodes...)
	})
	e.get("outerHTML", func() interface{} {
		var sb strings.Builder
		_ = html.Render(&sb, n)
		return sb.String()
	})
	e.get("children", func() interface{} {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				kids = append(kids, c)
			}
		}
		return b.wrapList(kids)
	})
	e.get("nextElementSibling", func() interface{} {
		for s := n.NextSibling; s != nil; s = s.NextSibling {
			if s.Type == html.ElementNode {
				return b.wrap(s)
			}
		}
		return goja.Null()
	})
	e.get("previousElementSibling", func() interface{} {
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				return b.wrap(s)
			}
		}
		return goja.Null()
	})
	e.get("style", func() interface{} { return e.style() })

	e.method("getAttribute", func(call goja.FunctionCall) goja.Value {
		name := strings.ToLower(call.Argument(0).String())
		if !dom.HasAttr(n, name) {
			return goja.Null()
		}
		return b.vm.ToValue(dom.Attr(n, name))
	})
	e.method("setAttribute", func(call goja.FunctionCall) goja.Value {
		dom.SetAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
		return goja.Undefined()
	})
	e.method("removeAttribute", func(call goja.FunctionCall) goja.Value {
		dom.RemoveAttr(n, strings.ToLower(call.Argument(0).String()))
		return goja.Undefined()
	})
	e.method("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(dom.HasAttr(n, strings.ToLower(call.Argument(0).String())))
	})

	e.method("querySelector", func(call goja.FunctionCall) goja.Value {
		return b.queryOne(n, call.Argument(0).String())
	})
	e.method("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.queryAll(n, call.Argument(0).String())
	})
	e.method("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return b.byTagName(n, call.Argument(0).String())
	})
	e.method("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		return b.byClassName(n, call.Argument(0).String())
	})
	e.method("matches", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(goquery.NewDocumentFromNode(n).Is(call.Argument(0).String()))
	})
	e.method("closest", func(call goja.FunctionCall) goja.Value {
		found := goquery.NewDocumentFromNode(n).Closest(call.Argument(0).String())
		if found.Length() == 0 {
			return goja.Null()
		}
		return b.wrap(found.Nodes[0])
	})

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	e.method("addEventListener", noop)
	e.method("removeEventListener", noop)
	e.method("dispatchEvent", e.dispatchEvent)
	e.method("click", e.click)
	e.method("focus", func(goja.FunctionCall) goja.Value {
		b.record(n, dom.Event{Type: "focus"})
		return goja.Undefined()
	})
	e.method("blur", func(goja.FunctionCall) goja.Value {
		b.record(n, dom.Event{Type: "blur"})
		return goja.Undefined()
	})
}

// -- Form controls --

func (e *element) installControl() {
	n := e.node
	b := e.b

	e.prop("type", func() interface{} {
		if t := dom.InputType(n); t != "" {
			return t
		}
		return dom.Attr(n, "type")
	}, func(v goja.Value) { dom.SetAttr(n, "type", v.String()) })

	e.prop("value", func() interface{} {
		if dom.Tag(n) == "option" {
			return dom.OptionValue(n)
		}
		return dom.Value(n)
	}, func(v goja.Value) {
		if dom.Tag(n) == "option" {
			dom.SetAttr(n, "value", v.String())
			return
		}
		dom.SetValue(n, v.String())
	})

	e.prop("checked", func() interface{} { return dom.Checked(n) }, func(v goja.Value) {
		dom.SetChecked(b.doc, n, v.ToBoolean())
	})

	e.get("form", func() interface{} { return b.wrap(dom.Closest(n, "form")) })
	e.prop("files", func() interface{} { return b.wrapList(nil) }, func(goja.Value) {})

	switch dom.Tag(n) {
	case "select":
		e.get("options", func() interface{} { return b.wrapList(dom.OptionNodes(n)) })
		e.get("length", func() interface{} { return len(dom.OptionNodes(n)) })
		e.prop("selectedIndex", func() interface{} {
			for i, o := range dom.Options(n) {
				if o.Selected {
					return i
				}
			}
			return -1
		}, func(v goja.Value) {
			opts := dom.OptionNodes(n)
			i := int(v.ToInteger())
			for j, o := range opts {
				if j == i {
					dom.SetAttr(o, "selected", "")
				} else {
					dom.RemoveAttr(o, "selected")
				}
			}
		})
	case "option":
		e.get("text", func() interface{} { return dom.Text(n) })
		e.get("index", func() interface{} {
			if sel := dom.Closest(n, "select"); sel != nil {
				for i, o := range dom.OptionNodes(sel) {
					if o == n {
						return i
					}
				}
			}
			return 0
		})
		e.prop("selected", func() interface{} { return optionSelected(n) }, func(v goja.Value) {
			sel := dom.Closest(n, "select")
			switch {
			case v.ToBoolean() && sel != nil && !dom.HasAttr(sel, "multiple"):
				for _, o := range dom.OptionNodes(sel) {
					dom.RemoveAttr(o, "selected")
				}
				dom.SetAttr(n, "selected", "")
			case v.ToBoolean():
				dom.SetAttr(n, "selected", "")
			default:
				dom.RemoveAttr(n, "selected")
			}
		})
	}
}

func optionSelected(opt *html.Node) bool {
	sel := dom.Closest(opt, "select")
	if sel == nil {
		return dom.HasAttr(opt, "selected")
	}
	opts := dom.Options(sel)
	for i, o := range dom.OptionNodes(sel) {
		if o == opt {
			return opts[i].Selected
		}
	}
	return false
}

// -- Events --

// dispatchEvent records the event. No listeners exist offline.
func (e *element) dispatchEvent(call goja.FunctionCall) goja.Value {
	obj, ok := call.Argument(0).(*goja.Object)
	if !ok {
		panic(e.b.vm.NewTypeError("dispatchEvent: parameter 1 is not of type 'Event'"))
	}
	ev := dom.Event{
		Type:       valueString(obj.Get("type")),
		Cancelable: valueBool(obj.Get("cancelable")),
	}
	if valueBool(obj.Get("__input")) {
		ev.Kind = dom.EventInput
		ev.Data = valueString(obj.Get("data"))
		ev.InputType = valueString(obj.Get("inputType"))
	}
	_ = obj.Set("target", e.obj)
	e.b.record(e.node, ev)
	return e.b.vm.ToValue(!valueBool(obj.Get("defaultPrevented")))
}

// click toggles checkboxes and radios the way activation behavior does and
// records the resulting events.
func (e *element) click(goja.FunctionCall) goja.Value {
	n := e.node
	if dom.HasAttr(n, "disabled") {
		return goja.Undefined()
	}
	e.b.record(n, dom.Event{Type: "click", Cancelable: true})
	if !dom.IsToggle(n) {
		return goja.Undefined()
	}
	if dom.InputType(n) == "radio" {
		if dom.Checked(n) {
			return goja.Undefined()
		}
		dom.SetChecked(e.b.doc, n, true)
	} else {
		dom.SetChecked(e.b.doc, n, !dom.Checked(n))
	}
	e.b.record(n, dom.Event{Type: "input"})
	e.b.record(n, dom.Event{Type: "change"})
	return goja.Undefined()
}

// -- style --

func (e *element) style() *goja.Object {
	n := e.node
	b := e.b
	s := b.vm.NewObject()
	_ = s.Set("setProperty", func(call goja.FunctionCall) goja.Value {
		dom.SetStyleProperty(n, call.Argument(0).String(), valueString(call.Argument(1)))
		return goja.Undefined()
	})
	_ = s.Set("removeProperty", func(call goja.FunctionCall) goja.Value {
		prop := call.Argument(0).String()
		old := dom.StyleProperty(n, prop)
		dom.SetStyleProperty(n, prop, "")
		return b.vm.ToValue(old)
	})
	_ = s.Set("getPropertyValue", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(dom.StyleProperty(n, call.Argument(0).String()))
	})
	b.accessor(s, "cssText", func() interface{} { return dom.Attr(n, "style") }, func(v goja.Value) {
		if v.String() == "" {
			dom.RemoveAttr(n, "style")
			return
		}
		dom.SetAttr(n, "style", v.String())
	})
	for camel, css := range styleProps {
		css := css
		b.accessor(s, camel, func() interface{} { return dom.StyleProperty(n, css) }, func(v goja.Value) {
			dom.SetStyleProperty(n, css, valueString(v))
		})
	}
	return s
}

// -- helpers --

func valueString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func valueBool(v goja.Value) bool {
	return v != nil && v.ToBoolean()
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DocumentNode:
		return 9
	}
	return 0
}

func nodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToUpper(n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	}
	return ""
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func replaceChildren(n *html.Node, kids ...*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, k := range kids {
		detach(k)
		n.AppendChild(k)
	}
}

func cloneNode(n *html.Node, deep bool) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if deep {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			clone.AppendChild(cloneNode(c, true))
		}
	}
	return clone
}
