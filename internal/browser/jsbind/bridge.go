// internal/browser/jsbind/bridge.go
package jsbind

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/internal/browser/dom"
)

//go:embed js/prelude.js
var prelude string

// wrapperKey is the hidden property linking a JS element to its Go wrapper.
const wrapperKey = "__go_node_wrapper__"

// Bridge exposes an offline document to a goja runtime as window and
// document. It holds no lock of its own: the caller owns the document for as
// long as scripts run, typically through session.Session.Exclusive.
type Bridge struct {
	vm     *goja.Runtime
	logger *zap.Logger

	doc *html.Node
	rec dom.EventRecorder

	// One JS object per node so identity comparisons hold.
	wrappers map[*html.Node]*goja.Object
	document *goja.Object
}

// New installs the DOM globals into vm. The global object doubles as window,
// so functions assigned to window are callable as bare names.
func New(vm *goja.Runtime, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		vm:       vm,
		logger:   logger.Named("jsbind"),
		wrappers: make(map[*html.Node]*goja.Object),
	}

	if _, err := vm.RunString(prelude); err != nil {
		return nil, fmt.Errorf("failed to install DOM prelude: %w", err)
	}

	b.document = b.newDocument()
	global := vm.GlobalObject()
	for name, val := range map[string]interface{}{
		"window":   global,
		"self":     global,
		"document": b.document,
		"location": b.newLocation(),
		"alert":    b.alert,
		"confirm":  b.confirm,
		"console":  b.newConsole(),
	} {
		if err := global.Set(name, val); err != nil {
			return nil, fmt.Errorf("failed to set global %q: %w", name, err)
		}
	}
	return b, nil
}

// Bind points the bridge at doc. Events dispatched by scripts go to rec.
// Wrappers from a previous document are dropped.
func (b *Bridge) Bind(doc *html.Node, rec dom.EventRecorder) {
	b.doc = doc
	b.rec = rec
	b.wrappers = make(map[*html.Node]*goja.Object)
}

// Unbind detaches the document so stray callbacks cannot touch it after
// the caller releases its lock.
func (b *Bridge) Unbind() {
	b.Bind(nil, nil)
}

func (b *Bridge) record(n *html.Node, ev dom.Event) {
	if b.rec != nil {
		b.rec.Record(n, ev)
	}
}

// -- window --

func (b *Bridge) alert(call goja.FunctionCall) goja.Value {
	b.logger.Info("[JS Alert]", zap.String("message", call.Argument(0).String()))
	return goja.Undefined()
}

func (b *Bridge) confirm(call goja.FunctionCall) goja.Value {
	b.logger.Info("[JS Confirm]", zap.String("message", call.Argument(0).String()))
	return b.vm.ToValue(true)
}

func (b *Bridge) newLocation() *goja.Object {
	loc := b.vm.NewObject()
	_ = loc.Set("href", "about:blank")
	_ = loc.Set("toString", func(goja.FunctionCall) goja.Value { return loc.Get("href") })
	return loc
}

func (b *Bridge) newConsole() *goja.Object {
	console := b.vm.NewObject()
	logFunc := func(level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = b.stringify(arg)
			}
			if ce := b.logger.Check(level, "[JS Console]"); ce != nil {
				ce.Write(zap.String("message", strings.Join(args, " ")))
			}
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logFunc(zapcore.DebugLevel))
	_ = console.Set("debug", logFunc(zapcore.DebugLevel))
	_ = console.Set("info", logFunc(zapcore.InfoLevel))
	_ = console.Set("warn", logFunc(zapcore.WarnLevel))
	_ = console.Set("error", logFunc(zapcore.ErrorLevel))
	return console
}

// stringify renders objects through JSON.stringify and everything else via
// String().
func (b *Bridge) stringify(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return fmt.Sprint(v)
	}
	if _, isObj := v.(*goja.Object); isObj {
		if jsJSON, ok := b.vm.Get("JSON").(*goja.Object); ok {
			if stringify, ok := goja.AssertFunction(jsJSON.Get("stringify")); ok {
				if out, err := stringify(goja.Undefined(), v); err == nil && !goja.IsUndefined(out) {
					return out.String()
				}
			}
		}
	}
	return v.String()
}

// -- document --

func (b *Bridge) newDocument() *goja.Object {
	d := b.vm.NewObject()
	_ = d.Set("nodeType", 9)
	_ = d.Set("nodeName", "#document")
	_ = d.Set("readyState", "complete")

	b.accessor(d, "documentElement", func() interface{} { return b.wrap(b.find("/html")) }, nil)
	b.accessor(d, "body", func() interface{} { return b.wrap(b.find("//body")) }, nil)
	b.accessor(d, "head", func() interface{} { return b.wrap(b.find("//head")) }, nil)
	b.accessor(d, "title", func() interface{} { return dom.Text(b.find("//title")) }, nil)

	_ = d.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if b.doc == nil {
			return goja.Null()
		}
		return b.wrap(dom.ByID(b.doc, call.Argument(0).String()))
	})
	_ = d.Set("getElementsByName", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		var out []*html.Node
		dom.Walk(b.doc, func(n *html.Node) bool {
			if dom.HasAttr(n, "name") && dom.Attr(n, "name") == name {
				out = append(out, n)
			}
			return true
		})
		return b.wrapList(out)
	})
	_ = d.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return b.queryOne(b.doc, call.Argument(0).String())
	})
	_ = d.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.queryAll(b.doc, call.Argument(0).String())
	})
	_ = d.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return b.byTagName(b.doc, call.Argument(0).String())
	})
	_ = d.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		return b.byClassName(b.doc, call.Argument(0).String())
	})
	_ = d.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return b.wrap(&html.Node{Type: html.ElementNode, Data: strings.ToLower(call.Argument(0).String())})
	})
	_ = d.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return b.wrap(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	})
	_ = d.Set("evaluate", b.evaluate)
	_ = d.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = d.Set("removeEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	return d
}

func (b *Bridge) find(xpath string) *html.Node {
	if b.doc == nil {
		return nil
	}
	return htmlquery.FindOne(b.doc, xpath)
}

// evaluate implements the subset of document.evaluate that returns nodes.
func (b *Bridge) evaluate(call goja.FunctionCall) goja.Value {
	expr := call.Argument(0).String()
	ctx := b.doc
	if arg := call.Argument(1); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		if e, err := b.unwrap(arg); err == nil {
			ctx = e.node
		}
	}
	if ctx == nil {
		return goja.Null()
	}

	nodes, err := htmlquery.QueryAll(ctx, expr)
	if err != nil {
		panic(b.vm.NewTypeError("Failed to execute 'evaluate': %s is not a valid XPath expression", expr))
	}

	res := b.vm.NewObject()
	var first goja.Value = goja.Null()
	if len(nodes) > 0 {
		first = b.wrap(nodes[0])
	}
	cursor := 0
	_ = res.Set("singleNodeValue", first)
	_ = res.Set("snapshotLength", len(nodes))
	_ = res.Set("snapshotItem", func(c goja.FunctionCall) goja.Value {
		i := int(c.Argument(0).ToInteger())
		if i < 0 || i >= len(nodes) {
			return goja.Null()
		}
		return b.wrap(nodes[i])
	})
	_ = res.Set("iterateNext", func(goja.FunctionCall) goja.Value {
		if cursor >= len(nodes) {
			return goja.Null()
		}
		cursor++
		return b.wrap(nodes[cursor-1])
	})
	return res
}

// -- queries --

func (b *Bridge) selection(root *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(root).Selection
}

func (b *Bridge) queryOne(root *html.Node, selector string) goja.Value {
	if root == nil {
		return goja.Null()
	}
	found := b.selection(root).Find(selector)
	if found.Length() == 0 {
		return goja.Null()
	}
	return b.wrap(found.Nodes[0])
}

func (b *Bridge) queryAll(root *html.Node, selector string) goja.Value {
	if root == nil {
		return b.wrapList(nil)
	}
	return b.wrapList(b.selection(root).Find(selector).Nodes)
}

func (b *Bridge) byTagName(root *html.Node, tag string) goja.Value {
	tag = strings.ToLower(tag)
	var out []*html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if n != root && (tag == "*" || dom.Tag(n) == tag) {
			out = append(out, n)
		}
		return true
	})
	return b.wrapList(out)
}

func (b *Bridge) byClassName(root *html.Node, class string) goja.Value {
	want := strings.Fields(class)
	var out []*html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if n == root || len(want) == 0 {
			return true
		}
		have := strings.Fields(dom.Attr(n, "class"))
		for _, w := range want {
			found := false
			for _, h := range have {
				if h == w {
					found = true
					break
				}
			}
			if !found {
				return true
			}
		}
		out = append(out, n)
		return true
	})
	return b.wrapList(out)
}

// -- wrapping --

func (b *Bridge) wrapList(nodes []*html.Node) goja.Value {
	vals := make([]interface{}, len(nodes))
	for i, n := range nodes {
		vals[i] = b.wrap(n)
	}
	arr := b.vm.NewArray(vals...)
	_ = arr.Set("item", func(call goja.FunctionCall) goja.Value {
		i := int(call.Argument(0).ToInteger())
		if i < 0 || i >= len(nodes) {
			return goja.Null()
		}
		return b.wrap(nodes[i])
	})
	return arr
}

func (b *Bridge) unwrap(val goja.Value) (*element, error) {
	if val == nil || goja.IsNull(val) || goja.IsUndefined(val) {
		return nil, fmt.Errorf("node is null or undefined")
	}
	obj, ok := val.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("value is not an object")
	}
	w := obj.Get(wrapperKey)
	if w == nil || goja.IsUndefined(w) {
		return nil, fmt.Errorf("value is not a DOM node")
	}
	e, ok := w.Export().(*element)
	if !ok {
		return nil, fmt.Errorf("value is not a DOM node")
	}
	return e, nil
}

// accessor defines a getter and optional setter on obj.
func (b *Bridge) accessor(obj *goja.Object, name string, get func() interface{}, set func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return b.vm.ToValue(get())
	})
	var setter goja.Value = goja.Undefined()
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		b.logger.Error("Failed to define accessor", zap.String("property", name), zap.Error(err))
	}
}
