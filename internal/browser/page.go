// internal/browser/page.go
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/browser/session"
	"github.com/xkilldash9x/jobfill/internal/browser/shim"
	"github.com/xkilldash9x/jobfill/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// libraryGlobal is the object installed by shim.Library.
const libraryGlobal = "window.__jobfill"

// Page is a live Chrome tab. It implements dom.Adapter by sending keyed calls
// to the injected library and parsing keyed snapshots with the same
// inspector the offline session uses.
type Page struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	executor *PageExecutor

	onClose   func()
	closeOnce sync.Once
}

var _ dom.Adapter = (*Page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Page {
	id := uuid.New().String()
	p := &Page{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("page").With(zap.String("page_id", id)),
		cfg:    cfg,
	}
	p.executor = newPageExecutor(p)
	return p
}

// initialize creates the target and installs the library and listener.
func (p *Page) initialize(ctx context.Context) error {
	if err := p.runActions(ctx); err != nil {
		return fmt.Errorf("failed to connect to tab: %w", err)
	}
	if err := p.InjectScriptPersistently(ctx, shim.Library()); err != nil {
		return err
	}
	return p.executor.install(ctx)
}

// ID returns the unique identifier for the page.
func (p *Page) ID() string { return p.id }

// Executor returns the page-context executor for generated code.
func (p *Page) Executor() *PageExecutor { return p.executor }

// Navigate loads url and waits for the body to be ready.
func (p *Page) Navigate(ctx context.Context, url string) error {
	timeout := p.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.logger.Debug("Navigating.", zap.String("url", url))
	err := p.runActions(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// InjectScriptPersistently adds a script that runs on every new document and
// evaluates it once in the current one.
func (p *Page) InjectScriptPersistently(ctx context.Context, script string) error {
	var scriptID page.ScriptIdentifier
	err := p.runActions(ctx,
		chromedp.ActionFunc(func(c context.Context) error {
			var err error
			scriptID, err = page.AddScriptToEvaluateOnNewDocument(script).Do(c)
			return err
		}),
		chromedp.Evaluate(script, nil),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("could not inject persistent script: %w", err)
	}
	p.logger.Debug("Injected persistent script.", zap.String("scriptID", string(scriptID)))
	return nil
}

// Close terminates the tab. It is safe to call more than once.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.logger.Debug("Closing page.")
		if p.cancel != nil {
			p.cancel()
		}
		if p.onClose != nil {
			p.onClose()
		}
	})
}

// runActions executes actions bounded by both the tab lifetime and ctx.
func (p *Page) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := session.CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// call invokes a library method with JSON-encoded arguments.
func (p *Page) call(ctx context.Context, res interface{}, method string, args ...interface{}) error {
	expr, err := callExpression(method, args...)
	if err != nil {
		return err
	}
	if err := p.runActions(ctx, chromedp.Evaluate(expr, res)); err != nil {
		return mapEvalError(ctx, method, err)
	}
	return nil
}

func callExpression(method string, args ...interface{}) (string, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		raw, err := json.MarshalToString(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode argument %d of %s: %w", i, method, err)
		}
		encoded[i] = raw
	}
	return fmt.Sprintf("%s.%s(%s)", libraryGlobal, method, strings.Join(encoded, ", ")), nil
}

// mapEvalError turns the library's "element not found" exception into
// dom.ErrNotFound.
func mapEvalError(ctx context.Context, method string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if strings.Contains(err.Error(), "element not found") {
		return fmt.Errorf("%s: %w", method, dom.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", method, err)
}

// jsEvent is the wire form of dom.Event understood by the library.
type jsEvent struct {
	Type       string `json:"type"`
	Kind       int    `json:"kind"`
	Cancelable bool   `json:"cancelable"`
	Data       string `json:"data,omitempty"`
	InputType  string `json:"inputType,omitempty"`
}

func toJSEvents(events []dom.Event) []jsEvent {
	out := make([]jsEvent, len(events))
	for i, ev := range events {
		out[i] = jsEvent{
			Type:       ev.Type,
			Kind:       int(ev.Kind),
			Cancelable: ev.Cancelable,
			Data:       ev.Data,
			InputType:  ev.InputType,
		}
	}
	return out
}

// snapshot returns the keyed document with live state mirrored into
// attributes.
func (p *Page) snapshot(ctx context.Context) (*html.Node, error) {
	var markup string
	if err := p.call(ctx, &markup, "snapshot"); err != nil {
		return nil, err
	}
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page snapshot: %w", err)
	}
	return doc, nil
}

// -- dom.Adapter --

func (p *Page) Fields(ctx context.Context) ([]schemas.FieldDescriptor, error) {
	doc, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return dom.Inspect(doc), nil
}

func (p *Page) Field(ctx context.Context, key string) (schemas.FieldDescriptor, error) {
	doc, err := p.snapshot(ctx)
	if err != nil {
		return schemas.FieldDescriptor{}, err
	}
	n := dom.ByKey(doc, key)
	if n == nil {
		return schemas.FieldDescriptor{}, fmt.Errorf("field %s: %w", key, dom.ErrNotFound)
	}
	return dom.Describe(doc, n), nil
}

func (p *Page) Options(ctx context.Context, key string) ([]dom.Option, error) {
	doc, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	n := dom.ByKey(doc, key)
	if n == nil {
		return nil, fmt.Errorf("options %s: %w", key, dom.ErrNotFound)
	}
	if dom.Tag(n) != "select" {
		return nil, fmt.Errorf("options %s: element is a %s, not a select", key, dom.Tag(n))
	}
	return dom.Options(n), nil
}

func (p *Page) SetValue(ctx context.Context, key, v string) error {
	return p.call(ctx, nil, "setValue", key, v)
}

func (p *Page) SetChecked(ctx context.Context, key string, checked bool) error {
	return p.call(ctx, nil, "setChecked", key, checked)
}

func (p *Page) SetReadOnly(ctx context.Context, key string, readOnly bool) error {
	return p.call(ctx, nil, "setReadOnly", key, readOnly)
}

func (p *Page) Dispatch(ctx context.Context, key string, events ...dom.Event) error {
	return p.call(ctx, nil, "dispatch", key, toJSEvents(events))
}

func (p *Page) SetStyle(ctx context.Context, key, property, value string) error {
	return p.call(ctx, nil, "setStyle", key, property, value)
}

func (p *Page) SetAttribute(ctx context.Context, key, name, value string) error {
	return p.call(ctx, nil, "setAttr", key, name, value)
}

func (p *Page) RemoveAttribute(ctx context.Context, key, name string) error {
	return p.call(ctx, nil, "removeAttr", key, name)
}

func (p *Page) AttachFile(ctx context.Context, key string, f dom.File) error {
	encoded := base64.StdEncoding.EncodeToString(f.Data)
	return p.call(ctx, nil, "attachFile", key, f.Name, f.MIME, encoded)
}

func (p *Page) Markup(ctx context.Context) (string, error) {
	var markup string
	err := p.call(ctx, &markup, "markup")
	return markup, err
}

func (p *Page) Resolve(ctx context.Context, selector string) (string, error) {
	if strings.TrimSpace(selector) == "" {
		return "", dom.ErrNotFound
	}
	var key string
	if err := p.call(ctx, &key, "resolve", selector); err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("selector %q: %w", selector, dom.ErrNotFound)
	}
	return key, nil
}
