// internal/browser/session/session.go
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
)

const blankDocument = "<html><head></head><body></body></html>"

// DispatchedEvent is one entry of the session's event log.
type DispatchedEvent struct {
	Key   string
	Tag   string
	Event dom.Event
}

// Session is an offline page: a parsed HTML document that the fill engine
// reads and mutates in place. It implements dom.Adapter. Events are recorded
// rather than delivered since no page scripts run.
type Session struct {
	id     string
	logger *zap.Logger
	client *http.Client

	mu         sync.Mutex
	currentURL *url.URL
	doc        *html.Node
	events     []DispatchedEvent
	files      map[string]dom.File
}

var (
	_ dom.Adapter       = (*Session)(nil)
	_ dom.EventRecorder = (*Session)(nil)
)

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the client used by Navigate.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// New returns a session holding an empty document.
func New(logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	doc, _ := html.Parse(strings.NewReader(blankDocument))
	s := &Session{
		id:     id,
		logger: logger.Named("session").With(zap.String("session_id", id)),
		doc:    doc,
		files:  make(map[string]dom.File),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return s
}

// FromHTML parses markup into a new session.
func FromHTML(logger *zap.Logger, markup string) (*Session, error) {
	s := New(logger)
	if err := s.Load(strings.NewReader(markup), nil); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// URL returns the address the document was loaded from, if any.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentURL == nil {
		return ""
	}
	return s.currentURL.String()
}

// Load replaces the document with markup read from r.
func (s *Session) Load(r io.Reader, base *url.URL) error {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	s.updateState(base, doc)
	return nil
}

// LoadFile loads a local HTML file.
func (s *Session) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return s.Load(f, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
}

// Navigate fetches targetURL over HTTP, following redirects, and loads the
// final HTML response.
func (s *Session) Navigate(ctx context.Context, targetURL string) error {
	u, err := url.Parse(targetURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("navigation target must be an absolute URL: '%s'", targetURL)
	}
	s.logger.Info("Navigating", zap.String("url", u.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for '%s': %w", u, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")
	return s.executeRequest(ctx, req)
}

func (s *Session) executeRequest(ctx context.Context, req *http.Request) error {
	const maxRedirects = 10
	current := req

	for i := 0; i < maxRedirects; i++ {
		resp, err := s.client.Do(current)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()
			if location == "" {
				return fmt.Errorf("redirect response missing Location header")
			}
			next, err := current.URL.Parse(location)
			if err != nil {
				return fmt.Errorf("failed to parse redirect Location '%s': %w", location, err)
			}
			nextReq, err := http.NewRequestWithContext(ctx, http.MethodGet, next.String(), nil)
			if err != nil {
				return err
			}
			nextReq.Header = current.Header.Clone()
			nextReq.Header.Set("Referer", current.URL.String())
			current = nextReq
			continue
		}
		return s.processResponse(resp)
	}
	return fmt.Errorf("maximum number of redirects (%d) exceeded", maxRedirects)
}

func (s *Session) processResponse(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("page request returned status %d", resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.Contains(contentType, "html") {
		return fmt.Errorf("page is not HTML (content type %q)", contentType)
	}
	return s.Load(resp.Body, resp.Request.URL)
}

func (s *Session) updateState(u *url.URL, doc *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentURL = u
	s.doc = doc
	s.events = nil
	s.files = make(map[string]dom.File)

	title := ""
	if t := htmlquery.FindOne(doc, "//title"); t != nil {
		title = strings.TrimSpace(htmlquery.InnerText(t))
	}
	where := ""
	if u != nil {
		where = u.String()
	}
	s.logger.Debug("Document loaded", zap.String("url", where), zap.String("title", title))
}

// Exclusive runs fn with the document locked. Script executors use it so a
// whole script observes and mutates one consistent tree.
func (s *Session) Exclusive(fn func(doc *html.Node, rec dom.EventRecorder) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.doc, lockedRecorder{s})
}

// Record appends an event dispatched by a script. It takes the lock, so
// scripts running under Exclusive must use the recorder passed to them.
func (s *Session) Record(n *html.Node, ev dom.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(n, ev)
}

func (s *Session) record(n *html.Node, ev dom.Event) {
	s.events = append(s.events, DispatchedEvent{Key: dom.Attr(n, dom.KeyAttr), Tag: dom.Tag(n), Event: ev})
}

type lockedRecorder struct{ s *Session }

func (r lockedRecorder) Record(n *html.Node, ev dom.Event) { r.s.record(n, ev) }

// Events returns a copy of the event log.
func (s *Session) Events() []DispatchedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DispatchedEvent(nil), s.events...)
}

// EventsFor returns the logged events for one key.
func (s *Session) EventsFor(key string) []dom.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dom.Event
	for _, e := range s.events {
		if e.Key == key {
			out = append(out, e.Event)
		}
	}
	return out
}

// File returns the upload attached to a file input.
func (s *Session) File(key string) (dom.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[key]
	return f, ok
}

// Render writes the whole document, including keys and styles applied by
// the run.
func (s *Session) Render(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return html.Render(w, s.doc)
}

// Close releases idle connections.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

// -- dom.Adapter --

// element resolves key under the lock.
func (s *Session) element(ctx context.Context, key string) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := dom.ByKey(s.doc, key)
	if n == nil {
		return nil, fmt.Errorf("key %q: %w", key, dom.ErrNotFound)
	}
	return n, nil
}

func (s *Session) Fields(ctx context.Context) ([]schemas.FieldDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if added := dom.AssignKeys(s.doc); added > 0 {
		s.logger.Debug("Assigned field keys", zap.Int("count", added))
	}
	return dom.Inspect(s.doc), nil
}

func (s *Session) Field(ctx context.Context, key string) (schemas.FieldDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.element(ctx, key)
	if err != nil {
		return schemas.FieldDescriptor{}, err
	}
	return dom.Describe(s.doc, n), nil
}

func (s *Session) Options(ctx context.Context, key string) ([]dom.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.element(ctx, key)
	if err != nil {
		return nil, err
	}
	if dom.Tag(n) != "select" {
		return nil, fmt.Errorf("key %q is a <%s>, not a select", key, dom.Tag(n))
	}
	return dom.Options(n), nil
}

func (s *Session) SetValue(ctx context.Context, key, v string) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		dom.SetValue(n, v)
		return nil
	})
}

func (s *Session) SetChecked(ctx context.Context, key string, checked bool) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		dom.SetChecked(s.doc, n, checked)
		return nil
	})
}

func (s *Session) SetReadOnly(ctx context.Context, key string, readOnly bool) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		if readOnly {
			dom.SetAttr(n, "readonly", "")
		} else {
			dom.RemoveAttr(n, "readonly")
		}
		return nil
	})
}

func (s *Session) Dispatch(ctx context.Context, key string, events ...dom.Event) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		for _, ev := range events {
			// No page scripts means no jQuery.
			if ev.Kind == dom.EventJQuery {
				continue
			}
			s.record(n, ev)
		}
		return nil
	})
}

func (s *Session) SetStyle(ctx context.Context, key, property, value string) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		dom.SetStyleProperty(n, property, value)
		return nil
	})
}

func (s *Session) SetAttribute(ctx context.Context, key, name, value string) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		dom.SetAttr(n, name, value)
		return nil
	})
}

func (s *Session) RemoveAttribute(ctx context.Context, key, name string) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		dom.RemoveAttr(n, name)
		return nil
	})
}

func (s *Session) AttachFile(ctx context.Context, key string, f dom.File) error {
	return s.mutate(ctx, key, func(n *html.Node) error {
		if dom.InputType(n) != "file" {
			return fmt.Errorf("key %q is not a file input", key)
		}
		s.files[key] = f
		return nil
	})
}

func (s *Session) Markup(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	root := htmlquery.FindOne(s.doc, "/html")
	if root == nil {
		root = s.doc
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

func (s *Session) Resolve(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return dom.ResolveKey(s.doc, selector)
}

func (s *Session) mutate(ctx context.Context, key string, fn func(n *html.Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.element(ctx, key)
	if err != nil {
		return err
	}
	return fn(n)
}
