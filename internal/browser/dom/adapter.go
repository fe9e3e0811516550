// browser/dom/adapter.go
package dom

import (
	"context"
	"errors"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// KeyAttr tags every form element with a key that is unique within its
// document. Keys survive re-inspection, so a key taken from one snapshot still
// addresses the same element in the next.
const KeyAttr = "data-jobfill-key"

// SuggestAttr marks fields that carry cached suggestions.
const SuggestAttr = "data-jobfill-suggest"

// ErrNotFound is returned when a key or selector no longer resolves.
var ErrNotFound = errors.New("element not found")

// EventKind selects how an event is constructed in the page.
type EventKind int

const (
	// EventPlain is `new Event(type, {bubbles: true})`.
	EventPlain EventKind = iota
	// EventInput is an InputEvent carrying Data and InputType.
	EventInput
	// EventJQuery is `jQuery(el).trigger(type)`, skipped when the page has no jQuery.
	EventJQuery
)

// Event is one synthetic event dispatched on an element.
type Event struct {
	Type       string
	Kind       EventKind
	Cancelable bool
	Data       string
	InputType  string
}

// WriteEvents is the sequence fired after every value write. Reactive
// frameworks listen on different members of it.
func WriteEvents(data string) []Event {
	return []Event{
		{Type: "input", Cancelable: true},
		{Type: "change", Cancelable: true},
		{Type: "blur", Cancelable: true},
		{Type: "input", Kind: EventInput, Cancelable: true, Data: data, InputType: "insertText"},
		{Type: "keydown"},
		{Type: "keyup"},
		{Type: "input", Kind: EventJQuery},
		{Type: "change", Kind: EventJQuery},
	}
}

// FileEvents is the sequence fired after attaching a file.
func FileEvents() []Event {
	return []Event{{Type: "change"}, {Type: "input"}}
}

// Option is one <option> of a select.
type Option struct {
	Value    string
	Text     string
	Selected bool
}

// File is an upload attached to a file input.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Adapter is the only path from the fill engine to a page. Implementations
// exist for parsed documents and for live Chrome tabs.
type Adapter interface {
	// Fields describes every input, textarea and select in document order,
	// including hidden and disabled ones.
	Fields(ctx context.Context) ([]schemas.FieldDescriptor, error)
	// Field re-reads a single element.
	Field(ctx context.Context, key string) (schemas.FieldDescriptor, error)
	Options(ctx context.Context, key string) ([]Option, error)

	// SetValue writes through the native value setter; for a select it picks
	// the option whose value equals v.
	SetValue(ctx context.Context, key, v string) error
	SetChecked(ctx context.Context, key string, checked bool) error
	SetReadOnly(ctx context.Context, key string, readOnly bool) error
	Dispatch(ctx context.Context, key string, events ...Event) error
	SetStyle(ctx context.Context, key, property, value string) error
	SetAttribute(ctx context.Context, key, name, value string) error
	RemoveAttribute(ctx context.Context, key, name string) error
	AttachFile(ctx context.Context, key string, f File) error

	// Markup returns the serialized document element.
	Markup(ctx context.Context) (string, error)
	// Resolve maps a CSS selector or XPath expression to an element key.
	Resolve(ctx context.Context, selector string) (string, error)
}

// EventRecorder receives events that scripts dispatch on an offline
// document, where no listeners run.
type EventRecorder interface {
	Record(n *html.Node, ev Event)
}
