// internal/autofill/notifier.go
package autofill

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// Notification is what the user sees at the end of a run.
type Notification struct {
	Kind    schemas.NotificationKind
	Message string
	Records []schemas.FilledFieldRecord
}

// Notifier surfaces run outcomes to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	failed := 0
	for _, r := range n.Records {
		if !r.Success {
			failed++
		}
	}
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.Int("records", len(n.Records)),
		zap.Int("failed", failed),
	}
	if n.Kind == schemas.NotifyError {
		l.logger.Error(n.Message, fields...)
		return
	}
	l.logger.Info(n.Message, fields...)
}

// ConsoleNotifier renders the message and a per-field table. Labels come
// from the page and values from the profile, so both are stripped of markup.
type ConsoleNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	policy *bluemonday.Policy
}

func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w, policy: bluemonday.StrictPolicy()}
}

// clean drops tags. The policy escapes what it keeps, which a terminal would
// print literally, so entities are turned back into text.
func (c *ConsoleNotifier) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(s)))
}

func (c *ConsoleNotifier) Notify(_ context.Context, n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon := "✓"
	switch n.Kind {
	case schemas.NotifyError:
		icon = "✗"
	case schemas.NotifyWarning:
		icon = "!"
	}
	fmt.Fprintf(c.w, "%s %s\n", icon, c.clean(n.Message))
	if len(n.Records) == 0 {
		return
	}

	tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tLABEL\tVALUE\tDETAIL")
	for _, r := range n.Records {
		mark := "✓"
		if !r.Success {
			mark = "✗"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, c.clean(r.Label), c.clean(r.DisplayValue), c.clean(r.Reason))
	}
	_ = tw.Flush()
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}
