// internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/shim"
)

// PageExecutor runs generated code in the page's own JavaScript context, where
// framework setters are reachable. Requests go to the listener through an
// evaluated call; replies come back through a CDP binding and are matched to
// the waiting caller by execution id.
type PageExecutor struct {
	page     *Page
	logger   *zap.Logger
	listener shim.ListenerConfig

	mu      sync.Mutex
	waiting map[string]chan schemas.ExecuteResult
}

func newPageExecutor(p *Page) *PageExecutor {
	return &PageExecutor{
		page:     p,
		logger:   p.logger.Named("executor"),
		listener: shim.DefaultListenerConfig(),
		waiting:  make(map[string]chan schemas.ExecuteResult),
	}
}

// install adds the result binding, starts listening for it and injects the
// helpers and listener into every document.
func (x *PageExecutor) install(ctx context.Context) error {
	script, err := shim.ExecutorScript(x.listener)
	if err != nil {
		return fmt.Errorf("failed to build listener script: %w", err)
	}
	if err := x.page.runActions(ctx, runtime.AddBinding(x.listener.Binding)); err != nil {
		return fmt.Errorf("failed to add binding '%s': %w", x.listener.Binding, err)
	}

	chromedp.ListenTarget(x.page.ctx, func(ev interface{}) {
		if called, ok := ev.(*runtime.EventBindingCalled); ok && called.Name == x.listener.Binding {
			// This callback runs on chromedp's event goroutine.
			defer func() {
				if r := recover(); r != nil {
					x.logger.Error("Panic while handling execution result.",
						zap.Any("panic_reason", r),
						zap.String("stack", string(debug.Stack())))
				}
			}()
			x.deliver(called.Payload)
		}
	})

	if err := x.page.InjectScriptPersistently(ctx, script); err != nil {
		return fmt.Errorf("failed to inject listener: %w", err)
	}
	return nil
}

// deliver routes one binding payload to its waiting caller. Replies nobody
// waits for are dropped.
func (x *PageExecutor) deliver(payload string) {
	var res schemas.ExecuteResult
	if err := json.UnmarshalFromString(payload, &res); err != nil {
		x.logger.Warn("Could not unmarshal execution result.", zap.Error(err), zap.String("payload", payload))
		return
	}
	if res.Type != x.listener.ResultType {
		x.logger.Debug("Ignoring binding payload of unexpected type.", zap.String("type", res.Type))
		return
	}

	x.mu.Lock()
	ch, ok := x.waiting[res.ExecutionID]
	if ok {
		delete(x.waiting, res.ExecutionID)
	}
	x.mu.Unlock()

	if !ok {
		x.logger.Debug("Dropping uncorrelated execution result.", zap.String("execution_id", res.ExecutionID))
		return
	}
	ch <- res
}

// Execute posts req to the page listener and waits for the correlated reply
// or the end of ctx.
func (x *PageExecutor) Execute(ctx context.Context, req schemas.ExecuteRequest) (schemas.ExecuteResult, error) {
	if req.Type == "" {
		req.Type = x.listener.RequestType
	}
	payload, err := json.MarshalToString(req)
	if err != nil {
		return schemas.ExecuteResult{}, fmt.Errorf("failed to encode execution request: %w", err)
	}
	entry, err := json.MarshalToString(x.listener.Entry)
	if err != nil {
		return schemas.ExecuteResult{}, err
	}
	arg, err := json.MarshalToString(payload)
	if err != nil {
		return schemas.ExecuteResult{}, err
	}

	ch := make(chan schemas.ExecuteResult, 1)
	x.mu.Lock()
	x.waiting[req.ExecutionID] = ch
	x.mu.Unlock()
	defer func() {
		x.mu.Lock()
		delete(x.waiting, req.ExecutionID)
		x.mu.Unlock()
	}()

	var accepted bool
	expr := fmt.Sprintf("typeof window[%s] === 'function' && window[%s](%s)", entry, entry, arg)
	if err := x.page.runActions(ctx, chromedp.Evaluate(expr, &accepted)); err != nil {
		if ctx.Err() != nil {
			return schemas.ExecuteResult{}, ctx.Err()
		}
		return schemas.ExecuteResult{}, fmt.Errorf("failed to post execution request: %w", err)
	}
	if !accepted {
		return schemas.ExecuteResult{}, fmt.Errorf("page listener is not installed or rejected the request")
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return schemas.ExecuteResult{}, fmt.Errorf("waiting for execution result: %w", ctx.Err())
	}
}
