// internal/browser/jsexec/runtime.go
package jsexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/browser/jsbind"
	"github.com/xkilldash9x/jobfill/internal/browser/shim"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout is the fallback execution timeout if the context has no deadline.
const DefaultTimeout = 10 * time.Second

// maxCallStackSize bounds recursion in generated code.
const maxCallStackSize = 1024

// ErrNoResult is returned when a script settles without the listener
// reporting back, for example when it awaits a promise nothing resolves.
var ErrNoResult = errors.New("script finished without reporting a result")

// Host owns an offline document. Exclusive runs fn with the document locked
// for the whole call.
type Host interface {
	Exclusive(fn func(doc *html.Node, rec dom.EventRecorder) error) error
}

// Executor runs generated fill code in a goja VM bound to an offline page.
// It speaks the same request/result contract as the page-context listener in
// a live tab. Every call gets a fresh VM, so nothing a script defines leaks
// into the next one.
type Executor struct {
	host     Host
	logger   *zap.Logger
	listener shim.ListenerConfig
	script   string
}

// New builds an executor for host.
func New(host Host, logger *zap.Logger) (*Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := shim.DefaultListenerConfig()
	script, err := shim.ExecutorScript(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build executor script: %w", err)
	}
	return &Executor{
		host:     host,
		logger:   logger.Named("jsexec"),
		listener: cfg,
		script:   script,
	}, nil
}

// Execute runs req.Code against the page and returns the listener's reply.
// Exceptions thrown by the code come back as a successful result carrying a
// warning. An error is returned only when the script could not be delivered
// or never replied before ctx ended.
func (x *Executor) Execute(ctx context.Context, req schemas.ExecuteRequest) (schemas.ExecuteResult, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	if req.Type == "" {
		req.Type = x.listener.RequestType
	}
	payload, err := json.MarshalToString(req)
	if err != nil {
		return schemas.ExecuteResult{}, fmt.Errorf("failed to encode execution request: %w", err)
	}

	var result schemas.ExecuteResult
	err = x.host.Exclusive(func(doc *html.Node, rec dom.EventRecorder) error {
		var runErr error
		result, runErr = x.run(ctx, doc, rec, req.ExecutionID, payload)
		return runErr
	})
	if err != nil {
		return schemas.ExecuteResult{}, err
	}
	return result, nil
}

func (x *Executor) run(ctx context.Context, doc *html.Node, rec dom.EventRecorder, id, payload string) (schemas.ExecuteResult, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	bridge, err := jsbind.New(vm, x.logger)
	if err != nil {
		return schemas.ExecuteResult{}, err
	}
	bridge.Bind(doc, rec)
	defer bridge.Unbind()

	timers := newLoop(vm)
	if err := timers.install(); err != nil {
		return schemas.ExecuteResult{}, fmt.Errorf("failed to install timers: %w", err)
	}

	var (
		reply    schemas.ExecuteResult
		received bool
	)
	err = vm.Set(x.listener.Binding, func(raw string) {
		var msg schemas.ExecuteResult
		if err := json.UnmarshalFromString(raw, &msg); err != nil {
			x.logger.Warn("Dropping undecodable execution result.", zap.Error(err))
			return
		}
		if msg.Type != x.listener.ResultType || msg.ExecutionID != id {
			x.logger.Debug("Dropping uncorrelated execution result.", zap.String("execution_id", msg.ExecutionID))
			return
		}
		reply, received = msg, true
	})
	if err != nil {
		return schemas.ExecuteResult{}, fmt.Errorf("failed to install result binding: %w", err)
	}

	// Generated code gets the page, not the host process.
	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = vm.GlobalObject().Delete(name)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	if _, err := vm.RunString(x.script); err != nil {
		return schemas.ExecuteResult{}, x.classify(ctx, "install listener", err)
	}
	entry, ok := goja.AssertFunction(vm.Get(x.listener.Entry))
	if !ok {
		return schemas.ExecuteResult{}, fmt.Errorf("listener entry %q is not a function", x.listener.Entry)
	}
	accepted, err := entry(goja.Undefined(), vm.ToValue(payload))
	if err != nil {
		return schemas.ExecuteResult{}, x.classify(ctx, "deliver request", err)
	}
	if !accepted.ToBoolean() {
		return schemas.ExecuteResult{}, fmt.Errorf("listener rejected the execution request")
	}

	for !received {
		if !timers.pending() {
			return schemas.ExecuteResult{}, ErrNoResult
		}
		if err := timers.runNext(ctx); err != nil {
			if ctx.Err() != nil {
				return schemas.ExecuteResult{}, fmt.Errorf("javascript execution interrupted by context: %w", ctx.Err())
			}
			// A throwing timer callback is outside the listener's try block.
			// Earlier statements may still have run, so it counts as a warning.
			x.logger.Warn("Timer callback threw.", zap.Error(err))
			if !received {
				reply = schemas.ExecuteResult{
					Type:        x.listener.ResultType,
					ExecutionID: id,
					Success:     true,
					Warning:     exceptionText(err),
				}
				received = true
			}
		}
	}
	return reply, nil
}

// classify maps goja's interrupt back to the context error.
func (x *Executor) classify(ctx context.Context, op string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("javascript execution interrupted by context: %w", ctx.Err())
	}
	var jsErr *goja.Exception
	if errors.As(err, &jsErr) {
		return fmt.Errorf("%s: javascript exception: %s", op, jsErr.String())
	}
	return fmt.Errorf("%s: javascript error: %w", op, err)
}

func exceptionText(err error) string {
	var jsErr *goja.Exception
	if errors.As(err, &jsErr) {
		return jsErr.Value().String()
	}
	return err.Error()
}
