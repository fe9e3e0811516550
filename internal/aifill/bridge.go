// internal/aifill/bridge.go
package aifill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/jsexec"
)

// DefaultExecutionTimeout bounds one round trip to the page context.
const DefaultExecutionTimeout = 10 * time.Second

var (
	// ErrExecutionTimeout means no correlated reply arrived in time.
	ErrExecutionTimeout = errors.New("code execution timed out")
	// ErrExecutionFailed means the page context reported a hard failure.
	ErrExecutionFailed = errors.New("code execution failed")
)

// Executor runs code somewhere a page's own scripts live. The live tab and
// the offline sandbox both implement it.
type Executor interface {
	Execute(ctx context.Context, req schemas.ExecuteRequest) (schemas.ExecuteResult, error)
}

// Outcome is a completed execution. A non-empty Warning means the code threw
// part way through; whatever it wrote before that stays in the page.
type Outcome struct {
	ExecutionID string
	Warning     string
	Duration    time.Duration
}

// Partial reports whether the code stopped early.
func (o Outcome) Partial() bool { return o.Warning != "" }

// Bridge is the request/response RPC to the page context.
type Bridge struct {
	exec    Executor
	timeout time.Duration
	logger  *zap.Logger
	newID   func() string
}

// NewBridge wraps exec with a single timeout policy.
func NewBridge(exec Executor, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		exec:    exec,
		timeout: timeout,
		logger:  logger.Named("aifill.bridge"),
		newID:   func() string { return "autofill_" + uuid.New().String() },
	}
}

// Run sends code under a fresh execution id and waits for its reply.
func (b *Bridge) Run(ctx context.Context, code string) (Outcome, error) {
	id := b.newID()
	req := schemas.ExecuteRequest{
		Type:        schemas.MessageExecuteCode,
		ExecutionID: id,
		Code:        code,
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	res, err := b.exec.Execute(callCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{ExecutionID: id}, ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, jsexec.ErrNoResult) {
			b.logger.Error("No execution result before timeout.", zap.String("execution_id", id), zap.Duration("timeout", b.timeout))
			return Outcome{ExecutionID: id}, fmt.Errorf("%w after %s: %v", ErrExecutionTimeout, b.timeout, err)
		}
		b.logger.Error("Execution request failed.", zap.String("execution_id", id), zap.Error(err))
		return Outcome{ExecutionID: id}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	if res.ExecutionID != id {
		b.logger.Warn("Dropping execution result for another request.",
			zap.String("execution_id", id), zap.String("reply_id", res.ExecutionID))
		return Outcome{ExecutionID: id}, fmt.Errorf("%w: no correlated reply for %s", ErrExecutionTimeout, id)
	}
	if !res.Success {
		b.logger.Error("Page context reported failure.", zap.String("execution_id", id), zap.String("error", res.Error))
		return Outcome{ExecutionID: id}, fmt.Errorf("%w: %s", ErrExecutionFailed, res.Error)
	}

	out := Outcome{ExecutionID: id, Warning: res.Warning, Duration: elapsed}
	if out.Partial() {
		b.logger.Warn("Generated code threw part way through.", zap.String("execution_id", id), zap.String("warning", res.Warning))
	} else {
		b.logger.Info("Generated code executed.", zap.String("execution_id", id), zap.Duration("duration", elapsed))
	}
	return out, nil
}
