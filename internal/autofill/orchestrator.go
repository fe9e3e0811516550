// internal/autofill/orchestrator.go
// Drives one deterministic fill run over every profile section present.

package autofill

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/composite"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/injector"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// User-facing messages.
const (
	MsgNoProfile     = "저장된 데이터가 없습니다."
	msgFilled        = "%d개 필드가 자동완성되었습니다!"
	msgFilledPartial = "%d개 필드 자동완성 (%d개 섹션 오류)"
)

// Observer is told about the run state as each section starts and on every
// state change. section is empty at the start and end of a run.
type Observer func(state schemas.RunState, section string)

// Orchestrator runs the deterministic fill state machine against one page.
type Orchestrator struct {
	adapter  dom.Adapter
	selector *matcher.Selector
	injector *injector.Injector
	splitter *composite.Splitter
	notifier Notifier
	logger   *zap.Logger
	observer Observer
}

// New wires the matcher, injector and splitters over adapter.
func New(
	adapter dom.Adapter,
	strategy matcher.Strategy,
	injCfg config.InjectorConfig,
	notifier Notifier,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if adapter == nil || strategy == nil || notifier == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	inj := injector.New(adapter, injCfg, logger)
	return &Orchestrator{
		adapter:  adapter,
		selector: matcher.NewSelector(adapter, strategy, logger),
		injector: inj,
		splitter: composite.New(adapter, inj, logger),
		notifier: notifier,
		logger:   logger.Named("autofill"),
	}, nil
}

// SetObserver installs a state-change callback. Not safe to call during a run.
func (o *Orchestrator) SetObserver(fn Observer) { o.observer = fn }

func (o *Orchestrator) transition(state schemas.RunState, section string) {
	if o.observer != nil {
		o.observer(state, section)
	}
}

// Run fills the page from profile. Section failures are counted, not
// returned; the error is non-nil only when there is no profile or the
// context ends mid-run.
func (o *Orchestrator) Run(ctx context.Context, profile *schemas.Profile) (schemas.RunSummary, error) {
	rc := NewRunContext()
	summary := schemas.RunSummary{RunID: rc.ID, State: schemas.RunIdle, StartedAt: rc.StartedAt}
	logger := o.logger.With(zap.String("runID", rc.ID))

	if profile == nil {
		logger.Warn("Fill requested without a profile.")
		summary.Message = MsgNoProfile
		o.notifier.Notify(ctx, Notification{Kind: schemas.NotifyError, Message: MsgNoProfile})
		return summary, ErrNoProfile
	}

	summary.State = schemas.RunRunning
	o.transition(schemas.RunRunning, "")
	if err := o.injector.ClearHighlights(ctx); err != nil {
		logger.Warn("Could not clear previous highlights.", zap.Error(err))
	}

	f := &filler{selector: o.selector, injector: o.injector, splitter: o.splitter, rc: rc, logger: logger}
	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			return o.cancelled(rc, summary, err)
		}
		if !sec.present(profile) {
			continue
		}
		o.transition(summary.State, sec.name)
		n, err := o.runSection(ctx, f, sec, profile)
		summary.Filled += n
		if err != nil {
			summary.SectionErrors++
			if summary.State != schemas.RunPartialFailure {
				summary.State = schemas.RunPartialFailure
				o.transition(schemas.RunPartialFailure, sec.name)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return o.cancelled(rc, summary, err)
	}

	kind := schemas.NotifySuccess
	summary.Message = fmt.Sprintf(msgFilled, summary.Filled)
	if summary.SectionErrors > 0 {
		kind = schemas.NotifyWarning
		summary.Message = fmt.Sprintf(msgFilledPartial, summary.Filled, summary.SectionErrors)
	}
	summary.State = schemas.RunDone
	summary.Records = rc.Records
	summary.Duration = time.Since(rc.StartedAt)
	o.transition(schemas.RunDone, "")

	logger.Info("Fill run finished.",
		zap.Int("filled", summary.Filled),
		zap.Int("sectionErrors", summary.SectionErrors),
		zap.Int("claimed", rc.Used.Len()),
		zap.Duration("duration", summary.Duration))
	o.notifier.Notify(ctx, Notification{Kind: kind, Message: summary.Message, Records: rc.Records})
	return summary, nil
}

// runSection isolates one section. A panic is turned into a section error.
func (o *Orchestrator) runSection(ctx context.Context, f *filler, sec section, p *schemas.Profile) (n int, err error) {
	logger := f.logger.With(zap.String("section", sec.name))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Section fill panicked.",
				zap.Any("panicValue", r),
				zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("section %s panicked: %v", sec.name, r)
		}
	}()

	n, err = sec.fill(ctx, f, p)
	if err != nil {
		logger.Error("Section fill failed.", zap.Int("filled", n), zap.Error(err))
		return n, err
	}
	logger.Debug("Section filled.", zap.Int("filled", n))
	return n, nil
}

// cancelled ends a run whose context is done. Writes already issued stay.
func (o *Orchestrator) cancelled(rc *RunContext, summary schemas.RunSummary, cause error) (schemas.RunSummary, error) {
	summary.State = schemas.RunDone
	summary.Records = rc.Records
	summary.Duration = time.Since(rc.StartedAt)
	o.transition(schemas.RunDone, "")
	o.logger.Warn("Fill run cancelled.", zap.String("runID", rc.ID), zap.Int("filled", summary.Filled), zap.Error(cause))
	return summary, errors.Join(ErrCancelled, cause)
}
