// internal/aifill/pipeline.go
package aifill

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/autofill"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/injector"
	"github.com/xkilldash9x/jobfill/internal/llmclient"
)

// State is the position of a pipeline run.
type State string

const (
	StateIdle               State = "idle"
	StateAnalyzing          State = "analyzing"
	StateExecuting          State = "executing"
	StateReAnalyzing        State = "re_analyzing"
	StateAwaitingUserAction State = "awaiting_user_action"
	StateDone               State = "done"
	StateError              State = "error"
)

const (
	// SuggestOutline marks a field with cached suggestions.
	SuggestOutline = "2px dashed #f39c12"

	// DefaultSettleDelay lets page scripts react to the generated code
	// before the DOM is read again.
	DefaultSettleDelay = 1500 * time.Millisecond

	msgDone        = "AI 자동완성이 완료되었습니다."
	msgDoneWarning = "AI 자동완성 완료 (일부 오류): %s"
	msgSuggestions = "AI 자동완성 완료. %d개 필드에 추천값이 있습니다."
)

// Options tunes a pipeline.
type Options struct {
	MaxMarkupChars int
	MaxCodeSize    int
	SettleDelay    time.Duration
}

// Observer is told about every state change.
type Observer func(State)

// Result describes a finished or stopped run.
type Result struct {
	RunID       string
	State       State
	Code        string
	Execution   Outcome
	Suggestions []autofill.CachedSuggestion
	Duration    time.Duration
}

// Pipeline delegates a fill to a language model: it sends the page and the
// profile out, screens the code that comes back, runs it in the page
// context, then asks the model which fields still need attention.
type Pipeline struct {
	adapter   dom.Adapter
	llm       schemas.LLMClient
	bridge    *Bridge
	validator *Validator
	injector  *injector.Injector
	notifier  autofill.Notifier
	opts      Options
	logger    *zap.Logger
	sanitizer *bluemonday.Policy

	observer Observer
	state    State
	inFlight atomic.Bool
	rc       *autofill.RunContext
}

// New wires a pipeline. The notifier may be nil.
func New(adapter dom.Adapter, llm schemas.LLMClient, bridge *Bridge, inj *injector.Injector, notifier autofill.Notifier, opts Options, logger *zap.Logger) (*Pipeline, error) {
	if adapter == nil || llm == nil || bridge == nil || inj == nil {
		return nil, fmt.Errorf("aifill: adapter, llm client, bridge and injector are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Pipeline{
		adapter:   adapter,
		llm:       llm,
		bridge:    bridge,
		validator: NewValidator(opts.MaxCodeSize),
		injector:  inj,
		notifier:  notifier,
		opts:      opts,
		logger:    logger.Named("aifill"),
		sanitizer: bluemonday.StrictPolicy(),
		state:     StateIdle,
	}, nil
}

func (p *Pipeline) SetObserver(o Observer) { p.observer = o }

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

// RunContext returns the context of the latest run, or nil before the first.
func (p *Pipeline) RunContext() *autofill.RunContext { return p.rc }

func (p *Pipeline) transition(s State) {
	p.state = s
	p.logger.Debug("Pipeline state change.", zap.String("state", string(s)))
	if p.observer != nil {
		p.observer(s)
	}
}

func (p *Pipeline) notify(ctx context.Context, kind schemas.NotificationKind, msg string) {
	if p.notifier != nil {
		p.notifier.Notify(ctx, autofill.Notification{Kind: kind, Message: msg})
	}
}

// fail moves to StateError, tells the user and returns err.
func (p *Pipeline) fail(ctx context.Context, res *Result, stage string, err error) (Result, error) {
	p.transition(StateError)
	res.State = StateError
	res.Duration = time.Since(p.rc.StartedAt)
	p.logger.Error("AI fill failed.", zap.String("stage", stage), zap.Error(err))
	p.notify(ctx, schemas.NotifyError, UserMessage(err))
	return *res, fmt.Errorf("%s: %w", stage, err)
}

// Run performs one model-assisted fill. A second Run while one is in
// flight is rejected with autofill.ErrRunInFlight.
func (p *Pipeline) Run(ctx context.Context, profile *schemas.Profile) (Result, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return Result{}, autofill.ErrRunInFlight
	}
	defer p.inFlight.Store(false)

	if profile == nil {
		p.notify(ctx, schemas.NotifyError, autofill.MsgNoProfile)
		p.transition(StateIdle)
		return Result{State: StateIdle}, autofill.ErrNoProfile
	}

	p.clearMarks(ctx)
	p.rc = autofill.NewRunContext()
	res := Result{RunID: p.rc.ID}
	log := p.logger.With(zap.String("run_id", p.rc.ID))

	// Analyzing
	p.transition(StateAnalyzing)
	code, err := p.analyze(ctx, profile)
	if err != nil {
		return p.fail(ctx, &res, "analyze", err)
	}
	res.Code = code

	if err := p.validator.Validate(code); err != nil {
		return p.fail(ctx, &res, "validate", err)
	}

	// Executing
	p.transition(StateExecuting)
	outcome, err := p.bridge.Run(ctx, code)
	res.Execution = outcome
	if err != nil {
		return p.fail(ctx, &res, "execute", err)
	}

	// ReAnalyzing
	p.transition(StateReAnalyzing)
	if err := sleep(ctx, p.opts.SettleDelay); err != nil {
		return p.fail(ctx, &res, "settle", err)
	}
	if err := p.reanalyze(ctx, profile); err != nil {
		return p.fail(ctx, &res, "re-analyze", err)
	}
	res.Suggestions = p.cached()
	res.Duration = time.Since(p.rc.StartedAt)

	switch {
	case len(res.Suggestions) > 0:
		p.transition(StateAwaitingUserAction)
		p.notify(ctx, schemas.NotifyWarning, fmt.Sprintf(msgSuggestions, len(res.Suggestions)))
	case outcome.Partial():
		p.transition(StateDone)
		p.notify(ctx, schemas.NotifyWarning, fmt.Sprintf(msgDoneWarning, outcome.Warning))
	default:
		p.transition(StateDone)
		p.notify(ctx, schemas.NotifySuccess, msgDone)
	}
	res.State = p.state
	log.Info("AI fill finished.",
		zap.String("state", string(res.State)),
		zap.Bool("partial", outcome.Partial()),
		zap.Int("suggestions", len(res.Suggestions)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (p *Pipeline) pageMarkup(ctx context.Context) (string, error) {
	raw, err := p.adapter.Markup(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read page markup: %w", err)
	}
	return ExtractMarkup(raw, p.opts.MaxMarkupChars)
}

func (p *Pipeline) analyze(ctx context.Context, profile *schemas.Profile) (string, error) {
	markup, err := p.pageMarkup(ctx)
	if err != nil {
		return "", err
	}
	req, err := BuildAnalysisRequest(markup, profile)
	if err != nil {
		return "", err
	}
	p.logger.Debug("Requesting fill code.", zap.Int("markup_chars", len(markup)))
	resp, err := p.llm.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return ParseCode(resp)
}

// reanalyze asks for still-unfilled fields and caches the suggestions for
// those that resolve to an element.
func (p *Pipeline) reanalyze(ctx context.Context, profile *schemas.Profile) error {
	markup, err := p.pageMarkup(ctx)
	if err != nil {
		return err
	}
	req, err := BuildSuggestionRequest(markup, profile)
	if err != nil {
		return err
	}
	resp, err := p.llm.Generate(ctx, req)
	if err != nil {
		return err
	}
	found, err := ParseSuggestions(resp)
	if err != nil {
		return err
	}

	cache := p.rc.Suggestions
	cache.Clear()
	claimed := make(map[string]bool)
	for _, s := range found {
		key, err := p.adapter.Resolve(ctx, s.Selector)
		if err != nil {
			p.logger.Debug("Dropping suggestion for unresolved selector.", zap.String("selector", s.Selector), zap.Error(err))
			continue
		}
		if claimed[key] {
			continue
		}
		values := p.cleanSuggestions(s.Suggestions)
		if len(values) == 0 {
			continue
		}
		index := strconv.Itoa(cache.Len())
		entry := autofill.CachedSuggestion{
			Suggestion: schemas.Suggestion{
				Selector:    s.Selector,
				Label:       p.clean(s.Label),
				Suggestions: values,
			},
			Key: key,
		}
		if err := p.mark(ctx, key, index); err != nil {
			p.logger.Warn("Could not mark suggested field.", zap.String("key", key), zap.Error(err))
			continue
		}
		claimed[key] = true
		cache.Put(index, entry)
	}
	p.logger.Info("Re-analysis complete.", zap.Int("reported", len(found)), zap.Int("cached", cache.Len()))
	return nil
}

// clean strips markup from model text. Entities the policy produces are
// decoded so the value written into the page is the literal text.
func (p *Pipeline) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.sanitizer.Sanitize(s)))
}

func (p *Pipeline) cleanSuggestions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = p.clean(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (p *Pipeline) mark(ctx context.Context, key, index string) error {
	if err := p.adapter.SetAttribute(ctx, key, dom.SuggestAttr, index); err != nil {
		return err
	}
	return p.adapter.SetStyle(ctx, key, "outline", SuggestOutline)
}

func (p *Pipeline) unmark(ctx context.Context, key string) error {
	if err := p.adapter.RemoveAttribute(ctx, key, dom.SuggestAttr); err != nil {
		return err
	}
	return p.adapter.SetStyle(ctx, key, "outline", "")
}

// clearMarks removes the markers a previous run left on the page and drops
// its suggestions.
func (p *Pipeline) clearMarks(ctx context.Context) {
	if p.rc == nil {
		return
	}
	for _, idx := range p.rc.Suggestions.Indexes() {
		entry, ok := p.rc.Suggestions.Get(idx)
		if !ok {
			continue
		}
		if err := p.unmark(ctx, entry.Key); err != nil {
			p.logger.Warn("Could not clear stale suggestion marker.", zap.String("key", entry.Key), zap.Error(err))
		}
	}
	p.rc.Suggestions.Clear()
}

func (p *Pipeline) cached() []autofill.CachedSuggestion {
	if p.rc == nil {
		return nil
	}
	var out []autofill.CachedSuggestion
	for _, idx := range p.rc.Suggestions.Indexes() {
		s, _ := p.rc.Suggestions.Get(idx)
		out = append(out, s)
	}
	return out
}

// Suggestions returns the cached entry for a field index, as a dropdown
// would on focus.
func (p *Pipeline) Suggestions(index string) (autofill.CachedSuggestion, bool) {
	if p.rc == nil {
		return autofill.CachedSuggestion{}, false
	}
	return p.rc.Suggestions.Get(index)
}

// Pending lists the field indexes that still have suggestions, in order.
func (p *Pipeline) Pending() []string {
	if p.rc == nil {
		return nil
	}
	return p.rc.Suggestions.Indexes()
}

// ErrNoSuggestion is returned for an unknown index or choice.
var ErrNoSuggestion = errors.New("no such suggestion")

// ApplySuggestion writes the chosen value into the field at index through
// the injector and marks the field resolved. When the last cached field is
// resolved the run is Done. It is rejected with autofill.ErrRunInFlight
// while a run is going.
func (p *Pipeline) ApplySuggestion(ctx context.Context, index string, choice int) (schemas.FilledFieldRecord, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return schemas.FilledFieldRecord{}, autofill.ErrRunInFlight
	}
	defer p.inFlight.Store(false)

	entry, ok := p.Suggestions(index)
	if !ok {
		return schemas.FilledFieldRecord{}, fmt.Errorf("%w: field %s", ErrNoSuggestion, index)
	}
	if choice < 0 || choice >= len(entry.Suggestions) {
		return schemas.FilledFieldRecord{}, fmt.Errorf("%w: choice %d of %d", ErrNoSuggestion, choice, len(entry.Suggestions))
	}

	field, err := p.adapter.Field(ctx, entry.Key)
	if err != nil {
		return schemas.FilledFieldRecord{}, fmt.Errorf("failed to re-read field %s: %w", entry.Key, err)
	}
	rec, _ := p.injector.Fill(ctx, field, entry.Suggestions[choice])
	p.rc.Record(rec)

	if err := p.unmark(ctx, entry.Key); err != nil {
		p.logger.Warn("Could not clear suggestion marker.", zap.String("key", entry.Key), zap.Error(err))
	}
	p.rc.Suggestions.Delete(index)
	p.logger.Info("Suggestion applied.",
		zap.String("index", index),
		zap.String("label", entry.Label),
		zap.Bool("success", rec.Success))

	if p.rc.Suggestions.Len() == 0 && p.state == StateAwaitingUserAction {
		p.transition(StateDone)
	}
	return rec, nil
}

// UserMessage maps a pipeline error to the text shown to the user.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Capability == CapabilityOversize {
			return fmt.Sprintf("보안: 코드가 너무 큽니다 (%d자 제한)", verr.Limit)
		}
		return "보안: 금지된 패턴 발견 - " + verr.Capability
	case errors.Is(err, ErrExecutionTimeout):
		return "코드 실행 시간 초과"
	case errors.Is(err, ErrExecutionFailed):
		return "코드 실행 실패: " + err.Error()
	case errors.Is(err, ErrEmptyCode):
		return "AI 응답에 code 필드가 없습니다"
	}
	return llmclient.UserMessage(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
