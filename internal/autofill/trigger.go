// internal/autofill/trigger.go
package autofill

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// ConfirmFunc asks the user before a run starts.
type ConfirmFunc func(ctx context.Context) (bool, error)

// Trigger is the single entry point that starts runs. At most one run is in
// flight; a second request is rejected rather than queued.
type Trigger struct {
	orch    *Orchestrator
	source  schemas.ProfileSource
	logger  *zap.Logger
	confirm ConfirmFunc

	// OnRefresh, when set, is called after every profile reload so the
	// caller can redisplay its affordance.
	OnRefresh func(p *schemas.Profile)

	inFlight atomic.Bool

	mu      sync.RWMutex
	profile *schemas.Profile
}

// NewTrigger binds an orchestrator to a profile source.
func NewTrigger(orch *Orchestrator, source schemas.ProfileSource, logger *zap.Logger) (*Trigger, error) {
	if orch == nil || source == nil {
		return nil, fmt.Errorf("cannot initialize trigger with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{orch: orch, source: source, logger: logger.Named("trigger")}, nil
}

// SetConfirm installs the pre-run confirmation. nil skips it.
func (t *Trigger) SetConfirm(fn ConfirmFunc) { t.confirm = fn }

// InFlight reports whether a run is currently going.
func (t *Trigger) InFlight() bool { return t.inFlight.Load() }

// Profile returns the last loaded profile, or nil.
func (t *Trigger) Profile() *schemas.Profile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.profile
}

// Prime installs a profile loaded elsewhere, so the first Fire does not
// read the source again.
func (t *Trigger) Prime(p *schemas.Profile) {
	t.mu.Lock()
	t.profile = p
	t.mu.Unlock()
}

// Refresh reloads the profile from the source.
func (t *Trigger) Refresh(ctx context.Context) error {
	p, err := t.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	t.mu.Lock()
	t.profile = p
	t.mu.Unlock()
	t.logger.Debug("Profile refreshed.", zap.Bool("present", p != nil))
	if t.OnRefresh != nil {
		t.OnRefresh(p)
	}
	return nil
}

// Watch reloads the profile on every change notification until ctx is done
// or the source closes its feed. Reload failures are logged and the previous
// profile is kept.
func (t *Trigger) Watch(ctx context.Context) error {
	changes, err := t.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch profile: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := t.Refresh(ctx); err != nil {
				t.logger.Warn("Profile reload failed.", zap.Error(err))
			}
		}
	}
}

// Fire starts a run. It returns ErrRunInFlight if one is already going and
// ErrDeclined, with no writes, when the confirmation says no.
func (t *Trigger) Fire(ctx context.Context) (schemas.RunSummary, error) {
	if !t.inFlight.CompareAndSwap(false, true) {
		t.logger.Warn("Fill requested while a run is in flight.")
		return schemas.RunSummary{State: schemas.RunIdle}, ErrRunInFlight
	}
	defer t.inFlight.Store(false)

	if t.confirm != nil {
		ok, err := t.confirm(ctx)
		if err != nil {
			return schemas.RunSummary{State: schemas.RunIdle}, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			t.logger.Info("Fill declined at confirmation.")
			return schemas.RunSummary{State: schemas.RunIdle}, ErrDeclined
		}
	}

	if t.Profile() == nil {
		if err := t.Refresh(ctx); err != nil {
			t.logger.Warn("Profile unavailable.", zap.Error(err))
		}
	}
	return t.orch.Run(ctx, t.Profile())
}
