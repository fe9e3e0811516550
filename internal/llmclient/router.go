// internal/llmclient/router.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// LLMRouter implements the LLMClient interface and routes requests by tier.
// Each tier carries its own deadline: full page analysis gets the long one,
// suggestion-only calls the short one.
type LLMRouter struct {
	logger    *zap.Logger
	clients   map[schemas.ModelTier]schemas.LLMClient
	deadlines map[schemas.ModelTier]time.Duration
}

// NewLLMRouter creates a new router with the specified clients for each tier.
func NewLLMRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient) (*LLMRouter, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMRouter{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
		deadlines: map[schemas.ModelTier]time.Duration{},
	}, nil
}

// SetDeadline bounds every request of a tier. Zero removes the bound.
func (r *LLMRouter) SetDeadline(tier schemas.ModelTier, d time.Duration) {
	if d <= 0 {
		delete(r.deadlines, tier)
		return
	}
	r.deadlines[tier] = d
}

// Generate selects the client for the request's tier, defaulting to the
// powerful one, and applies the tier deadline.
func (r *LLMRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}
	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	d, bounded := r.deadlines[tier]
	if !bounded {
		return client.Generate(ctx, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	out, err := client.Generate(callCtx, req)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, ErrTimeout) {
		return "", &APIError{Kind: ErrTimeout, Provider: string(tier), Message: fmt.Sprintf("no response within %s", d)}
	}
	return out, err
}

// Close closes every distinct client once.
func (r *LLMRouter) Close() error {
	seen := make(map[schemas.LLMClient]bool, len(r.clients))
	var errs []error
	for _, c := range r.clients {
		if seen[c] {
			continue
		}
		seen[c] = true
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
