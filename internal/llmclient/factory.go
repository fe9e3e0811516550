// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
)

// NewLimiter spreads requestsPerMinute evenly. Zero means unlimited.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// NewClient builds the router for mode: the powerful tier on the configured
// model, the fast tier on the fast model, both sharing one limiter.
func NewClient(ctx context.Context, cfg config.LLMConfig, mode string, logger *zap.Logger) (*LLMRouter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode == "" {
		mode = cfg.Mode
	}
	mc, ok := cfg.ModelFor(mode)
	if !ok {
		return nil, fmt.Errorf("unknown or unsupported LLM mode: '%s'. Supported: [%s, %s, %s]",
			mode, config.ModeAPI, config.ModeGemini, config.ModeLocal)
	}
	fastModel := mc.FastModel
	if fastModel == "" {
		fastModel = mc.Model
	}
	limiter := NewLimiter(cfg.RequestsPerMinute)

	build := func(model string) (schemas.LLMClient, error) {
		switch mode {
		case config.ModeAPI:
			return NewOpenAIClient(mc, model, limiter, logger)
		case config.ModeGemini:
			return NewGeminiClient(ctx, mc, model, limiter, logger)
		default:
			return NewLocalClient(mc, model, limiter, logger)
		}
	}

	powerful, err := build(mc.Model)
	if err != nil {
		return nil, err
	}
	fast := powerful
	if fastModel != mc.Model {
		if fast, err = build(fastModel); err != nil {
			return nil, err
		}
	}

	router, err := NewLLMRouter(logger, fast, powerful)
	if err != nil {
		return nil, err
	}
	router.SetDeadline(schemas.TierPowerful, cfg.AnalysisTimeout)
	router.SetDeadline(schemas.TierFast, cfg.SuggestionTimeout)
	logger.Info("LLM client ready", zap.String("mode", mode), zap.String("model", mc.Model), zap.String("fast_model", fastModel))
	return router, nil
}
