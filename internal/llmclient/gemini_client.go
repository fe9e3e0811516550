// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
)

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	cfg     config.LLMModelConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGeminiClient initializes the SDK client. cfg.Endpoint, when set,
// replaces the SDK base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, model string, limiter *rate.Limiter, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, newError(ErrAuth, "gemini", "no API key configured")
	}
	if model == "" {
		model = cfg.Model
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(cfg.Endpoint, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("llm_client.gemini"),
	}, nil
}

func (c *GeminiClient) buildConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	temp := float32(req.Options.Temperature)
	if temp == 0 {
		temp = c.cfg.Temperature
	}
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if c.cfg.TopP > 0 {
		gc.TopP = genai.Ptr(c.cfg.TopP)
	}
	if c.cfg.TopK > 0 {
		gc.TopK = genai.Ptr(float32(c.cfg.TopK))
	}
	if c.cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if req.Options.ForceJSONFormat {
		gc.ResponseMIMEType = "application/json"
	}
	return gc
}

// Generate sends the prompts and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", transportError("gemini", fmt.Errorf("rate limiter: %w", err))
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), c.buildConfig(req))
	if err != nil {
		return "", c.classify(err)
	}
	if len(resp.Candidates) == 0 {
		return "", newError(ErrMalformedResponse, "gemini", "no candidates")
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", newError(ErrMalformedResponse, "gemini",
			fmt.Sprintf("empty content (finish reason %s)", resp.Candidates[0].FinishReason))
	}

	fields := []zap.Field{zap.String("model", c.model), zap.Duration("duration", time.Since(start))}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("completion_tokens", u.CandidatesTokenCount),
			zap.Int32("total_tokens", u.TotalTokenCount))
	}
	c.logger.Info("LLM generation complete (Gemini)", fields...)
	return text, nil
}

func (c *GeminiClient) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("Gemini API returned error status", zap.Int("status", apiErr.Code))
		return statusError("gemini", apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		c.logger.Error("Gemini API returned error status", zap.Int("status", apiErrPtr.Code))
		return statusError("gemini", apiErrPtr.Code, apiErrPtr.Message)
	}
	return transportError("gemini", err)
}

func (c *GeminiClient) Close() error { return nil }
