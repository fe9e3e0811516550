// internal/llmclient/local_client.go
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
)

// LocalClient drives an on-device model through an Ollama-compatible
// /api/generate endpoint. It runs with a fixed low temperature and top-k.
type LocalClient struct {
	http    *resty.Client
	model   string
	cfg     config.LLMModelConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

type localOptions struct {
	Temperature float32 `json:"temperature"`
	TopK        int     `json:"top_k"`
}

type localRequest struct {
	Model   string       `json:"model"`
	System  string       `json:"system,omitempty"`
	Prompt  string       `json:"prompt"`
	Stream  bool         `json:"stream"`
	Format  string       `json:"format,omitempty"`
	Options localOptions `json:"options"`
}

type localResponse struct {
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	EvalCount     int    `json:"eval_count"`
	PromptEvalCnt int    `json:"prompt_eval_count"`
}

// NewLocalClient returns a client for the local model server.
func NewLocalClient(cfg config.LLMModelConfig, model string, limiter *rate.Limiter, logger *zap.Logger) (*LocalClient, error) {
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		return nil, fmt.Errorf("local model name is required")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://127.0.0.1:11434"
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if cfg.APITimeout > 0 {
		client.SetTimeout(cfg.APITimeout)
	}
	return &LocalClient{
		http:    client,
		model:   model,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("llm_client.local"),
	}, nil
}

func (c *LocalClient) buildRequest(req schemas.GenerationRequest) localRequest {
	temp := c.cfg.Temperature
	if temp == 0 {
		temp = 0.1
	}
	topK := c.cfg.TopK
	if topK == 0 {
		topK = 1
	}
	payload := localRequest{
		Model:   c.model,
		System:  req.SystemPrompt,
		Prompt:  req.UserPrompt,
		Options: localOptions{Temperature: temp, TopK: topK},
	}
	if req.Options.ForceJSONFormat {
		payload.Format = "json"
	}
	return payload
}

// Generate runs one completion. A refused connection means no local model
// is running and surfaces as ErrUnavailable.
func (c *LocalClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", transportError("local", fmt.Errorf("rate limiter: %w", err))
	}
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(c.buildRequest(req)).
		Post("/api/generate")
	if err != nil {
		return "", transportError("local", err)
	}
	if resp.IsError() {
		return "", statusError("local", resp.StatusCode(), resp.String())
	}

	var out localResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", newError(ErrMalformedResponse, "local", err.Error())
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", newError(ErrMalformedResponse, "local", "empty response")
	}
	c.logger.Info("LLM generation complete (local)",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("eval_count", out.EvalCount))
	return out.Response, nil
}

func (c *LocalClient) Close() error { return nil }
