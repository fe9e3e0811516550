// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	http    *resty.Client
	model   string
	cfg     config.LLMModelConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	TopP           float64             `json:"top_p,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient returns a client for model. A missing API key is an auth
// error so the caller can show the right message before any request.
func NewOpenAIClient(cfg config.LLMModelConfig, model string, limiter *rate.Limiter, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, newError(ErrAuth, "openai", "no API key configured")
	}
	if model == "" {
		model = cfg.Model
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(endpoint).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if cfg.APITimeout > 0 {
		client.SetTimeout(cfg.APITimeout)
	}

	return &OpenAIClient{
		http:    client,
		model:   model,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("llm_client.openai"),
	}, nil
}

func (c *OpenAIClient) buildRequest(req schemas.GenerationRequest) chatRequest {
	temp := req.Options.Temperature
	if temp == 0 {
		temp = float64(c.cfg.Temperature)
	}
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: temp,
		TopP:        req.Options.TopP,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if req.Options.ForceJSONFormat {
		payload.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}
	return payload
}

// Generate sends one chat completion. No retries; the caller decides.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", transportError("openai", fmt.Errorf("rate limiter: %w", err))
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(c.buildRequest(req)).
		Post("/chat/completions")
	if err != nil {
		return "", transportError("openai", err)
	}
	if resp.IsError() {
		c.logger.Error("OpenAI API returned error status", zap.Int("status", resp.StatusCode()))
		return "", statusError("openai", resp.StatusCode(), resp.String())
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", newError(ErrMalformedResponse, "openai", err.Error())
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", newError(ErrMalformedResponse, "openai", "response has no choices")
	}

	c.logger.Info("LLM generation complete (OpenAI)",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.Int("total_tokens", out.Usage.TotalTokens))
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Close() error { return nil }
