// internal/llmclient/llmclient_test.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
)

// -- Test Cases: OpenAI backend --

func TestOpenAIClientGenerate(t *testing.T) {
	var captured chatRequest
	server := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"code\":\"x\"}"}}],"usage":{"total_tokens":12}}`)
	})
	logger, logs := setupTestLogger(t)

	client, err := NewOpenAIClient(getValidModelConfig(server.URL), "", nil, logger)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"code":"x"}`, out)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "User query.", captured.Messages[1].Content)
	assert.InDelta(t, 0.1, captured.Temperature, 1e-9)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	assert.Equal(t, 1, logs.FilterMessage("LLM generation complete (OpenAI)").Len())
}

func TestOpenAIClientMissingKey(t *testing.T) {
	cfg := getValidModelConfig("http://127.0.0.1:1")
	cfg.APIKey = ""
	_, err := NewOpenAIClient(cfg, "", nil, nil)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestOpenAIClientErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, ErrAuth},
		{"forbidden", http.StatusForbidden, `{}`, ErrAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error":"quota"}`, ErrRateLimited},
		{"gateway timeout", http.StatusGatewayTimeout, ``, ErrTimeout},
		{"server error", http.StatusInternalServerError, `oops`, ErrUnavailable},
		{"undecodable body", http.StatusOK, `not json`, ErrMalformedResponse},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			client, err := NewOpenAIClient(getValidModelConfig(server.URL), "", nil, nil)
			require.NoError(t, err)

			_, err = client.Generate(context.Background(), createTestRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "openai", apiErr.Provider)
		})
	}
}

func TestOpenAIClientTimeout(t *testing.T) {
	server := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client, err := NewOpenAIClient(getValidModelConfig(server.URL), "", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, createTestRequest())
	assert.ErrorIs(t, err, ErrTimeout)
}

// -- Test Cases: Local backend --

func TestLocalClientGenerate(t *testing.T) {
	var captured localRequest
	server := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		fmt.Fprint(w, `{"response":"{\"code\":\"y\"}","done":true}`)
	})
	client, err := NewLocalClient(getValidModelConfig(server.URL), "", nil, nil)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"code":"y"}`, out)
	assert.Equal(t, "json", captured.Format)
	assert.False(t, captured.Stream)
	assert.Equal(t, 1, captured.Options.TopK)
	assert.InDelta(t, 0.1, captured.Options.Temperature, 1e-6)
	assert.Equal(t, "System prompt instructions.", captured.System)
}

func TestLocalClientUnavailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client, err := NewLocalClient(getValidModelConfig("http://"+addr), "", nil, nil)
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), createTestRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
}

// -- Test Cases: Gemini backend --

func TestGeminiClientGenerate(t *testing.T) {
	server := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/test-model:generateContent"), r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "application/json")
		assert.Contains(t, string(body), "System prompt instructions.")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"code\":\"z\"}"}]},"finishReason":"STOP"}],`+
			`"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":4,"totalTokenCount":7}}`)
	})
	client, err := NewGeminiClient(context.Background(), getValidModelConfig(server.URL), "", nil, nil)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"code":"z"}`, out)
}

func TestGeminiClientMissingKey(t *testing.T) {
	cfg := getValidModelConfig("")
	cfg.APIKey = ""
	_, err := NewGeminiClient(context.Background(), cfg, "", nil, nil)
	assert.ErrorIs(t, err, ErrAuth)
}

// -- Test Cases: Router --

func setupRouter(t *testing.T) (*LLMRouter, *MockLLMClient, *MockLLMClient) {
	t.Helper()
	logger, _ := setupTestLogger(t)
	fast := &MockLLMClient{Name: "fast"}
	powerful := &MockLLMClient{Name: "powerful"}
	router, err := NewLLMRouter(logger, fast, powerful)
	require.NoError(t, err)
	return router, fast, powerful
}

func TestNewLLMRouterMissingClients(t *testing.T) {
	valid := new(MockLLMClient)
	tests := []struct {
		name           string
		fast, powerful schemas.LLMClient
	}{
		{"missing fast", nil, valid},
		{"missing powerful", valid, nil},
		{"missing both", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewLLMRouter(nil, tt.fast, tt.powerful)
			assert.Error(t, err)
			assert.Nil(t, router)
		})
	}
}

func TestRouterRoutesByTier(t *testing.T) {
	router, fast, powerful := setupRouter(t)

	fast.On("Generate", mock.Anything, mock.MatchedBy(func(r schemas.GenerationRequest) bool {
		return r.Tier == schemas.TierFast
	})).Return("fast answer", nil).Once()
	powerful.On("Generate", mock.Anything, mock.Anything).Return("powerful answer", nil).Twice()

	out, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	require.NoError(t, err)
	assert.Equal(t, "fast answer", out)

	out, err = router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierPowerful})
	require.NoError(t, err)
	assert.Equal(t, "powerful answer", out)

	// Unspecified tier defaults to powerful.
	_, err = router.Generate(context.Background(), schemas.GenerationRequest{})
	require.NoError(t, err)

	fast.AssertExpectations(t)
	powerful.AssertExpectations(t)
}

func TestRouterDeadlineBecomesTimeout(t *testing.T) {
	router, fast, _ := setupRouter(t)
	router.SetDeadline(schemas.TierFast, 20*time.Millisecond)

	fast.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.DeadlineExceeded).Once()

	_, err := router.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRouterCloseOnce(t *testing.T) {
	logger, _ := setupTestLogger(t)
	shared := &MockLLMClient{}
	shared.On("Close").Return(nil).Once()
	router, err := NewLLMRouter(logger, shared, shared)
	require.NoError(t, err)
	require.NoError(t, router.Close())
	shared.AssertExpectations(t)
}

// -- Test Cases: Factory --

func TestNewClientBuildsRouter(t *testing.T) {
	cfg := config.NewDefaultConfig().LLM()
	cfg.API = getValidModelConfig("http://127.0.0.1:1")

	router, err := NewClient(context.Background(), cfg, config.ModeAPI, nil)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, router.deadlines[schemas.TierPowerful])
	assert.Equal(t, 30*time.Second, router.deadlines[schemas.TierFast])
	assert.Equal(t, "test-model", router.clients[schemas.TierPowerful].(*OpenAIClient).model)
	assert.Equal(t, "test-model-mini", router.clients[schemas.TierFast].(*OpenAIClient).model)
}

func TestNewClientErrors(t *testing.T) {
	cfg := config.NewDefaultConfig().LLM()

	_, err := NewClient(context.Background(), cfg, "mystery", nil)
	assert.Error(t, err)

	cfg.API.APIKey = ""
	_, err = NewClient(context.Background(), cfg, config.ModeAPI, nil)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestNewLimiter(t *testing.T) {
	assert.True(t, NewLimiter(0).Allow())
	l := NewLimiter(60)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

// -- Test Cases: User messages --

func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(&APIError{Kind: ErrAuth, Provider: "openai"}), "API 키")
	assert.Contains(t, UserMessage(fmt.Errorf("wrapped: %w", &APIError{Kind: ErrRateLimited})), "한도")
	assert.Contains(t, UserMessage(&APIError{Kind: ErrTimeout}), "시간 초과")
	assert.Contains(t, UserMessage(&APIError{Kind: ErrMalformedResponse}), "해석")
	assert.Contains(t, UserMessage(&APIError{Kind: ErrUnavailable}), "사용할 수 없습니다")
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "AI 요청 실패: boom", UserMessage(errors.New("boom")))
}
