// internal/llmclient/errors.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Failure kinds. Every backend error unwraps to exactly one of these.
var (
	ErrAuth              = errors.New("llm: missing or rejected API key")
	ErrRateLimited       = errors.New("llm: rate limit or quota exceeded")
	ErrTimeout           = errors.New("llm: request timed out")
	ErrMalformedResponse = errors.New("llm: malformed response")
	ErrUnavailable       = errors.New("llm: backend unavailable")
)

// APIError is a typed model-call failure.
type APIError struct {
	Kind       error
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v: %s", e.Provider, e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Kind }

func newError(kind error, provider, msg string) *APIError {
	return &APIError{Kind: kind, Provider: provider, Message: msg}
}

// statusError classifies a non-2xx response.
func statusError(provider string, status int, body string) error {
	kind := ErrUnavailable
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrAuth
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = ErrTimeout
	}
	return &APIError{Kind: kind, Provider: provider, StatusCode: status, Message: truncate(body, 300)}
}

// transportError classifies a failure that produced no response.
func transportError(provider string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrTimeout, provider, err.Error())
	case errors.As(err, &netErr) && netErr.Timeout():
		return newError(ErrTimeout, provider, err.Error())
	case errors.Is(err, syscall.ECONNREFUSED):
		return newError(ErrUnavailable, provider, err.Error())
	case errors.Is(err, context.Canceled):
		return err
	}
	return newError(ErrUnavailable, provider, err.Error())
}

// UserMessage maps a model error to the text shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "API 키가 없거나 올바르지 않습니다. 설정에서 API 키를 확인하세요."
	case errors.Is(err, ErrRateLimited):
		return "API 사용량 한도를 초과했습니다. 잠시 후 다시 시도하세요."
	case errors.Is(err, ErrTimeout):
		return "AI 응답 시간 초과. 서버가 과부하 상태일 수 있습니다."
	case errors.Is(err, ErrMalformedResponse):
		return "AI 응답을 해석할 수 없습니다."
	case errors.Is(err, ErrUnavailable):
		return "AI 모델을 사용할 수 없습니다. 로컬 모델이 실행 중인지 확인하세요."
	case errors.Is(err, context.Canceled):
		return "AI 요청이 취소되었습니다."
	}
	return "AI 요청 실패: " + err.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
