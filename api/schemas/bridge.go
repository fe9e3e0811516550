// File: api/schemas/bridge.go
package schemas

// Message types exchanged with the page-context listener.
const (
	MessageExecuteCode     = "AUTOFILL_EXECUTE_CODE"
	MessageExecutionResult = "AUTOFILL_EXECUTION_RESULT"
)

// ExecuteRequest asks the page context to run generated code.
type ExecuteRequest struct {
	Type        string `json:"type"`
	ExecutionID string `json:"executionId"`
	Code        string `json:"code"`
}

// ExecuteResult is the correlated reply. A runtime error inside the code is
// reported as Success with a Warning since statements before it may have
// already filled fields.
type ExecuteResult struct {
	Type        string `json:"type"`
	ExecutionID string `json:"executionId"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Warning     string `json:"warning,omitempty"`
}
