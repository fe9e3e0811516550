// internal/browser/shim/shim.go
package shim

import (
	_ "embed"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

const (
	// ConfigPlaceholder is replaced in the listener template with the JSON configuration.
	ConfigPlaceholder = "/*{{JOBFILL_LISTENER_CONFIG}}*/"

	// DefaultEntry is the global the host calls with an execution request.
	DefaultEntry = "__jobfillExecute"
	// DefaultBinding is the global the listener reports results through.
	DefaultBinding = "__jobfillResult"
)

var (
	//go:embed js/helpers.js
	helpersJS string
	//go:embed js/listener.js
	listenerJS string
	//go:embed js/jobfill.js
	libraryJS string
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ListenerConfig names the globals shared between the host and the listener.
type ListenerConfig struct {
	Entry       string `json:"entry"`
	Binding     string `json:"binding"`
	RequestType string `json:"requestType"`
	ResultType  string `json:"resultType"`
}

// DefaultListenerConfig uses the standard globals and bridge message types.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Entry:       DefaultEntry,
		Binding:     DefaultBinding,
		RequestType: schemas.MessageExecuteCode,
		ResultType:  schemas.MessageExecutionResult,
	}
}

// BuildListener injects cfg into template.
func BuildListener(template string, cfg ListenerConfig) (string, error) {
	if template == "" {
		return "", fmt.Errorf("template is empty")
	}
	if !strings.Contains(template, ConfigPlaceholder) {
		return "", fmt.Errorf("template does not contain the required placeholder: %s", ConfigPlaceholder)
	}
	if cfg.Entry == "" || cfg.Binding == "" {
		return "", fmt.Errorf("listener entry and binding names are required")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode listener config: %w", err)
	}
	return strings.Replace(template, ConfigPlaceholder, string(raw), 1), nil
}

// ListenerTemplate returns the embedded listener source.
func ListenerTemplate() (string, error) {
	if listenerJS == "" {
		return "", fmt.Errorf("embedded listener.js template is empty or failed to load")
	}
	return listenerJS, nil
}

// Helpers returns the page helper functions exposed to generated code.
func Helpers() string { return helpersJS }

// Library returns the keyed DOM library used to drive a live tab.
func Library() string { return libraryJS }

// ExecutorScript concatenates the helpers and a configured listener, ready to
// be evaluated in a page or a sandbox VM.
func ExecutorScript(cfg ListenerConfig) (string, error) {
	tmpl, err := ListenerTemplate()
	if err != nil {
		return "", err
	}
	listener, err := BuildListener(tmpl, cfg)
	if err != nil {
		return "", err
	}
	return helpersJS + "\n;\n" + listener, nil
}
