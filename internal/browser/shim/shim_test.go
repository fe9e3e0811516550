// internal/browser/shim/shim_test.go
package shim_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/xkilldash9x/jobfill/internal/browser/shim"
)

func TestBuildListener(t *testing.T) {
	t.Parallel()

	mockTemplate := `(function (root, config) { root[config.entry] = 1; })(this, /*{{JOBFILL_LISTENER_CONFIG}}*/);`

	t.Run("injects the encoded config", func(t *testing.T) {
		t.Parallel()
		script, err := BuildListener(mockTemplate, ListenerConfig{Entry: "run", Binding: "done", RequestType: "REQ", ResultType: "RES"})
		require.NoError(t, err)
		assert.Equal(t,
			`(function (root, config) { root[config.entry] = 1; })(this, {"entry":"run","binding":"done","requestType":"REQ","resultType":"RES"});`,
			script)
	})

	t.Run("empty template", func(t *testing.T) {
		t.Parallel()
		_, err := BuildListener("", DefaultListenerConfig())
		assert.EqualError(t, err, "template is empty")
	})

	t.Run("missing placeholder", func(t *testing.T) {
		t.Parallel()
		_, err := BuildListener("var config = {};", DefaultListenerConfig())
		assert.EqualError(t, err, fmt.Sprintf("template does not contain the required placeholder: %s", ConfigPlaceholder))
	})

	t.Run("names are required", func(t *testing.T) {
		t.Parallel()
		_, err := BuildListener(mockTemplate, ListenerConfig{Entry: "run"})
		assert.Error(t, err)
	})
}

func TestEmbeddedScripts(t *testing.T) {
	t.Parallel()

	tmpl, err := ListenerTemplate()
	require.NoError(t, err)
	assert.Contains(t, tmpl, ConfigPlaceholder)

	for _, name := range []string{"__setInputValue", "__setTextareaValue", "__setSelectValue", "__setChecked", "__clickElement", "__getById", "__getByName"} {
		assert.Contains(t, Helpers(), name)
	}
	assert.Contains(t, Library(), "__jobfill")

	script, err := ExecutorScript(DefaultListenerConfig())
	require.NoError(t, err)
	assert.NotContains(t, script, ConfigPlaceholder)
	assert.Contains(t, script, `"requestType":"AUTOFILL_EXECUTE_CODE"`)
	assert.Contains(t, script, `"resultType":"AUTOFILL_EXECUTION_RESULT"`)
}
