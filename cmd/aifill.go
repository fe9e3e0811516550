// File: cmd/aifill.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/aifill"
	"github.com/xkilldash9x/jobfill/internal/autofill"
	"github.com/xkilldash9x/jobfill/internal/browser/jsexec"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/injector"
	"github.com/xkilldash9x/jobfill/internal/llmclient"
	"github.com/xkilldash9x/jobfill/internal/observability"
)

// newAIFillCmd creates and configures the `ai-fill` command.
func newAIFillCmd() *cobra.Command {
	var (
		spec     targetSpec
		out      string
		yes      bool
		mode     string
		executor string
	)

	aiCmd := &cobra.Command{
		Use:   "ai-fill",
		Short: "Let a language model write and run the fill code for a page",
		Long: `Sends the page markup and the profile to the configured model, checks the
returned JavaScript against the denylist, runs it in the page and then asks the
model which fields are still wrong. Remaining suggestions can be applied interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if executor != "" {
				cfg.SetExecutorContext(executor)
			}
			switch cfg.Executor().Context {
			case config.ExecutorPage:
				spec.Live = true
			case config.ExecutorSandbox:
				spec.Live = false
			default:
				return fmt.Errorf("--executor must be %q or %q", config.ExecutorPage, config.ExecutorSandbox)
			}
			logger := observability.GetLogger()
			stdin := bufio.NewReader(cmd.InOrStdin())

			env, err := prepare(ctx, cfg, spec, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			if mode != "" {
				cfg.SetLLMMode(mode)
			} else {
				applyProfileAISettings(cfg, env.profile)
			}
			if s := env.profile; s != nil && s.AISettings != nil {
				// A key from the config or environment wins over the profile's.
				key := s.AISettings.APIKey
				if mc, ok := cfg.LLM().ModelFor(cfg.LLM().Mode); ok && mc.APIKey != "" {
					key = ""
				}
				cfg.OverrideModel(cfg.LLM().Mode, key, s.AISettings.Model)
			}

			llm, err := llmclient.NewClient(ctx, cfg.LLM(), cfg.LLM().Mode, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize LLM client: %w", err)
			}
			defer llm.Close()

			var exec aifill.Executor
			if env.target.session != nil {
				sandbox, err := jsexec.New(env.target.session, logger)
				if err != nil {
					return err
				}
				exec = sandbox
			} else {
				exec = env.target.page.Executor()
			}

			notifier := autofill.MultiNotifier{
				autofill.NewConsoleNotifier(cmd.OutOrStdout()),
				autofill.NewLogNotifier(logger),
			}
			pipeline, err := aifill.New(
				env.target.adapter,
				llm,
				aifill.NewBridge(exec, cfg.Executor().Timeout, logger),
				injector.New(env.target.adapter, cfg.Injector(), logger),
				notifier,
				aifill.Options{
					MaxMarkupChars: cfg.Page().MaxMarkupChars,
					MaxCodeSize:    cfg.Executor().MaxCodeSize,
					SettleDelay:    cfg.LLM().SettleDelay,
				},
				logger,
			)
			if err != nil {
				return err
			}
			pipeline.SetObserver(func(s aifill.State) {
				logger.Info("AI fill state.", zap.String("state", string(s)))
			})

			if !yes {
				ok, err := confirm(stdin, cmd.OutOrStdout(), "AI로 이 페이지를 자동완성할까요? [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "취소되었습니다.")
					return nil
				}
			}

			res, err := pipeline.Run(ctx, env.profile)
			if errors.Is(err, autofill.ErrNoProfile) {
				return nil
			}
			if err != nil {
				return err
			}
			logger.Info("AI fill finished.",
				zap.String("run_id", res.RunID),
				zap.String("state", string(res.State)),
				zap.Int("suggestions", len(res.Suggestions)),
				zap.Duration("duration", res.Duration))

			if res.State == aifill.StateAwaitingUserAction {
				if err := applySuggestions(ctx, stdin, cmd.OutOrStdout(), pipeline, yes); err != nil {
					return err
				}
			}

			if out != "" {
				if err := env.target.WriteMarkup(ctx, out); err != nil {
					return fmt.Errorf("failed to write filled page: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "filled page written to %s\n", out)
			}
			return nil
		},
	}

	aiCmd.Flags().StringVar(&spec.URL, "url", "", "page to fill")
	aiCmd.Flags().StringVar(&spec.HTML, "html", "", "local HTML file to fill")
	aiCmd.Flags().StringVarP(&out, "out", "o", "", "write the filled document to this file")
	aiCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip prompts and apply the first suggestion for every field")
	aiCmd.Flags().StringVar(&mode, "mode", "", "model backend: api, gemini or local")
	aiCmd.Flags().StringVar(&executor, "executor", "", "where generated code runs: page (Chrome) or sandbox (offline)")
	return aiCmd
}

// applyProfileAISettings adopts the backend chosen in the profile editor
// when no flag overrides it.
func applyProfileAISettings(cfg config.Interface, p *schemas.Profile) {
	if p == nil || p.AISettings == nil || p.AISettings.Mode == "" {
		return
	}
	if _, ok := cfg.LLM().ModelFor(p.AISettings.Mode); ok {
		cfg.SetLLMMode(p.AISettings.Mode)
	}
}

// applySuggestions walks the user through the remaining fields. With auto
// set the first candidate of each field is taken.
func applySuggestions(ctx context.Context, r io.Reader, w io.Writer, p *aifill.Pipeline, auto bool) error {
	in := bufio.NewScanner(r)
	for _, idx := range p.Pending() {
		entry, ok := p.Suggestions(idx)
		if !ok {
			continue
		}
		label := entry.Label
		if label == "" {
			label = entry.Selector
		}

		choice := 0
		if !auto {
			fmt.Fprintf(w, "\n[%s] %s\n", idx, label)
			for i, v := range entry.Suggestions {
				fmt.Fprintf(w, "  %d) %s\n", i+1, injector.Truncate(v))
			}
			fmt.Fprint(w, "번호를 선택하세요 (건너뛰려면 Enter): ")
			if !in.Scan() {
				return in.Err()
			}
			text := strings.TrimSpace(in.Text())
			if text == "" {
				continue
			}
			n, err := strconv.Atoi(text)
			if err != nil || n < 1 || n > len(entry.Suggestions) {
				fmt.Fprintln(w, "잘못된 선택입니다. 건너뜁니다.")
				continue
			}
			choice = n - 1
		}

		rec, err := p.ApplySuggestion(ctx, idx, choice)
		if err != nil {
			return err
		}
		mark := "✓"
		if !rec.Success {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s = %s\n", mark, label, rec.DisplayValue)
	}
	return nil
}
