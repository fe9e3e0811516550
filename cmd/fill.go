// File: cmd/fill.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/autofill"
	"github.com/xkilldash9x/jobfill/internal/matcher"
	"github.com/xkilldash9x/jobfill/internal/observability"
)

// newFillCmd creates and configures the `fill` command.
func newFillCmd() *cobra.Command {
	var (
		spec     targetSpec
		out      string
		yes      bool
		strategy string
		watch    bool
	)

	fillCmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill a form deterministically from the saved profile",
		Long: `Matches every form field on the page to a profile value by label, id, name,
placeholder and nearby text, then writes the values with framework-compatible events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if strategy != "" {
				cfg.SetMatcherStrategy(strategy)
			}
			logger := observability.GetLogger()

			scorer, err := matcher.FromConfig(cfg.Matcher())
			if err != nil {
				return err
			}

			env, err := prepare(ctx, cfg, spec, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			notifier := autofill.MultiNotifier{
				autofill.NewConsoleNotifier(cmd.OutOrStdout()),
				autofill.NewLogNotifier(logger),
			}
			orch, err := autofill.New(env.target.adapter, scorer, cfg.Injector(), notifier, logger)
			if err != nil {
				return err
			}
			orch.SetObserver(func(state schemas.RunState, section string) {
				logger.Debug("Fill state.", zap.String("state", string(state)), zap.String("section", section))
			})

			trigger, err := autofill.NewTrigger(orch, env.source, logger)
			if err != nil {
				return err
			}
			trigger.Prime(env.profile)
			if !yes {
				trigger.SetConfirm(func(context.Context) (bool, error) {
					return confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "이 페이지를 자동완성할까요? [y/N] ")
				})
			}

			summary, err := trigger.Fire(ctx)
			if errors.Is(err, autofill.ErrDeclined) {
				fmt.Fprintln(cmd.OutOrStdout(), "취소되었습니다.")
				return nil
			}
			if err != nil && !errors.Is(err, autofill.ErrNoProfile) {
				return err
			}
			logger.Info("Fill finished.",
				zap.String("run_id", summary.RunID),
				zap.Int("filled", summary.Filled),
				zap.Int("section_errors", summary.SectionErrors),
				zap.Duration("duration", summary.Duration))

			writeOut := func(ctx context.Context) error {
				if out == "" {
					return nil
				}
				if err := env.target.WriteMarkup(ctx, out); err != nil {
					return fmt.Errorf("failed to write filled page: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "filled page written to %s\n", out)
				return nil
			}
			if err := writeOut(ctx); err != nil {
				return err
			}

			if watch {
				return watchAndRefill(ctx, cmd.OutOrStdout(), trigger, writeOut, logger)
			}
			return nil
		},
	}

	fillCmd.Flags().StringVar(&spec.URL, "url", "", "page to fill")
	fillCmd.Flags().StringVar(&spec.HTML, "html", "", "local HTML file to fill")
	fillCmd.Flags().BoolVar(&spec.Live, "live", false, "open the page in Chrome instead of the offline session")
	fillCmd.Flags().StringVarP(&out, "out", "o", "", "write the filled document to this file")
	fillCmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	fillCmd.Flags().StringVar(&strategy, "strategy", "", "matcher strategy: weighted or occurrence")
	fillCmd.Flags().BoolVar(&watch, "watch", false, "refill whenever the saved profile changes")
	return fillCmd
}

// watchAndRefill refills the page on every profile change until ctx ends.
// writeOut runs after each refill so a written copy follows the page.
func watchAndRefill(ctx context.Context, w io.Writer, trigger *autofill.Trigger, writeOut func(context.Context) error, logger *zap.Logger) error {
	trigger.SetConfirm(nil)
	trigger.OnRefresh = func(p *schemas.Profile) {
		fmt.Fprintln(w, "프로필이 변경되었습니다. 다시 자동완성합니다.")
		if _, err := trigger.Fire(ctx); err != nil && !errors.Is(err, autofill.ErrNoProfile) {
			logger.Warn("Refill failed.", zap.Error(err))
			return
		}
		if err := writeOut(ctx); err != nil {
			logger.Warn("Could not rewrite the filled page.", zap.Error(err))
		}
	}
	fmt.Fprintln(w, "watching the profile for changes (Ctrl+C to stop)")
	return trigger.Watch(ctx)
}

// confirm reads a yes/no answer. Anything but y or yes is a no.
func confirm(r io.Reader, w io.Writer, prompt string) (bool, error) {
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "예", "네":
		return true, nil
	}
	return false, nil
}
