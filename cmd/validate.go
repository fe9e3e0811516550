// File: cmd/validate.go
package cmd

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/jobfill/internal/aifill"
)

func newValidateCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-code FILE",
		Short: "Check a generated fill script against the execution denylist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}
			code := string(data)

			err = aifill.NewValidator(cfg.Executor().MaxCodeSize).Validate(code)
			var verr *aifill.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s\n", verr.Capability)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d characters, no denied capability\n", utf8.RuneCountInString(code))
			return nil
		},
	}
}
