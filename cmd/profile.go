// File: cmd/profile.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/observability"
	"github.com/xkilldash9x/jobfill/internal/profile"
)

const masked = "********"

func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect or import the saved applicant profile",
	}
	profileCmd.AddCommand(newProfileShowCmd(), newProfileImportCmd())
	return profileCmd
}

func newProfileShowCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the normalized profile as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			src, closeSource, err := profile.Open(ctx, cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			defer closeSource()

			p, err := src.Load(ctx)
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "저장된 데이터가 없습니다.")
				return nil
			}
			if !reveal {
				p = redact(p)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(p)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secrets (password, API key) in clear")
	return cmd
}

// redact returns a copy with secrets masked.
func redact(p *schemas.Profile) *schemas.Profile {
	out := *p
	if p.PersonalInfo != nil {
		pi := *p.PersonalInfo
		if pi.Password != "" {
			pi.Password = masked
		}
		if len(pi.Photo) > 64 {
			pi.Photo = pi.Photo[:64] + "..."
		}
		out.PersonalInfo = &pi
	}
	if p.AISettings != nil {
		ai := *p.AISettings
		if ai.APIKey != "" {
			ai.APIKey = masked
		}
		out.AISettings = &ai
	}
	return &out
}

func newProfileImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Store a YAML or JSON profile in the configured profile source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			p, err := profile.Decode(args[0], data)
			if err != nil {
				return err
			}

			if cfg.Profile().Source == config.SourcePostgres {
				st, closeStore, err := profile.OpenStore(ctx, cfg, logger)
				if err != nil {
					return err
				}
				defer closeStore()
				if err := st.SaveProfile(ctx, schemas.ProfileStorageKey, p); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "profile imported into the database")
				return nil
			}

			dest, err := cfg.Profile().ExpandedPath()
			if err != nil {
				return err
			}
			if err := writeProfileFile(dest, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile imported to %s\n", dest)
			return nil
		},
	}
}

// writeProfileFile encodes p in the format the destination extension names
// and replaces the file atomically so a watcher never sees half a document.
func writeProfileFile(dest string, p *schemas.Profile) error {
	var (
		data []byte
		err  error
	)
	switch filepath.Ext(dest) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	default:
		data, err = jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".profile-*")
	if err != nil {
		return fmt.Errorf("failed to stage profile: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
