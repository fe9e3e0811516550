// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/observability"
)

type ctxKey int

const configKey ctxKey = iota

// NewRootCommand builds a fresh command tree. Each call is independent, so
// tests and repeated invocations never share flag state.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

// newRootCmd returns the root command and a pointer to the config it loads
// before any subcommand runs.
func newRootCmd() (*cobra.Command, *config.Interface) {
	var (
		cfgFile     string
		profilePath string
		appConfig   config.Interface
	)

	rootCmd := &cobra.Command{
		Use:           "jobfill",
		Short:         "jobfill fills Korean job-application forms from your saved profile.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				basicLogger, _ := zap.NewDevelopment()
				defer basicLogger.Sync()
				basicLogger.Error("Failed to initialize configuration", zap.Error(err))
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "jobfill"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			if profilePath != "" {
				cfg.SetProfilePath(profilePath)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting jobfill", zap.String("version", Version))

			appConfig = cfg
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, appConfig))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./jobfill.yaml or ~/.jobfill/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "p", "", "profile file, overrides profile.path")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newFillCmd(),
		newAIFillCmd(),
		newValidateCodeCmd(),
		newProfileCmd(),
		newVersionCmd(),
	)
	return rootCmd, &appConfig
}

// Execute runs the command tree with the signal-aware ctx from main.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Warn("Command aborted.")
		return err
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	return err
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.jobfill")
		v.SetConfigName("jobfill")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("JOBFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}
	return nil
}

// configFrom returns the config PersistentPreRunE stored on the context.
func configFrom(cmd *cobra.Command) (config.Interface, error) {
	cfg, ok := cmd.Context().Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
