// -- cmd/root.go --
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/internal/config"
	"github.com/xkilldash9x/eid-agent/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "eid-agent",
	Short:   "eid-agent automates an E-ID portal with a human in the loop for captchas.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; it conventionally carries GEMINI_API_KEY.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "eid-agent"})
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cfg.Oracle.APIKey == "" {
			cfg.Oracle.APIKey = os.Getenv("GEMINI_API_KEY")
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting eid-agent", zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
