// Package cmd implements the finmesh command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/finmesh/config"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "finmesh",
		Short:         "Multi-agent financial advice for the Indian market",
		Long:          "finmesh runs a researcher and an advisor agent over a user's question and stored portfolio, and answers with structured, source-backed advice.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config-file", "", "config file (toml, yaml or json)")
	flags.StringSlice("env-file", nil, "dotenv files to load (default .env)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or console")
	flags.String("provider", config.ProviderGemini, "model provider: gemini, openai, anthropic or mock")
	flags.String("model", "gemini-2.0-flash", "model name")
	flags.String("db-driver", "", "portfolio database driver: postgres or sqlite3 (default in-memory)")
	flags.String("db-dsn", "", "portfolio database DSN")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newAskCmd(),
		newMigrateCmd(),
	)

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFiles, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, err
	}

	return config.Load(config.LoadOptions{
		EnvFiles: envFiles,
		Flags:    cmd.Flags(),
	})
}
