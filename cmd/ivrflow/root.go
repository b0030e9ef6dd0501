package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/ivrflow/internal/config"
	"github.com/aretw0/ivrflow/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    = config.Default()
	logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "ivrflow",
	Short: "ivrflow designs, validates and versions IVR call flows",
	Long: `ivrflow models telephone call scripts as directed graphs of typed nodes.
It validates flow definitions, exports them as diagrams and serves the
flow version store over HTTP and MCP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			loaded.LogLevel = lvl
		}
		level, err := config.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.NewWith(os.Stderr, level, loaded.LogFormat)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "ivrflow.yaml", "Path to the settings file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the settings file")
}
