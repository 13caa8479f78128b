// -----------------------------------------------------------------------
// Last Modified: Friday, 9th October 2026 2:41:18 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple -config flags supported
	serverPort  int
	serverHost  string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Agent ensemble portfolio advisor",
	Long: `Advisor assigns predictive models to specialised analysis agents, runs them as an
ensemble and synthesises their decisions into ranked insights and recommendations.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	common.LoadVersionFromFile()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence shared by every subcommand (REQUIRED ORDER):
// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Initialize logger
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("advisor.toml"); err == nil {
			configFiles = append(configFiles, "advisor.toml")
		} else if _, err := os.Stat("deployments/local/advisor.toml"); err == nil {
			// Fallback: check deployments/local for users running from project root
			configFiles = append(configFiles, "deployments/local/advisor.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		if len(configFiles) == 0 {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return fmt.Errorf("failed to load configuration files %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)

	// analyze prints its result on stdout, keep the console free of log lines
	if cmd.Name() == analyzeCmd.Name() {
		config.Logging.Output = []string{"file"}
	}

	logger = common.SetupLogger(config)
	common.InstallCrashHandler(config.Logging.Dir)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_type", config.Storage.Type).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("model_provider", config.Models.Provider).
		Msg("Resolved configuration (sanitized)")

	return nil
}
