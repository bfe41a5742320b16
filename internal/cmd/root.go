// Package cmd implements the gogenie command tree.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/internal/config"
	"github.com/3leaps/gogenie/internal/observability"
	"github.com/3leaps/gogenie/internal/server/handlers"
)

const binaryName = "gogenie"

type buildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = buildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

var (
	cfgFile  string
	logLevel string

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Finalize Genie jobs after their process exits",
	Long: `gogenie finalizes finished Genie jobs.

For every finished job it resolves the final status from the done file,
reclaims the leftover process group, archives the working directory and
notifies the submitter. Each step is isolated; a failing step never blocks
the others.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// SetVersionInfo records build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// Execute runs the root command.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		observability.CLILogger.Error("Command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var overrides []map[string]any
	if lvl := strings.TrimSpace(logLevel); lvl != "" {
		overrides = append(overrides, map[string]any{"logging": map[string]any{"level": lvl}})
	}

	cfg, err := config.LoadFile(cmd.Context(), cfgFile, overrides...)
	if err != nil {
		return err
	}
	if err := observability.InitCLILogger(cfg.Logging.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	appConfig = cfg
	return nil
}
