// Root command for the pickplace CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/pickplace/internal/paths"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagVerbose   bool
)

var (
	// logger is built by PersistentPreRunE.
	logger = zap.NewNop()

	// cfg holds the loaded config.yaml; set by PersistentPreRunE.
	cfg *settings
)

var rootCmd = &cobra.Command{
	Use:           "pickplace",
	Short:         "Language-driven pick-and-place for a simulated arm",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if flagVerbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := zc.Build()
		if err != nil {
			return sysError(fmt.Errorf("failed to initialize logger: %w", err))
		}
		logger = l

		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		configDir, err := resolveConfigDir()
		if err != nil {
			return sysError(err)
		}
		v, err := loadConfig(configDir)
		if err != nil {
			return userError(err)
		}
		s, err := decodeSettings(v)
		if err != nil {
			return userError(fmt.Errorf("config %s: %w", configDir, err))
		}
		cfg = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory for the trajectory cache and task journal")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(historyCmd)
}

// resolveDataDir returns the data directory: --data-dir > config.yaml
// data_dir > PICKPLACE_DATA_DIR > platform default.
func resolveDataDir() (string, error) {
	configValue := ""
	if cfg != nil {
		configValue = cfg.DataDir
	}
	return paths.ResolveDataDir(flagDataDir, configValue)
}

// resolveConfigDir returns the configuration directory: --config-dir >
// PICKPLACE_CONFIG_DIR > platform default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
