// Command trellis loads part catalogs and grows aggregations from them.
package main

import (
	"os"

	"github.com/chazu/trellis/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "trellis",
	Short:         "connection-driven part aggregation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the config file")
	rootCmd.AddCommand(cmdCheck, cmdGrow, cmdSnapshot)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the defaults when path is empty, and applies
// the --log-level override.
func loadConfig(path string) (config.Config, *logrus.Logger, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, nil, err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}
