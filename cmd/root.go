/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agribusiness-pro/apiserver/config"
	"github.com/agribusiness-pro/apiserver/internal/logging"
)

var (
	cfg     config.Config
	logger  *zap.Logger
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agribiz",
	Short: "AgriBusiness Pro API server and session client",
	Long: `agribiz runs the AgriBusiness Pro identity and dashboard API and
provides a command line session client for it.

	agribiz migrate up
	agribiz server
	agribiz session login --email john@farm.com`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if verbose {
			cfg.Log.Level = "debug"
		}

		var err error
		logger, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
