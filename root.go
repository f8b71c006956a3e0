package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "parking-checkout",
	Short: "Checkout gateway for the smart parking backend",
	Long: `parking-checkout keeps a live fee estimate for each open parking
checkout and submits its payment to the parking backend exactly once.
Configuration is read from the environment and an optional .env file.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override LOG_FORMAT (json, text)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
