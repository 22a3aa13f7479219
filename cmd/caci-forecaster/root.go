package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "caci-forecaster",
	Short:        "One-hour-ahead CACI forecaster for ThingSpeak telemetry",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, predictCmd)
}
