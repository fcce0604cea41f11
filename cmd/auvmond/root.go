package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "auvmond",
	Short: "AUV telemetry ingestion and alerting pipeline",
	Long:  "auvmond ingests AUV telemetry, evaluates alert rules against each record, and streams alerts and telemetry to live subscribers.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
