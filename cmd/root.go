// Package cmd defines the askai command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "askai",
	Short: "askai - Ask AI agent service for docs and analytics",
	Long: `askai answers questions about product documentation and sales analytics
through a planning agent with human-in-the-loop tool approval.

Run "askai serve" to start the HTTP API, or "askai migrate" to apply
database migrations.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
