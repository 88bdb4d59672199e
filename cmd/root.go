package cmd

import (
	"github.com/spf13/cobra"
	"nvr-orchestrator/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nvr-orchestrator",
		Short: "route camera events to clip summarization and search indexing",
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(rules(config))
	return rootCmd
}
