package cmd

import (
	"github.com/spf13/cobra"
	"nvr-orchestrator/config"
	server2 "nvr-orchestrator/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and event feed",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
