package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"teralink/internal"
	"teralink/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resolve API",
	Long: `Run the HTTP API.

  GET /                 service info
  GET /api?url=<share>  resolve a share link

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			config.Listen = listenAddr
		}

		linkResolver, err := buildResolver()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		internal.LogInfo("%s %s starting", server.ServiceName, server.Version)
		return server.NewServer(config, linkResolver).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", internal.DefaultConfig().Listen, "Address to listen on (env: TERALINK_LISTEN)")
}
