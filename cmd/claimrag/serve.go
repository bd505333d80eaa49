package main

import (
	"time"

	"github.com/spf13/cobra"

	"claim-rag/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the claim adjudication HTTP server.

If no index exists yet it is built from the data directory before the
server starts listening.

Endpoints:
  POST /query      form field "query" (optional "file", "top_k")
  POST /chat       {"messages": [{"role", "content"}]}
  POST /summarize  {"text": "..."}
  GET  /health
  GET  /ready

Examples:
  claimrag serve
  claimrag serve --port 9000
  claimrag serve --config ./configs/prod.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		r, err := openRAG(ctx, true)
		if err != nil {
			return err
		}
		defer r.Close()

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		attempts := max(int(cfg.Retry.Attempts), 1)
		srv, err := server.New(server.Config{
			Host:         host,
			Port:         port,
			TopK:         cfg.Index.TopK,
			WriteTimeout: time.Duration(cfg.LLM.TimeoutSecs*attempts)*time.Second + time.Minute,
			Service:      r,
		})
		if err != nil {
			return err
		}
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8000", "Port to listen on")
}
