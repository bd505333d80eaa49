package main

import (
	"github.com/spf13/cobra"

	"claim-rag/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing claim tools over stdio",
	Long: `Start an MCP server on stdin/stdout with the tools decide_claim,
search_clauses and summarize_clause. The index is built first if missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRAG(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer r.Close()

		return mcpserver.Serve(r, version, cfg.Index.TopK)
	},
}
