// Package mcpserver exposes claim adjudication as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"claim-rag/internal/models"
)

type Service interface {
	Decide(ctx context.Context, query string, k int) (*models.Decision, error)
	Retrieve(ctx context.Context, query string, k int) ([]models.Hit, error)
	Summarize(ctx context.Context, text string) (*models.ClauseSummary, error)
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

// New builds the MCP server with all tools registered.
func New(svc Service, version string, defaultK int) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("claimrag", version, mcpserver.WithToolCapabilities(false))
	s.AddTool(decideClaimTool(), makeDecideHandler(svc, defaultK))
	s.AddTool(searchClausesTool(), makeSearchHandler(svc, defaultK))
	s.AddTool(summarizeClauseTool(), makeSummarizeHandler(svc))
	return s
}

// Serve blocks serving MCP over stdin/stdout.
func Serve(svc Service, version string, defaultK int) error {
	return mcpserver.ServeStdio(New(svc, version, defaultK))
}

func decideClaimTool() mcp.Tool {
	return mcp.NewTool("decide_claim",
		mcp.WithDescription("Decide an insurance claim against the indexed policy documents. Returns JSON with decision, amount, justification and the clauses used."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Claim description, e.g. '46-year-old male, knee surgery in Pune, 3-month-old policy'"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of policy clauses to consider (default 5)"),
		),
	)
}

func searchClausesTool() mcp.Tool {
	return mcp.NewTool("search_clauses",
		mcp.WithDescription("Find the policy clauses most relevant to a query, closest first, with source file and page."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of clauses to return (default 5)"),
		),
	)
}

func summarizeClauseTool() mcp.Tool {
	return mcp.NewTool("summarize_clause",
		mcp.WithDescription("Rewrite a legal or policy clause in plain English with a confidence score."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The clause text"),
		),
	)
}

func makeDecideHandler(svc Service, defaultK int) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.TrimSpace(req.GetString("query", ""))
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		decision, err := svc.Decide(ctx, query, positive(req.GetInt("k", defaultK), defaultK))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("decision failed: %v", err)), nil
		}
		res, err := jsonResult(decision)
		if err == nil && decision.Failed() {
			// The raw model reply is still returned so the caller can inspect it.
			res.IsError = true
		}
		return res, err
	}
}

func makeSearchHandler(svc Service, defaultK int) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.TrimSpace(req.GetString("query", ""))
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		hits, err := svc.Retrieve(ctx, query, positive(req.GetInt("k", defaultK), defaultK))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatHits(query, hits)), nil
	}
}

func makeSummarizeHandler(svc Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summary, err := svc.Summarize(ctx, req.GetString("text", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("summarize failed: %v", err)), nil
		}
		return jsonResult(summary)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func positive(k, fallback int) int {
	if k <= 0 {
		return fallback
	}
	return k
}

func formatHits(query string, hits []models.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No clauses found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Clauses for %q (%d)\n\n", query, len(hits))
	for i, h := range hits {
		fmt.Fprintf(&sb, "### Clause %d: %s, page %d (chunk %d)\n\n", i+1, h.Chunk.Source, h.Chunk.PageNumber, h.Chunk.ChunkID)
		fmt.Fprintf(&sb, "**Distance:** %.4f\n\n%s\n\n", h.Distance, h.Chunk.Text)
	}
	return sb.String()
}
