package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"claim-rag/internal/helper"
	"claim-rag/internal/llmservice"
	"claim-rag/internal/rag"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [clause text]",
	Short: "Rewrite a policy clause in plain English",
	Long: `Rewrite a policy clause in plain English. The clause is taken from the
arguments, or from stdin when no arguments are given.`,
	Example: `  claimrag summarize "The Company shall indemnify the Insured..."
  pdftotext -f 3 -l 3 policy.pdf - | claimrag summarize`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text := strings.Join(args, " ")
		if len(args) == 0 {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = string(b)
		}

		// Summarizing needs only the model, not the index or embeddings.
		llm, err := llmservice.New(cfg.LLM, cfg.Retry)
		if err != nil {
			return err
		}
		summary, err := rag.NewSummarizer(llm).Summarize(ctx, text)
		if err != nil {
			return err
		}
		return helper.PrettyPrint(cmd.OutOrStdout(), summary)
	},
}
