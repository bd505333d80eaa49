package main

import (
	"strings"

	"github.com/spf13/cobra"

	"claim-rag/internal/helper"
)

var (
	queryTopK       int
	querySearchOnly bool
)

var queryCmd = &cobra.Command{
	Use:   "query <claim description>",
	Short: "Decide a claim and print the decision as JSON",
	Example: `  claimrag query "46-year-old male, knee surgery in Pune, 3-month-old insurance policy"
  claimrag query --search-only -k 3 "maternity waiting period"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		r, err := openRAG(ctx, true)
		if err != nil {
			return err
		}
		defer r.Close()

		if querySearchOnly {
			hits, err := r.Retrieve(ctx, query, queryTopK)
			if err != nil {
				return err
			}
			return helper.PrettyPrint(cmd.OutOrStdout(), hits)
		}

		decision, err := r.Decide(ctx, query, queryTopK)
		if err != nil {
			return err
		}
		return helper.PrettyPrint(cmd.OutOrStdout(), decision)
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of clauses to retrieve (default index.top_k)")
	queryCmd.Flags().BoolVar(&querySearchOnly, "search-only", false, "print the retrieved clauses without calling the model")
}
