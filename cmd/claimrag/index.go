package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"claim-rag/internal/helper"
	"claim-rag/internal/parser"
)

var (
	indexDataDir   string
	indexExport    string
	indexExportKey string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the clause index from the data directory",
	Long: `Parse every recognized document in the data directory, embed the chunks
and replace the configured index with the result. The manifest of the new
index is printed on success.

With --export the rebuilt index is also written to a single file. Only the
chromem store supports this; the file is encrypted when --export-key is set.

Examples:
  claimrag index
  claimrag index --data-dir ./policies
  claimrag index --export ./backup/policy_clauses.gob.gz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if indexDataDir != "" {
			cfg.Ingest.DataDir = indexDataDir
		}

		ingestor, err := parser.NewIngestor(cfg.Ingest)
		if err != nil {
			return err
		}
		r, err := openRAG(ctx, false)
		if err != nil {
			return err
		}
		defer r.Close()

		m, err := r.Rebuild(ctx, ingestor)
		if err != nil {
			return err
		}
		if indexExport != "" {
			if err := r.Export(indexExport, indexExportKey); err != nil {
				return err
			}
			log.Info().Str("path", indexExport).Msg("Index exported")
		}
		return helper.PrettyPrint(cmd.OutOrStdout(), m)
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDataDir, "data-dir", "", "directory of policy documents (overrides ingest.data_dir)")
	indexCmd.Flags().StringVar(&indexExport, "export", "", "also write the index to this file (chromem store only)")
	indexCmd.Flags().StringVar(&indexExportKey, "export-key", "", "32-byte key to encrypt the export with")
}
