package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"claim-rag/internal/config"
	"claim-rag/internal/parser"
	"claim-rag/internal/rag"
)

const (
	defaultConfigPath = "./configs/config.yaml"
	version           = "0.1.0"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "claimrag",
	Short: "Insurance claim adjudication over policy documents",
	Long: `claimrag indexes insurance policy documents and answers claim queries
with a language model, citing the policy clauses it retrieved.

Commands:
  serve      HTTP API (/query, /chat, /summarize)
  index      (re)build the clause index
  query      decide a single claim from the command line
  summarize  rewrite a clause in plain English
  mcp        expose the tools over MCP stdio
  config     write a default config file`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		setupLogging(cfg.Log)
		log.Debug().Interface("config", redacted(cfg)).Msg("Loaded config")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, indexCmd, queryCmd, summarizeCmd, mcpCmd, configCmd)
}

// setupLogging writes to stderr so stdout stays free for command output and
// the MCP protocol.
func setupLogging(lc config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil || lc.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if lc.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func redacted(c *config.Config) config.Config {
	out := *c
	if out.Embedding.OpenAI.Key != "" {
		out.Embedding.OpenAI.Key = "***"
	}
	if out.LLM.OpenAI.Key != "" {
		out.LLM.OpenAI.Key = "***"
	}
	if out.Database.DSN != "" {
		out.Database.DSN = "***"
	}
	return out
}

// openRAG builds the pipeline and makes sure a usable index exists, building
// it from the data directory when it does not.
func openRAG(ctx context.Context, ensureIndex bool) (*rag.RAG, error) {
	r, err := rag.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !ensureIndex {
		return r, nil
	}
	ingestor, err := parser.NewIngestor(cfg.Ingest)
	if err != nil {
		r.Close()
		return nil, err
	}
	if _, err := r.EnsureIndex(ctx, ingestor); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}
