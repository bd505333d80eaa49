package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"claim-rag/internal/chromemdb"
	"claim-rag/internal/config"
	"claim-rag/internal/db"
	"claim-rag/internal/index"
	"claim-rag/internal/sqlitevec"
)

// NewStore opens the store selected by index.store.
func NewStore(ctx context.Context, cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Store {
	case "flat", "":
		return index.NewFlatStore(cfg.Index.Dir), nil
	case "chromem":
		s, err := chromemdb.NewStore(cfg.Index.Dir, cfg.Index.Collection, cfg.Index.Compress)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlitevec":
		if err := os.MkdirAll(cfg.Index.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		s, err := sqlitevec.Open(filepath.Join(cfg.Index.Dir, cfg.Index.Collection+".db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "pgvector":
		s, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown index store: %q", cfg.Index.Store)
	}
}
