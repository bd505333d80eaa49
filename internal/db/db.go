package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"claim-rag/internal/config"
	"claim-rag/internal/index"
	"claim-rag/internal/models"
)

const insertBatchSize = 500

// PolicyChunk is one indexed chunk. Position is the chunk's place in the
// ingestion order and ties embedding to metadata.
type PolicyChunk struct {
	bun.BaseModel `bun:"table:policy_chunks,alias:pc"`
	Position      int             `bun:"position,pk"`
	Source        string          `bun:"source,notnull"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	PageNumber    int             `bun:"page_number,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector"`
	Distance      float64         `bun:"distance,scanonly"`
}

type IndexManifest struct {
	bun.BaseModel `bun:"table:index_manifest"`
	ID            int       `bun:"id,pk"`
	Backend       string    `bun:"backend,notnull"`
	Model         string    `bun:"model,notnull"`
	Dimension     int       `bun:"dimension,notnull"`
	ChunkCount    int       `bun:"chunk_count,notnull"`
	Store         string    `bun:"store,notnull"`
	BuiltAt       time.Time `bun:"built_at,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with bun's pgdriver or, when driver is "pq",
// with lib/pq.
func ConnectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "pq" {
		return sql.Open("postgres", cfg.DSN)
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	for _, model := range []any{(*PolicyChunk)(nil), (*IndexManifest)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Store serves the index from PostgreSQL with exact L2 search (pgvector <->).
type Store struct {
	db *bun.DB
}

// Open connects and prepares the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Name() string { return "pgvector" }

func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.db.NewSelect().Model((*IndexManifest)(nil)).Where("id = 1").Exists(ctx)
}

func (s *Store) Manifest(ctx context.Context) (*index.Manifest, error) {
	var row IndexManifest
	err := s.db.NewSelect().Model(&row).Where("id = 1").Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, models.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return &index.Manifest{
		Backend:    row.Backend,
		Model:      row.Model,
		Dimension:  row.Dimension,
		ChunkCount: row.ChunkCount,
		Store:      row.Store,
		BuiltAt:    row.BuiltAt,
	}, nil
}

func (s *Store) Save(ctx context.Context, chunks []models.Chunk, vectors [][]float32, m *index.Manifest) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", models.ErrMisaligned, len(chunks), len(vectors))
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*IndexManifest)(nil)).Where("TRUE").Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*PolicyChunk)(nil)).Where("TRUE").Exec(ctx); err != nil {
			return err
		}

		rows := make([]PolicyChunk, len(chunks))
		for i, c := range chunks {
			rows[i] = PolicyChunk{
				Position:   i,
				Source:     c.Source,
				ChunkID:    c.ChunkID,
				PageNumber: c.PageNumber,
				Content:    c.Text,
				Embedding:  pgvector.NewVector(vectors[i]),
			}
		}
		for start := 0; start < len(rows); start += insertBatchSize {
			batch := rows[start:min(start+insertBatchSize, len(rows))]
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert chunks: %w", err)
			}
		}

		manifest := &IndexManifest{
			ID:         1,
			Backend:    m.Backend,
			Model:      m.Model,
			Dimension:  m.Dimension,
			ChunkCount: m.ChunkCount,
			Store:      m.Store,
			BuiltAt:    m.BuiltAt,
		}
		_, err := tx.NewInsert().Model(manifest).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	log.Info().Int("chunks", len(chunks)).Msg("Saved pgvector index")
	return nil
}

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	m, err := s.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.CheckDimension(len(query)); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = models.DefaultTopK
	}

	vec := pgvector.NewVector(query)
	var rows []PolicyChunk
	err = s.db.NewSelect().
		Model(&rows).
		Column("position", "source", "chunk_id", "page_number", "content").
		ColumnExpr("embedding <-> ? AS distance", vec).
		OrderExpr("embedding <-> ?", vec).
		OrderExpr("position").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	hits := make([]models.Hit, len(rows))
	for i, r := range rows {
		hits[i] = models.Hit{
			Chunk: models.Chunk{
				Source:     r.Source,
				ChunkID:    r.ChunkID,
				Text:       r.Content,
				PageNumber: r.PageNumber,
			},
			Distance: r.Distance,
		}
	}
	return hits, nil
}

// DropAll removes both tables.
func (s *Store) DropAll(ctx context.Context) error {
	for _, model := range []any{(*PolicyChunk)(nil), (*IndexManifest)(nil)} {
		if _, err := s.db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
