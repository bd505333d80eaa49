package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"claim-rag/internal/index"
	"claim-rag/internal/models"
)

func init() {
	sqlite_vec.Auto()
}

const manifestKey = "manifest"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY,
	source      TEXT NOT NULL,
	chunk_id    INTEGER NOT NULL,
	page_number INTEGER NOT NULL,
	content     TEXT NOT NULL
);
`

// Store is a SQLite database with a sqlite-vec vec0 table. Row i of chunks
// and rowid i of vec_chunks describe the same chunk.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath and initializes the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "sqlitevec" }

func (s *Store) Exists(ctx context.Context) (bool, error) {
	_, err := s.Manifest(ctx)
	if errors.Is(err, models.ErrIndexNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Manifest(ctx context.Context) (*index.Manifest, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", manifestKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, models.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m index.Manifest
	if err := yaml.Unmarshal([]byte(value), &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func (s *Store) Save(ctx context.Context, chunks []models.Chunk, vectors [][]float32, m *index.Manifest) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", models.ErrMisaligned, len(chunks), len(vectors))
	}
	manifest, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM meta WHERE key = '" + manifestKey + "'",
		"DROP TABLE IF EXISTS vec_chunks",
		"DELETE FROM chunks",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if len(chunks) > 0 {
		create := fmt.Sprintf("CREATE VIRTUAL TABLE vec_chunks USING vec0(embedding float[%d])", m.Dimension)
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("create vec table: %w", err)
		}
		if err := insertChunks(ctx, tx, chunks, vectors); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		manifestKey, string(manifest),
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info().Int("chunks", len(chunks)).Msg("Saved sqlite-vec index")
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []models.Chunk, vectors [][]float32) error {
	chunkStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (id, source, chunk_id, page_number, content) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx, "INSERT INTO vec_chunks (rowid, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i, c := range chunks {
		if _, err := chunkStmt.ExecContext(ctx, i, c.Source, c.ChunkID, c.PageNumber, c.Text); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.Key(), err)
		}
		blob, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %s: %w", c.Key(), err)
		}
		if _, err := vecStmt.ExecContext(ctx, i, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %s: %w", c.Key(), err)
		}
	}
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
	if m.ChunkCount == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = models.DefaultTopK
	}
	if k > m.ChunkCount {
		k = m.ChunkCount
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.distance, c.source, c.chunk_id, c.page_number, c.content
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []models.Hit
	for rows.Next() {
		var h models.Hit
		if err := rows.Scan(&h.Distance, &h.Chunk.Source, &h.Chunk.ChunkID, &h.Chunk.PageNumber, &h.Chunk.Text); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
