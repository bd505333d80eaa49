package index

import (
	"context"

	"claim-rag/internal/models"
)

// Store persists chunk vectors with their metadata and answers
// nearest-neighbour queries. Vector i always belongs to chunk i.
type Store interface {
	Name() string
	// Exists reports whether a complete index has been saved.
	Exists(ctx context.Context) (bool, error)
	// Manifest returns models.ErrIndexNotFound when nothing has been saved.
	Manifest(ctx context.Context) (*Manifest, error)
	// Save replaces any existing index.
	Save(ctx context.Context, chunks []models.Chunk, vectors [][]float32, m *Manifest) error
	// Search returns at most k hits ordered by increasing Euclidean distance.
	Search(ctx context.Context, query []float32, k int) ([]models.Hit, error)
	Close() error
}
