package index

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"claim-rag/internal/embedding"
	"claim-rag/internal/models"
)

// ChunkSource produces the chunks to index.
type ChunkSource interface {
	Ingest(ctx context.Context) ([]models.Chunk, error)
}

// Builder ingests, embeds and saves the corpus in one pass.
type Builder struct {
	source    ChunkSource
	backend   *embedding.Backend
	store     Store
	batchSize int
}

func NewBuilder(source ChunkSource, backend *embedding.Backend, store Store, batchSize int) *Builder {
	return &Builder{source: source, backend: backend, store: store, batchSize: batchSize}
}

// Build replaces the store's contents with a fresh index of the corpus. An
// empty corpus produces an empty index that returns no hits.
func (b *Builder) Build(ctx context.Context) (*Manifest, error) {
	start := time.Now()
	chunks, err := b.source.Ingest(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	if len(chunks) == 0 {
		log.Warn().Msg("No chunks found, building an empty index")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := b.backend.EmbedDocuments(ctx, texts, b.batchSize)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Backend:    b.backend.Name,
		Model:      b.backend.Model,
		ChunkCount: len(chunks),
		Store:      b.store.Name(),
		BuiltAt:    time.Now().UTC(),
	}
	if len(vectors) > 0 {
		m.Dimension = len(vectors[0])
	}

	if err := b.store.Save(ctx, chunks, vectors, m); err != nil {
		return nil, fmt.Errorf("failed to save %s index: %w", b.store.Name(), err)
	}
	log.Info().
		Int("chunks", m.ChunkCount).
		Int("dimension", m.Dimension).
		Str("backend", m.Identity()).
		Str("store", m.Store).
		Dur("took", time.Since(start)).
		Msg("Index built")
	return m, nil
}
