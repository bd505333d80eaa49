package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"claim-rag/internal/index"
	"claim-rag/internal/models"
)

var errNoEmbeddingFunc = errors.New("chromem collection only accepts precomputed embeddings")

// Store keeps chunks in a persistent chromem-go collection. chromem ranks by
// cosine similarity on normalized vectors; the distance reported on hits is
// the Euclidean distance between those normalized vectors.
type Store struct {
	db             *chromem.DB
	dir            string
	collectionName string
}

// NewStore opens (or creates) the chromem database in dir/chromem. The
// manifest lives beside it, outside the directory chromem owns.
func NewStore(dir, collectionName string, compress bool) (*Store, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "chromem"), compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return &Store{db: db, dir: dir, collectionName: collectionName}, nil
}

func (s *Store) Name() string { return "chromem" }

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, s.collectionName+"."+index.ManifestFile)
}

func (s *Store) collection() *chromem.Collection {
	return s.db.GetCollection(s.collectionName, noEmbed)
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	m, err := index.ReadManifest(s.manifestPath())
	if errors.Is(err, models.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c := s.collection()
	if c == nil {
		return m.ChunkCount == 0, nil
	}
	return c.Count() == m.ChunkCount, nil
}

func (s *Store) Manifest(ctx context.Context) (*index.Manifest, error) {
	return index.ReadManifest(s.manifestPath())
}

func (s *Store) Save(ctx context.Context, chunks []models.Chunk, vectors [][]float32, m *index.Manifest) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", models.ErrMisaligned, len(chunks), len(vectors))
	}
	if s.collection() != nil {
		if err := s.db.DeleteCollection(s.collectionName); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}
	c, err := s.db.GetOrCreateCollection(s.collectionName, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:      chunk.Key(),
			Content: chunk.Text,
			Metadata: map[string]string{
				"source":      chunk.Source,
				"chunk_id":    strconv.Itoa(chunk.ChunkID),
				"page_number": strconv.Itoa(chunk.PageNumber),
			},
			Embedding: vectors[i],
		}
	}
	if len(docs) > 0 {
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %w", err)
		}
	}
	if err := index.WriteManifest(s.manifestPath(), m); err != nil {
		return err
	}
	log.Info().Str("collection", s.collectionName).Int("chunks", len(docs)).Msg("Saved chromem collection")
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
	c := s.collection()
	if c == nil {
		return nil, models.ErrIndexNotFound
	}
	if k <= 0 {
		k = models.DefaultTopK
	}
	// chromem rejects nResults above the collection size.
	k = min(k, c.Count())
	if k == 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]models.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.Hit{
			Chunk:    chunkFromResult(r),
			Distance: cosineToL2(r.Similarity),
		})
	}
	return hits, nil
}

func (s *Store) Close() error { return nil }

// Export writes the collection to a single (optionally encrypted) file.
func (s *Store) Export(path string, compress bool, encryptionKey string) error {
	if err := s.db.ExportToFile(path, compress, encryptionKey, s.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func chunkFromResult(r chromem.Result) models.Chunk {
	chunkID, _ := strconv.Atoi(r.Metadata["chunk_id"])
	page, _ := strconv.Atoi(r.Metadata["page_number"])
	return models.Chunk{
		Source:     r.Metadata["source"],
		ChunkID:    chunkID,
		Text:       r.Content,
		PageNumber: page,
	}
}

// cosineToL2 converts a cosine similarity between unit vectors into their
// Euclidean distance.
func cosineToL2(similarity float32) float64 {
	return math.Sqrt(math.Max(0, 2-2*float64(similarity)))
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}
