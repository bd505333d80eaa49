package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"claim-rag/internal/models"
)

const (
	IndexFile    = "chunks.index"
	MetadataFile = "chunks.meta.json"
	ManifestFile = "manifest.yaml"

	flatMagic   = "CRIX"
	flatVersion = 1
)

// FlatStore keeps every vector in memory and searches exhaustively with L2
// distance. On disk it is three files written together: the raw vectors, the
// chunk metadata in the same order, and the manifest.
type FlatStore struct {
	dir string

	mu       sync.RWMutex
	loaded   bool
	manifest *Manifest
	chunks   []models.Chunk
	vectors  [][]float32
}

func NewFlatStore(dir string) *FlatStore {
	return &FlatStore{dir: dir}
}

func (s *FlatStore) Name() string { return "flat" }

func (s *FlatStore) path(name string) string { return filepath.Join(s.dir, name) }

func (s *FlatStore) Exists(ctx context.Context) (bool, error) {
	for _, name := range []string{IndexFile, MetadataFile, ManifestFile} {
		if _, err := os.Stat(s.path(name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

func (s *FlatStore) Manifest(ctx context.Context) (*Manifest, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := *s.manifest
	return &m, nil
}

func (s *FlatStore) Save(ctx context.Context, chunks []models.Chunk, vectors [][]float32, m *Manifest) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", models.ErrMisaligned, len(chunks), len(vectors))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeVectors(&buf, vectors, m.Dimension); err != nil {
		return err
	}
	meta, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	// The manifest goes last: a reader that sees it sees a complete pair.
	os.Remove(s.path(ManifestFile))
	if err := writeFileAtomic(s.path(IndexFile), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := writeFileAtomic(s.path(MetadataFile), meta); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := WriteManifest(s.path(ManifestFile), m); err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded = true
	s.manifest = m
	s.chunks = chunks
	s.vectors = vectors
	s.mu.Unlock()
	log.Info().Str("dir", s.dir).Int("chunks", len(chunks)).Msg("Saved flat index")
	return nil
}

func (s *FlatStore) Search(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.manifest.CheckDimension(len(query)); err != nil {
		return nil, err
	}
	return nearest(s.chunks, s.vectors, query, k), nil
}

func (s *FlatStore) Close() error { return nil }

func (s *FlatStore) load() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	m, err := ReadManifest(s.path(ManifestFile))
	if err != nil {
		return err
	}

	f, err := os.Open(s.path(IndexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.ErrIndexNotFound
		}
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()
	vectors, dim, err := decodeVectors(bufio.NewReader(f))
	if err != nil {
		return err
	}

	meta, err := os.ReadFile(s.path(MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.ErrIndexNotFound
		}
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(meta, &chunks); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	if len(chunks) != len(vectors) || m.ChunkCount != len(chunks) {
		return fmt.Errorf("%w: %d vectors, %d metadata entries, manifest says %d", models.ErrMisaligned, len(vectors), len(chunks), m.ChunkCount)
	}
	if len(vectors) > 0 && dim != m.Dimension {
		return fmt.Errorf("%w: index dimension %d, manifest says %d", models.ErrMisaligned, dim, m.Dimension)
	}

	s.manifest = m
	s.chunks = chunks
	s.vectors = vectors
	s.loaded = true
	log.Debug().Str("dir", s.dir).Int("chunks", len(chunks)).Int("dimension", dim).Msg("Loaded flat index")
	return nil
}

func encodeVectors(w io.Writer, vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	header := []uint32{flatVersion, uint32(dim), uint32(len(vectors))}
	if _, err := io.WriteString(w, flatMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, v := range vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeVectors(r io.Reader) ([][]float32, int, error) {
	magic := make([]byte, len(flatMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, 0, fmt.Errorf("failed to read index header: %w", err)
	}
	if string(magic) != flatMagic {
		return nil, 0, fmt.Errorf("not a flat index file")
	}
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to read index header: %w", err)
	}
	if header[0] != flatVersion {
		return nil, 0, fmt.Errorf("unsupported index version %d", header[0])
	}
	dim, count := int(header[1]), int(header[2])

	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, 0, fmt.Errorf("%w: index truncated at vector %d: %v", models.ErrMisaligned, i, err)
		}
		vectors[i] = v
	}
	return vectors, dim, nil
}

// nearest ranks every vector by L2 distance to query. Ties keep index order.
func nearest(chunks []models.Chunk, vectors [][]float32, query []float32, k int) []models.Hit {
	if k <= 0 {
		k = models.DefaultTopK
	}
	hits := make([]models.Hit, len(vectors))
	for i, v := range vectors {
		hits[i] = models.Hit{Chunk: chunks[i], Distance: L2(query, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// L2 returns the Euclidean distance between a and b over their common length.
func L2(a, b []float32) float64 {
	var sum float64
	for i := range min(len(a), len(b)) {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
