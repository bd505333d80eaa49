package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"claim-rag/internal/config"
	"claim-rag/internal/models"
)

// Ingestor turns a directory of policy documents into page-tagged chunks.
type Ingestor struct {
	dataDir    string
	chunkSize  int
	extensions map[string]struct{}
}

func NewIngestor(cfg config.IngestConfig) (*Ingestor, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = models.DefaultChunkSize
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".pdf"}
	}
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !Supported(ext) {
			return nil, fmt.Errorf("unsupported file format: %s", ext)
		}
		exts[ext] = struct{}{}
	}
	return &Ingestor{dataDir: cfg.DataDir, chunkSize: cfg.ChunkSize, extensions: exts}, nil
}

// Files lists the recognized documents directly under the data directory,
// sorted by name so chunk order is reproducible.
func (in *Ingestor) Files() ([]string, error) {
	entries, err := os.ReadDir(in.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", in.dataDir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := in.extensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Ingest parses every recognized document and returns its chunks. A document
// that fails to parse aborts the whole run.
func (in *Ingestor) Ingest(ctx context.Context) ([]models.Chunk, error) {
	files, err := in.Files()
	if err != nil {
		return nil, err
	}

	var all []models.Chunk
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := in.IngestFile(filepath.Join(in.dataDir, name))
		if err != nil {
			return nil, err
		}
		log.Info().Str("file", name).Int("chunks", len(chunks)).Msg("Ingested document")
		all = append(all, chunks...)
	}
	return all, nil
}

// IngestFile chunks a single document. Chunk ids run from 0 across all pages
// of the document.
func (in *Ingestor) IngestFile(filePath string) ([]models.Chunk, error) {
	pages, err := ExtractPages(filePath)
	if err != nil {
		return nil, err
	}
	source := filepath.Base(filePath)

	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range ChunkText(page.Text, in.chunkSize) {
			chunks = append(chunks, models.Chunk{
				Source:     source,
				ChunkID:    len(chunks),
				Text:       text,
				PageNumber: page.Number,
			})
		}
	}
	return chunks, nil
}
