package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"claim-rag/internal/config"
	"claim-rag/internal/embedding"
	"claim-rag/internal/index"
	"claim-rag/internal/jsonparse"
	"claim-rag/internal/llmservice"
	"claim-rag/internal/models"
)

// ErrExportUnsupported is returned by Export for stores without a file export.
var ErrExportUnsupported = errors.New("index store does not support export")

// Generator is the language model as the service sees it.
type Generator interface {
	Prompt(ctx context.Context, system, user string) (string, error)
	Chat(ctx context.Context, history []models.ChatMessage) (string, error)
}

// RAG answers claim queries against one index with one embedding backend and
// one model. It is safe for concurrent use once the index is ready.
type RAG struct {
	cfg     *config.Config
	backend *embedding.Backend
	store   index.Store
	llm     Generator

	decisionSchema *jsonparse.Validator
	summarizer     *Summarizer

	mu       sync.RWMutex
	manifest *index.Manifest
}

// New resolves the embedding backend, opens the configured store and
// connects the model.
func New(ctx context.Context, cfg *config.Config) (*RAG, error) {
	backend, err := embedding.Resolve(cfg.Embedding, cfg.Retry)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", backend.Identity()).Msg("Embedding backend resolved")

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	llm, err := llmservice.New(cfg.LLM, cfg.Retry)
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Info().Str("model", llm.Name()).Str("store", store.Name()).Msg("RAG service ready")
	return NewRAG(cfg, backend, store, llm), nil
}

func NewRAG(cfg *config.Config, backend *embedding.Backend, store index.Store, llm Generator) *RAG {
	return &RAG{
		cfg:            cfg,
		backend:        backend,
		store:          store,
		llm:            llm,
		decisionSchema: jsonparse.MustValidator("decision", jsonparse.DecisionSchema),
		summarizer:     NewSummarizer(llm),
	}
}

// EnsureIndex loads the existing index or builds one from source when none
// exists or a previous save did not complete. An index built with another
// embedding backend is rebuilt when index.rebuild_on_mismatch is set and
// rejected otherwise.
func (r *RAG) EnsureIndex(ctx context.Context, source index.ChunkSource) (*index.Manifest, error) {
	complete, err := r.store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !complete {
		log.Info().Str("store", r.store.Name()).Msg("No complete index found, building")
		return r.Rebuild(ctx, source)
	}

	m, err := r.store.Manifest(ctx)
	switch {
	case errors.Is(err, models.ErrIndexNotFound):
		log.Info().Str("store", r.store.Name()).Msg("No index found, building")
		return r.Rebuild(ctx, source)
	case err != nil:
		return nil, err
	}

	if err := m.CheckBackend(r.backend.Name, r.backend.Model); err != nil {
		if !r.cfg.Index.RebuildOnMismatch {
			return nil, err
		}
		log.Warn().Err(err).Msg("Rebuilding index for the current embedding backend")
		return r.Rebuild(ctx, source)
	}

	log.Info().Str("store", m.Store).Int("chunks", m.ChunkCount).Str("backend", m.Identity()).Msg("Index found")
	r.setManifest(m)
	return m, nil
}

// Rebuild indexes source from scratch.
func (r *RAG) Rebuild(ctx context.Context, source index.ChunkSource) (*index.Manifest, error) {
	m, err := index.NewBuilder(source, r.backend, r.store, r.cfg.Index.BatchSize).Build(ctx)
	if err != nil {
		return nil, err
	}
	r.setManifest(m)
	return m, nil
}

// Ready reports whether an index compatible with the backend is loaded.
func (r *RAG) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest != nil
}

// Manifest returns the loaded manifest, reading it from the store on first use.
func (r *RAG) Manifest(ctx context.Context) (*index.Manifest, error) {
	r.mu.RLock()
	m := r.manifest
	r.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	m, err := r.store.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.CheckBackend(r.backend.Name, r.backend.Model); err != nil {
		return nil, err
	}
	r.setManifest(m)
	return m, nil
}

func (r *RAG) setManifest(m *index.Manifest) {
	r.mu.Lock()
	r.manifest = m
	r.mu.Unlock()
}

// Retrieve returns the k chunks nearest to query, closest first. k <= 0
// means the configured default.
func (r *RAG) Retrieve(ctx context.Context, query string, k int) ([]models.Hit, error) {
	if k <= 0 {
		k = r.cfg.Index.TopK
	}
	m, err := r.Manifest(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := r.backend.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := m.CheckDimension(len(vec)); err != nil {
		return nil, err
	}

	hits, err := r.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	log.Debug().Str("query", query).Int("k", k).Int("hits", len(hits)).Msg("Retrieved clauses")
	return hits, nil
}

// exporter is implemented by stores that can write themselves to one file.
type exporter interface {
	Export(path string, compress bool, encryptionKey string) error
}

// Export writes the index to a single portable file when the configured
// store supports it.
func (r *RAG) Export(path, encryptionKey string) error {
	e, ok := r.store.(exporter)
	if !ok {
		return fmt.Errorf("%w: %s", ErrExportUnsupported, r.store.Name())
	}
	return e.Export(path, r.cfg.Index.Compress, encryptionKey)
}

func (r *RAG) Close() error {
	return r.store.Close()
}
