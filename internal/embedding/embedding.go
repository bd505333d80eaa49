package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"claim-rag/internal/config"
)

const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendAuto   = "auto"
)

// Embedder is the subset of langchaingo's embeddings.Embedder the service uses.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Backend is a resolved embedding backend. Name and Model identify it in the
// index manifest; vectors from two different identities are not comparable.
type Backend struct {
	Name     string
	Model    string
	embedder Embedder
	retry    config.RetryConfig
}

// NewBackend wraps an existing embedder, mainly for tests and alternative
// providers.
func NewBackend(name, model string, e Embedder, rc config.RetryConfig) *Backend {
	return &Backend{Name: name, Model: model, embedder: e, retry: rc}
}

// Identity returns "name:model".
func (b *Backend) Identity() string {
	return b.Name + ":" + b.Model
}

// Resolve builds the configured embedding backend. With "auto" the OpenAI
// embedder is tried first and Ollama is used when it cannot be constructed,
// typically because no API key is set.
func Resolve(cfg config.EmbeddingConfig, rc config.RetryConfig) (*Backend, error) {
	switch cfg.Backend {
	case BackendOpenAI:
		return newOpenAI(cfg.OpenAI, rc)
	case BackendOllama:
		return newOllama(cfg.Ollama, rc)
	case BackendAuto, "":
		b, err := newOpenAI(cfg.OpenAI, rc)
		if err == nil {
			return b, nil
		}
		log.Warn().Err(err).Str("fallback", cfg.Ollama.Model).Msg("OpenAI embedder unavailable, using local Ollama embedder")
		return newOllama(cfg.Ollama, rc)
	default:
		return nil, fmt.Errorf("unknown embedding backend: %q", cfg.Backend)
	}
}

func newOpenAI(cfg config.OpenAIConfig, rc config.RetryConfig) (*Backend, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai embedder: %w", err)
	}
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Using OpenAI embedder")
	return NewBackend(BackendOpenAI, cfg.Model, embedder, rc), nil
}

func newOllama(cfg config.OllamaConfig, rc config.RetryConfig) (*Backend, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama embedder: %w", err)
	}
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Using Ollama embedder")
	return NewBackend(BackendOllama, cfg.Model, embedder, rc), nil
}

// EmbedQuery embeds a single query string.
func (b *Backend) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := b.do(ctx, func() error {
		v, err := b.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return vec, nil
}

// EmbedDocuments embeds texts in batches of batchSize, preserving order.
func (b *Backend) EmbedDocuments(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := texts[start:end]

		var out [][]float32
		err := b.do(ctx, func() error {
			v, err := b.embedder.EmbedDocuments(ctx, batch)
			if err != nil {
				return err
			}
			if len(v) != len(batch) {
				return retry.Unrecoverable(fmt.Errorf("embedder returned %d vectors for %d texts", len(v), len(batch)))
			}
			out = v
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, out...)
		log.Debug().Int("done", end).Int("total", len(texts)).Msg("Embedded batch")
	}
	return vectors, nil
}

func (b *Backend) do(ctx context.Context, fn func() error) error {
	attempts := b.retry.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Duration(b.retry.DelayMillis)*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("backend", b.Identity()).Msg("Embedding call failed, retrying")
		}),
	)
}
