package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claim-rag/internal/config"
)

type fakeEmbedder struct {
	calls    [][]string
	failures int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection refused")
	}
	f.calls = append(f.calls, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func TestEmbedDocuments_BatchesInOrder(t *testing.T) {
	fake := &fakeEmbedder{}
	b := NewBackend("fake", "m1", fake, config.RetryConfig{Attempts: 1})

	vecs, err := b.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"}, 2)
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Len(t, fake.calls, 3)
	assert.Equal(t, []string{"eeeee"}, fake.calls[2])
}

func TestEmbedQuery_RetriesTransientFailure(t *testing.T) {
	fake := &fakeEmbedder{failures: 2}
	b := NewBackend("fake", "m1", fake, config.RetryConfig{Attempts: 3, DelayMillis: 1})

	vec, err := b.EmbedQuery(context.Background(), "knee surgery")
	require.NoError(t, err)
	assert.Equal(t, []float32{12}, vec)
}

func TestEmbedQuery_GivesUp(t *testing.T) {
	fake := &fakeEmbedder{failures: 5}
	b := NewBackend("fake", "m1", fake, config.RetryConfig{Attempts: 2, DelayMillis: 1})

	_, err := b.EmbedQuery(context.Background(), "knee surgery")
	assert.ErrorContains(t, err, "connection refused")
}

func TestIdentity(t *testing.T) {
	b := NewBackend(BackendOllama, "all-minilm", &fakeEmbedder{}, config.RetryConfig{})
	assert.Equal(t, "ollama:all-minilm", b.Identity())
}

func TestResolve_AutoFallsBackToOllama(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.DefaultConfig().Embedding
	cfg.OpenAI.Key = ""

	b, err := Resolve(cfg, config.RetryConfig{Attempts: 1})
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, b.Name)
	assert.Equal(t, "all-minilm", b.Model)
}

func TestResolve_UnknownBackend(t *testing.T) {
	_, err := Resolve(config.EmbeddingConfig{Backend: "cohere"}, config.RetryConfig{})
	assert.Error(t, err)
}
