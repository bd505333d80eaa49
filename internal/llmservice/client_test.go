package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"claim-rag/internal/config"
	"claim-rag/internal/models"
)

type fakeModel struct {
	reply    string
	failures int
	empty    bool
	got      []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("502 bad gateway")
	}
	f.got = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func newTestClient(m Model, attempts uint) *Client {
	cfg := config.DefaultConfig().LLM
	return NewClient(m, "fake:model", cfg, config.RetryConfig{Attempts: attempts, DelayMillis: 1})
}

func TestPrompt_DeterministicOptions(t *testing.T) {
	m := &fakeModel{reply: "ok"}
	out, err := newTestClient(m, 1).Prompt(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.Len(t, m.got, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.got[1].Role)
	assert.Equal(t, 0.0, m.opts.Temperature)
	assert.Equal(t, 42, m.opts.Seed)
}

func TestChat_MapsRoles(t *testing.T) {
	m := &fakeModel{reply: "hi"}
	_, err := newTestClient(m, 1).Chat(context.Background(), []models.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hey"},
		{Role: "user", Content: "again"},
	})
	require.NoError(t, err)
	require.Len(t, m.got, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, m.got[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.got[3].Role)
}

func TestGenerateContent_Retries(t *testing.T) {
	m := &fakeModel{reply: "done", failures: 1}
	out, err := newTestClient(m, 2).Prompt(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestGenerateContent_EmptyChoices(t *testing.T) {
	m := &fakeModel{empty: true}
	_, err := newTestClient(m, 1).Prompt(context.Background(), "s", "u")
	assert.ErrorIs(t, err, models.ErrEmptyResponse)
}

func TestNewModel_UnknownProvider(t *testing.T) {
	_, _, err := NewModel(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}
