package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	d := DefaultConfig()
	assert.Equal(t, d.Server.Port, cfg.Server.Port)
	assert.Equal(t, "flat", cfg.Index.Store)
	assert.Equal(t, 5, cfg.Index.TopK)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, []string{".pdf"}, cfg.Ingest.Extensions)
	assert.Equal(t, "gemma:2b", cfg.LLM.Ollama.Model)
	assert.Equal(t, 42, cfg.LLM.Seed)
	assert.Equal(t, "echo", cfg.Chat.Mode)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9000"
index:
  store: chromem
  top_k: 3
chat:
  mode: llm
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CLAIMRAG_INDEX_TOP_K", "7")
	t.Setenv("CLAIMRAG_LLM_PROVIDER", "openai")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.Index.Store)
	assert.Equal(t, 7, cfg.Index.TopK)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "llm", cfg.Chat.Mode)
	// Untouched keys keep their defaults.
	assert.Equal(t, "policy_clauses", cfg.Index.Collection)
}

func TestLoadConfig_OpenAIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embedding.OpenAI.Key)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.Key)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown store", func(c *Config) { c.Index.Store = "faiss" }, true},
		{"unknown backend", func(c *Config) { c.Embedding.Backend = "cohere" }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "anthropic" }, true},
		{"unknown chat mode", func(c *Config) { c.Chat.Mode = "stream" }, true},
		{"pgvector without dsn", func(c *Config) { c.Index.Store = "pgvector" }, true},
		{"pgvector with dsn", func(c *Config) {
			c.Index.Store = "pgvector"
			c.Database.DSN = "postgres://localhost/claims"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Index.Store = "sqlitevec"
	cfg.Ingest.Extensions = []string{".pdf", ".docx"}
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlitevec", loaded.Index.Store)
	assert.Equal(t, []string{".pdf", ".docx"}, loaded.Ingest.Extensions)
}
