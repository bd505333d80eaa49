package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

type IngestConfig struct {
	DataDir    string   `mapstructure:"data_dir" yaml:"data_dir"`
	ChunkSize  int      `mapstructure:"chunk_size" yaml:"chunk_size"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

type IndexConfig struct {
	// Store is one of flat, chromem, sqlitevec, pgvector.
	Store             string `mapstructure:"store" yaml:"store"`
	Dir               string `mapstructure:"dir" yaml:"dir"`
	Collection        string `mapstructure:"collection" yaml:"collection"`
	Compress          bool   `mapstructure:"compress" yaml:"compress"`
	BatchSize         int    `mapstructure:"batch_size" yaml:"batch_size"`
	TopK              int    `mapstructure:"top_k" yaml:"top_k"`
	RebuildOnMismatch bool   `mapstructure:"rebuild_on_mismatch" yaml:"rebuild_on_mismatch"`
}

type OpenAIConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Key     string `mapstructure:"key" yaml:"key"`
	Model   string `mapstructure:"model" yaml:"model"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
}

type EmbeddingConfig struct {
	// Backend is one of auto, openai, ollama.
	Backend string       `mapstructure:"backend" yaml:"backend"`
	OpenAI  OpenAIConfig `mapstructure:"openai" yaml:"openai"`
	Ollama  OllamaConfig `mapstructure:"ollama" yaml:"ollama"`
}

type LLMConfig struct {
	// Provider is one of ollama, openai.
	Provider    string       `mapstructure:"provider" yaml:"provider"`
	Temperature float64      `mapstructure:"temperature" yaml:"temperature"`
	Seed        int          `mapstructure:"seed" yaml:"seed"`
	TimeoutSecs int          `mapstructure:"timeout_secs" yaml:"timeout_secs"`
	OpenAI      OpenAIConfig `mapstructure:"openai" yaml:"openai"`
	Ollama      OllamaConfig `mapstructure:"ollama" yaml:"ollama"`
}

type ChatConfig struct {
	// Mode is echo or llm.
	Mode string `mapstructure:"mode" yaml:"mode"`
}

type DatabaseConfig struct {
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	Driver string `mapstructure:"driver" yaml:"driver"` // pgdriver or pq
	Debug  bool   `mapstructure:"debug" yaml:"debug"`
}

type RetryConfig struct {
	Attempts    uint `mapstructure:"attempts" yaml:"attempts"`
	DelayMillis int  `mapstructure:"delay_millis" yaml:"delay_millis"`
}

type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Ingest    IngestConfig    `mapstructure:"ingest" yaml:"ingest"`
	Index     IndexConfig     `mapstructure:"index" yaml:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Chat      ChatConfig      `mapstructure:"chat" yaml:"chat"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
}

// DefaultConfig mirrors the behaviour of the service with no config file:
// local PDFs, a flat index, and gemma:2b served by Ollama.
func DefaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{Host: "0.0.0.0", Port: "8000"},
		Ingest: IngestConfig{
			DataDir:    "./data",
			ChunkSize:  500,
			Extensions: []string{".pdf"},
		},
		Index: IndexConfig{
			Store:      "flat",
			Dir:        "./index",
			Collection: "policy_clauses",
			BatchSize:  64,
			TopK:       5,
		},
		Embedding: EmbeddingConfig{
			Backend: "auto",
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "text-embedding-3-small",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "all-minilm",
			},
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			Temperature: 0,
			Seed:        42,
			TimeoutSecs: 120,
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "gemma:2b",
			},
		},
		Chat:     ChatConfig{Mode: "echo"},
		Database: DatabaseConfig{Driver: "pgdriver"},
		Retry:    RetryConfig{Attempts: 3, DelayMillis: 500},
	}
}

// LoadConfig reads the YAML file at path (optional when it does not exist),
// applies CLAIMRAG_* environment overrides and fills defaults. A .env file in
// the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("CLAIMRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("failed to read config file: %w", err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects enum values the rest of the service cannot resolve.
func (c *Config) Validate() error {
	switch c.Index.Store {
	case "flat", "chromem", "sqlitevec", "pgvector":
	default:
		return fmt.Errorf("unknown index store: %q", c.Index.Store)
	}
	switch c.Embedding.Backend {
	case "auto", "openai", "ollama":
	default:
		return fmt.Errorf("unknown embedding backend: %q", c.Embedding.Backend)
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	switch c.Chat.Mode {
	case "echo", "llm":
	default:
		return fmt.Errorf("unknown chat mode: %q", c.Chat.Mode)
	}
	if c.Index.Store == "pgvector" && c.Database.DSN == "" {
		return errors.New("database.dsn is required for the pgvector store")
	}
	return nil
}

// setDefaults registers every leaf so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("ingest.data_dir", d.Ingest.DataDir)
	v.SetDefault("ingest.chunk_size", d.Ingest.ChunkSize)
	v.SetDefault("ingest.extensions", d.Ingest.Extensions)
	v.SetDefault("index.store", d.Index.Store)
	v.SetDefault("index.dir", d.Index.Dir)
	v.SetDefault("index.collection", d.Index.Collection)
	v.SetDefault("index.compress", d.Index.Compress)
	v.SetDefault("index.batch_size", d.Index.BatchSize)
	v.SetDefault("index.top_k", d.Index.TopK)
	v.SetDefault("index.rebuild_on_mismatch", d.Index.RebuildOnMismatch)
	v.SetDefault("embedding.backend", d.Embedding.Backend)
	v.SetDefault("embedding.openai.base_url", d.Embedding.OpenAI.BaseURL)
	v.SetDefault("embedding.openai.key", d.Embedding.OpenAI.Key)
	v.SetDefault("embedding.openai.model", d.Embedding.OpenAI.Model)
	v.SetDefault("embedding.ollama.base_url", d.Embedding.Ollama.BaseURL)
	v.SetDefault("embedding.ollama.model", d.Embedding.Ollama.Model)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.seed", d.LLM.Seed)
	v.SetDefault("llm.timeout_secs", d.LLM.TimeoutSecs)
	v.SetDefault("llm.openai.base_url", d.LLM.OpenAI.BaseURL)
	v.SetDefault("llm.openai.key", d.LLM.OpenAI.Key)
	v.SetDefault("llm.openai.model", d.LLM.OpenAI.Model)
	v.SetDefault("llm.ollama.base_url", d.LLM.Ollama.BaseURL)
	v.SetDefault("llm.ollama.model", d.LLM.Ollama.Model)
	v.SetDefault("chat.mode", d.Chat.Mode)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.debug", d.Database.Debug)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.delay_millis", d.Retry.DelayMillis)
}

func applyDefaults(cfg *Config) {
	d := DefaultConfig()
	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = d.Ingest.ChunkSize
	}
	if len(cfg.Ingest.Extensions) == 0 {
		cfg.Ingest.Extensions = d.Ingest.Extensions
	}
	if cfg.Index.BatchSize <= 0 {
		cfg.Index.BatchSize = d.Index.BatchSize
	}
	if cfg.Index.TopK <= 0 {
		cfg.Index.TopK = d.Index.TopK
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 1
	}
	// OPENAI_API_KEY is honoured the same way the OpenAI SDKs do.
	if cfg.Embedding.OpenAI.Key == "" {
		cfg.Embedding.OpenAI.Key = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.OpenAI.Key == "" {
		cfg.LLM.OpenAI.Key = os.Getenv("OPENAI_API_KEY")
	}
}
