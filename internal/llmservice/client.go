package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"claim-rag/internal/config"
	"claim-rag/internal/models"
)

// Model is the part of llms.Model the service calls.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client sends prompts to the configured chat model with fixed sampling
// parameters, a per-call timeout and retries.
type Client struct {
	model   Model
	name    string
	cfg     config.LLMConfig
	retry   config.RetryConfig
	timeout time.Duration
}

// NewModel builds the langchaingo model for cfg.Provider.
func NewModel(cfg config.LLMConfig) (Model, string, error) {
	switch cfg.Provider {
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.OpenAI.Key, "Bearer ")),
			openai.WithModel(cfg.OpenAI.Model),
		)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create openai model: %w", err)
		}
		return llm, "openai:" + cfg.OpenAI.Model, nil
	case "ollama", "":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.Ollama.BaseURL),
			ollama.WithModel(cfg.Ollama.Model),
		)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create ollama model: %w", err)
		}
		return llm, "ollama:" + cfg.Ollama.Model, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

// New builds a Client for the configured provider.
func New(cfg config.LLMConfig, rc config.RetryConfig) (*Client, error) {
	model, name, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("model", name).Msg("Using chat model")
	return NewClient(model, name, cfg, rc), nil
}

// NewClient wraps an existing model.
func NewClient(model Model, name string, cfg config.LLMConfig, rc config.RetryConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{model: model, name: name, cfg: cfg, retry: rc, timeout: timeout}
}

func (c *Client) Name() string { return c.name }

// Prompt sends a system and a user message and returns the text of the
// first choice.
func (c *Client) Prompt(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	return c.GenerateContent(ctx, messages)
}

// Chat sends a conversation history.
func (c *Client) Chat(ctx context.Context, history []models.ChatMessage) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		messages = append(messages, llms.TextParts(roleType(m.Role), m.Content))
	}
	return c.GenerateContent(ctx, messages)
}

// GenerateContent calls the model with temperature and seed from config and
// returns the first choice's text.
func (c *Client) GenerateContent(ctx context.Context, messages []llms.MessageContent) (string, error) {
	var content string
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			res, err := c.model.GenerateContent(callCtx, messages,
				llms.WithTemperature(c.cfg.Temperature),
				llms.WithSeed(c.cfg.Seed),
			)
			if err != nil {
				return err
			}
			if res == nil || len(res.Choices) == 0 {
				return models.ErrEmptyResponse
			}
			content = res.Choices[0].Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(max(c.retry.Attempts, 1)),
		retry.Delay(time.Duration(c.retry.DelayMillis)*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("model", c.name).Msg("Model call failed, retrying")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("model %s: %w", c.name, err)
	}
	return content, nil
}

func roleType(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant", "ai":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
