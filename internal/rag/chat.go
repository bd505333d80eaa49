package rag

import (
	"context"

	"claim-rag/internal/models"
)

const ChatModeLLM = "llm"

// Chat answers a conversation. In echo mode the last user message is
// returned with a prefix; in llm mode the whole history goes to the model.
func (r *RAG) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if r.cfg.Chat.Mode != ChatModeLLM {
		return models.EchoPrefix + LastUserMessage(messages), nil
	}
	return r.llm.Chat(ctx, messages)
}

// LastUserMessage returns the content of the most recent "user" message, or
// "" when there is none.
func LastUserMessage(messages []models.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
