package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"claim-rag/internal/jsonparse"
	"claim-rag/internal/models"
)

// Decide retrieves the k most relevant clauses for query and asks the model
// to adjudicate the claim. A model reply that cannot be parsed yields a
// Decision with Error set, not an error; errors are reserved for retrieval
// and transport failures.
func (r *RAG) Decide(ctx context.Context, query string, k int) (*models.Decision, error) {
	hits, err := r.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := models.Chunks(hits)

	answer, err := r.llm.Prompt(ctx, models.DecisionSystemPrompt, BuildDecisionPrompt(query, chunks))
	if err != nil {
		return nil, err
	}

	decision := r.parseDecision(answer)
	decision.ClauseMapping = ClauseMapping(chunks)
	return decision, nil
}

// BuildDecisionPrompt numbers the clauses from 1 in retrieval order.
func BuildDecisionPrompt(query string, chunks []models.Chunk) string {
	clauses := make([]string, len(chunks))
	for i, c := range chunks {
		clauses[i] = fmt.Sprintf("Clause %d: %s", i+1, c.Text)
	}
	return fmt.Sprintf(models.DecisionPromptTemplate, query, strings.Join(clauses, "\n\n"))
}

// ClauseMapping lists exactly the chunks shown to the model, in order.
func ClauseMapping(chunks []models.Chunk) []models.ClauseRef {
	mapping := make([]models.ClauseRef, len(chunks))
	for i, c := range chunks {
		mapping[i] = models.ClauseRef{
			Clause:     c.Text,
			Source:     c.Source,
			ChunkID:    c.ChunkID,
			PageNumber: c.PageNumber,
			Context:    c.Text,
		}
	}
	return mapping
}

func (r *RAG) parseDecision(answer string) *models.Decision {
	obj, stage, err := jsonparse.Object(answer, jsonparse.WithNumberCleanup())
	if err != nil {
		log.Warn().Err(err).Str("raw", answer).Msg("Could not parse decision")
		return &models.Decision{Error: models.ParseFailureMessage, Raw: answer}
	}
	if err := r.decisionSchema.Validate(obj); err != nil {
		log.Warn().Err(err).Str("stage", stage.String()).Msg("Decision does not match schema")
	}
	return &models.Decision{
		Decision:      strings.ToLower(strings.TrimSpace(stringField(obj, "decision"))),
		Amount:        models.ParseAmount(obj["amount"]),
		Justification: stringField(obj, "justification"),
	}
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
