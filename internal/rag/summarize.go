package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"claim-rag/internal/jsonparse"
	"claim-rag/internal/models"
)

// Summarizer rewrites single clauses in plain language. It needs only the
// model, so it can run without an index or an embedding backend.
type Summarizer struct {
	llm    Generator
	schema *jsonparse.Validator
}

func NewSummarizer(llm Generator) *Summarizer {
	return &Summarizer{llm: llm, schema: jsonparse.MustValidator("summary", jsonparse.SummarySchema)}
}

// Summarize delegates to the service's Summarizer.
func (r *RAG) Summarize(ctx context.Context, text string) (*models.ClauseSummary, error) {
	return r.summarizer.Summarize(ctx, text)
}

// Summarize rewrites a clause in plain language. Text shorter than
// models.MinClauseLength after trimming gets a fixed placeholder without
// calling the model.
func (s *Summarizer) Summarize(ctx context.Context, text string) (*models.ClauseSummary, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < models.MinClauseLength {
		return &models.ClauseSummary{Summary: models.EmptyClauseSummary, Confidence: 0, Flag: true}, nil
	}

	answer, err := s.llm.Prompt(ctx, models.SummarySystemPrompt, fmt.Sprintf(models.SummaryPromptTemplate, text))
	if err != nil {
		return nil, err
	}
	return s.parse(answer), nil
}

func (s *Summarizer) parse(answer string) *models.ClauseSummary {
	unparsed := &models.ClauseSummary{Summary: answer, Confidence: models.UnparsedConfidence, Flag: true}

	obj, stage, err := jsonparse.Object(answer)
	if err != nil {
		log.Warn().Err(err).Msg("Could not parse summary")
		return unparsed
	}
	summary, ok := obj["summary"].(string)
	if !ok {
		log.Warn().Str("stage", stage.String()).Msg("Summary field missing")
		return unparsed
	}
	if err := s.schema.Validate(obj); err != nil {
		log.Warn().Err(err).Str("stage", stage.String()).Msg("Summary does not match schema")
	}

	confidence := models.UnparsedConfidence
	if c, ok := obj["confidence"].(float64); ok {
		confidence = min(max(c, 0), 1)
	}
	flag, _ := obj["flag"].(bool)
	return &models.ClauseSummary{Summary: summary, Confidence: confidence, Flag: flag}
}
