package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claim-rag/internal/models"
)

type fakeService struct {
	lastK    int
	err      error
	decision *models.Decision
}

func (f *fakeService) Decide(_ context.Context, query string, k int) (*models.Decision, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if f.decision != nil {
		return f.decision, nil
	}
	return &models.Decision{Decision: "rejected", Justification: "Clause 1 excludes " + query}, nil
}

func (f *fakeService) Retrieve(_ context.Context, query string, k int) ([]models.Hit, error) {
	f.lastK = k
	return []models.Hit{{Chunk: models.Chunk{Source: "policy.pdf", ChunkID: 4, Text: "Dental is excluded.", PageNumber: 9}, Distance: 0.25}}, f.err
}

func (f *fakeService) Summarize(_ context.Context, text string) (*models.ClauseSummary, error) {
	return &models.ClauseSummary{Summary: "simple", Confidence: 0.7}, f.err
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestDecideHandler(t *testing.T) {
	svc := &fakeService{}
	h := makeDecideHandler(svc, 5)

	res, err := h(context.Background(), call(map[string]any{"query": "dental"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 5, svc.lastK)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	assert.Equal(t, "rejected", body["decision"])
	assert.Nil(t, body["amount"])

	res, err = h(context.Background(), call(map[string]any{"query": "dental", "k": 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, svc.lastK)

	res, err = h(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDecideHandler_ServiceError(t *testing.T) {
	h := makeDecideHandler(&fakeService{err: errors.New("model down")}, 5)
	res, err := h(context.Background(), call(map[string]any{"query": "knee"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "model down")
}

func TestDecideHandler_UnparsedReply(t *testing.T) {
	svc := &fakeService{decision: &models.Decision{Error: models.ParseFailureMessage, Raw: "no idea"}}
	res, err := makeDecideHandler(svc, 5)(context.Background(), call(map[string]any{"query": "knee"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	assert.Equal(t, "no idea", body["raw"])
	assert.Equal(t, models.ParseFailureMessage, body["error"])
}

func TestSearchHandler(t *testing.T) {
	svc := &fakeService{}
	res, err := makeSearchHandler(svc, 5)(context.Background(), call(map[string]any{"query": "dental", "k": -1}))
	require.NoError(t, err)
	assert.Equal(t, 5, svc.lastK)
	out := text(t, res)
	assert.Contains(t, out, "policy.pdf, page 9 (chunk 4)")
	assert.Contains(t, out, "Dental is excluded.")
}

func TestSummarizeHandler(t *testing.T) {
	res, err := makeSummarizeHandler(&fakeService{})(context.Background(), call(map[string]any{"text": "The insured shall..."}))
	require.NoError(t, err)
	var s models.ClauseSummary
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &s))
	assert.Equal(t, "simple", s.Summary)
}

func TestFormatHits_Empty(t *testing.T) {
	assert.Equal(t, `No clauses found for query: "x"`, formatHits("x", nil))
}
