package jsonparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claim-rag/internal/models"
)

func TestCleanNumbers(t *testing.T) {
	tests := map[string]string{
		`{"amount": 1,00,000}`: `{"amount": 100000}`,
		`{"amount": 50,000}`:   `{"amount": 50000}`,
		`{"amount": 100000}`:   `{"amount": 100000}`,
		`{"amount": 2,500.50}`: `{"amount": 2500.50}`,
		`no numbers here`:      `no numbers here`,
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanNumbers(in), in)
	}
}

func TestObject_Strict(t *testing.T) {
	obj, stage, err := Object(`{"decision":"approved","amount":5000,"justification":"Clause 1"}`, WithNumberCleanup())
	require.NoError(t, err)
	assert.Equal(t, StageStrict, stage)
	assert.Equal(t, "approved", obj["decision"])
	assert.Equal(t, 5000.0, obj["amount"])
}

func TestObject_StrictAfterCleanup(t *testing.T) {
	obj, stage, err := Object(`{"decision":"approved","amount":1,00,000,"justification":"x"}`, WithNumberCleanup())
	require.NoError(t, err)
	assert.Equal(t, StageStrict, stage)
	assert.Equal(t, 100000.0, obj["amount"])
}

func TestObject_RecoversFromSurroundingText(t *testing.T) {
	text := "Sure! Here is the result:\n```json\n{\"decision\":\"rejected\",\"amount\":null,\"justification\":\"Clause 3 excludes it\"}\n```\nHope that helps."
	obj, stage, err := Object(text, WithNumberCleanup())
	require.NoError(t, err)
	assert.Equal(t, StageRecovered, stage)
	assert.Equal(t, "rejected", obj["decision"])
	assert.Nil(t, obj["amount"])
}

func TestObject_NoCleanupLeavesGroupedNumbersInvalid(t *testing.T) {
	_, _, err := Object(`{"confidence": 1,000}`)
	assert.ErrorIs(t, err, models.ErrNoJSON)
}

func TestObject_Failure(t *testing.T) {
	for _, text := range []string{"", "I cannot decide this claim.", "{broken", "[1,2,3]", "null"} {
		_, stage, err := Object(text)
		assert.ErrorIs(t, err, models.ErrNoJSON, text)
		assert.Equal(t, StageNone, stage)
	}
}

func TestValidator(t *testing.T) {
	v := MustValidator("decision", DecisionSchema)
	assert.NoError(t, v.Validate(map[string]any{"decision": "approved", "amount": 10.0, "justification": "ok"}))
	assert.Error(t, v.Validate(map[string]any{"decision": "maybe", "justification": "ok"}))
	assert.Error(t, v.Validate(map[string]any{"decision": "approved"}))

	s := MustValidator("summary", SummarySchema)
	assert.NoError(t, s.Validate(map[string]any{"summary": "plain", "confidence": 0.9, "flag": false}))
	assert.Error(t, s.Validate(map[string]any{"summary": "plain", "confidence": 1.5}))
}
