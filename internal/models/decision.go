package models

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var amountRe = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

// ClauseRef links a decision back to the exact chunk that was shown to the model.
type ClauseRef struct {
	Clause     string `json:"clause"`
	Source     string `json:"source"`
	ChunkID    int    `json:"chunk_id"`
	PageNumber int    `json:"page_number"`
	Context    string `json:"context"`
}

// Decision is the adjudication returned for a claim query. When the model
// output could not be parsed, Error and Raw are set and the decision fields
// are omitted from the JSON form.
type Decision struct {
	Decision      string
	Amount        *float64
	Justification string

	Error string
	Raw   string

	ClauseMapping []ClauseRef
}

// Failed reports whether the model output could not be parsed.
func (d *Decision) Failed() bool { return d.Error != "" }

func (d Decision) MarshalJSON() ([]byte, error) {
	mapping := d.ClauseMapping
	if mapping == nil {
		mapping = []ClauseRef{}
	}
	if d.Error != "" {
		return json.Marshal(struct {
			Error         string      `json:"error"`
			Raw           string      `json:"raw"`
			ClauseMapping []ClauseRef `json:"clause_mapping"`
		}{d.Error, d.Raw, mapping})
	}
	return json.Marshal(struct {
		Decision      string      `json:"decision"`
		Amount        *float64    `json:"amount"`
		Justification string      `json:"justification"`
		ClauseMapping []ClauseRef `json:"clause_mapping"`
	}{d.Decision, d.Amount, d.Justification, mapping})
}

// ParseAmount coerces a decoded JSON value into a payout amount. Numbers are
// taken as-is; strings are stripped of grouping commas and currency noise.
// Anything else, including null, yields nil.
func ParseAmount(v any) *float64 {
	switch a := v.(type) {
	case float64:
		return &a
	case json.Number:
		if f, err := a.Float64(); err == nil {
			return &f
		}
	case string:
		s := strings.ReplaceAll(amountRe.FindString(a), ",", "")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

// ClauseSummary is the plain-language rewrite of a single clause.
type ClauseSummary struct {
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
	Flag       bool    `json:"flag"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
