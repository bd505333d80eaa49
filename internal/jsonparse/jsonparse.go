// Package jsonparse pulls a JSON object out of free-form model output.
//
// Parsing is staged: the whole text is tried first, then the span from the
// first '{' to the last '}'. Callers decide what to do when both fail.
package jsonparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"claim-rag/internal/models"
)

// Stage records which step produced the object.
type Stage int

const (
	StageNone Stage = iota
	StageStrict
	StageRecovered
)

func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageRecovered:
		return "recovered"
	default:
		return "none"
	}
}

var (
	numberGroupRe = regexp.MustCompile(models.NumberGroupRegex)
	jsonObjectRe  = regexp.MustCompile(models.JSONObjectRegex)
)

type options struct {
	cleanNumbers bool
}

type Option func(*options)

// WithNumberCleanup removes grouping commas from numbers such as 1,00,000
// before each parse attempt.
func WithNumberCleanup() Option {
	return func(o *options) { o.cleanNumbers = true }
}

// CleanNumbers strips the commas from digit groups like 50,000 or 1,00,000.
func CleanNumbers(s string) string {
	return numberGroupRe.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, ",", "")
	})
}

// Object returns the JSON object in text. It returns models.ErrNoJSON when
// neither stage yields an object.
func Object(text string, opts ...Option) (map[string]any, Stage, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	prepare := func(s string) string {
		if o.cleanNumbers {
			return CleanNumbers(s)
		}
		return s
	}

	if obj, err := decodeObject(prepare(text)); err == nil {
		return obj, StageStrict, nil
	}

	candidate := jsonObjectRe.FindString(text)
	if candidate == "" {
		return nil, StageNone, models.ErrNoJSON
	}
	obj, err := decodeObject(prepare(candidate))
	if err != nil {
		return nil, StageNone, fmt.Errorf("%w: %v", models.ErrNoJSON, err)
	}
	return obj, StageRecovered, nil
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return obj, nil
}
