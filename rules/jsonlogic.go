package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/TimurManjosov/konditional/feature"
)

// ErrInvalidExpression is returned when an expression is not valid
// JSON Logic.
var ErrInvalidExpression = errors.New("invalid expression: not valid JSON Logic")

// ErrEmptyExpression is returned when an expression is empty or
// whitespace.
var ErrEmptyExpression = errors.New("invalid expression: empty or whitespace")

// Expression is a Predicate backed by a JSON Logic expression evaluated
// against the context's attribute map. It is the one serializable
// extension predicate; custom Predicate implementations stay in-memory
// only.
//
// Example expressions:
//   - {"==": [{"var": "plan"}, "premium"]}
//   - {"in": [{"var": "locale"}, ["en-US", "en-CA"]]}
type Expression struct {
	// Source is the JSON Logic expression.
	Source string
	// Weight is the specificity contribution; zero means 1.
	Weight int
}

// Matches evaluates the expression against the flattened context.
// Invalid expressions and evaluation failures never match.
func (e Expression) Matches(ctx *feature.Context) bool {
	if strings.TrimSpace(e.Source) == "" {
		return false
	}
	data, err := json.Marshal(ctx.LogicData())
	if err != nil {
		return false
	}
	var result bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(e.Source), bytes.NewReader(data), &result); err != nil {
		return false
	}
	var v any
	if err := json.Unmarshal(result.Bytes(), &v); err != nil {
		return false
	}
	return isTruthy(v)
}

// Specificity returns the expression's self-reported contribution.
func (e Expression) Specificity() int {
	if e.Weight > 0 {
		return e.Weight
	}
	return 1
}

// ValidateExpression checks that an expression is valid JSON Logic
// without evaluating it against real data.
func ValidateExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return ErrEmptyExpression
	}
	var rule any
	if err := json.Unmarshal([]byte(expression), &rule); err != nil {
		return ErrInvalidExpression
	}
	var result bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(expression), strings.NewReader("{}"), &result); err != nil {
		return ErrInvalidExpression
	}
	return nil
}

// isTruthy follows JavaScript-like truthiness rules, matching the
// JSON Logic result model.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
