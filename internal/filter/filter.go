package filter

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Query is a compiled JMESPath expression
type Query struct {
	expression string
	jp         *jmespath.JMESPath
}

// Compile parses a JMESPath expression
func Compile(expression string) (*Query, error) {
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}
	return &Query{expression: expression, jp: jp}, nil
}

// String returns the source expression
func (q *Query) String() string {
	return q.expression
}

// Apply runs the query against a value. The value is first normalized through
// its JSON encoding so expressions address the JSON field names.
func (q *Query) Apply(value any) (any, error) {
	data, err := normalize(value)
	if err != nil {
		return nil, err
	}

	result, err := q.jp.Search(data)
	if err != nil {
		return nil, fmt.Errorf("JMESPath search failed: %w", err)
	}
	return result, nil
}

func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return generic, nil
}
