package query

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Query is a compiled JMESPath expression.
type Query struct {
	expr string
	jp   *jmespath.JMESPath
}

// Compile parses expr once so it can be run against many documents.
func Compile(expr string) (*Query, error) {
	jp, err := jmespath.Compile(expr)
	if err != nil {
		return nil, &ExpressionError{Expr: expr, Err: err}
	}
	return &Query{expr: expr, jp: jp}, nil
}

func (q *Query) String() string {
	return q.expr
}

// Search runs the query against a decoded JSON document. A query that
// selects nothing returns nil.
func (q *Query) Search(doc any) (any, error) {
	result, err := q.jp.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("JMESPath search failed: %w", err)
	}
	return result, nil
}

// SearchBytes decodes body as JSON and runs the query against it.
func (q *Query) SearchBytes(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return q.Search(doc)
}

func Search(doc any, expr string) (any, error) {
	q, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return q.Search(doc)
}

func SearchBytes(body []byte, expr string) (any, error) {
	q, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return q.SearchBytes(body)
}

// IsValid reports whether expr is valid JMESPath syntax.
func IsValid(expr string) bool {
	_, err := jmespath.Compile(expr)
	return err == nil
}

// Format renders a search result as indented JSON.
func Format(result any) (string, error) {
	if result == nil {
		return "null", nil
	}
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output), nil
}

// ExpressionError reports a JMESPath expression that does not compile.
type ExpressionError struct {
	Expr string
	Err  error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("invalid JMESPath expression '%s': %v", e.Expr, e.Err)
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}
