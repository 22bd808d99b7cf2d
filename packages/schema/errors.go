package schema

import (
	"fmt"
	"strings"
)

// Violation is one way a document fails its schema.
type Violation struct {
	Field       string
	Type        string
	Description string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Description)
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("schema validation failed (%s): %s", e.Schema, strings.Join(parts, "; "))
}
