package request

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a descriptor that cannot be turned into a
// request. It is raised while building, before anything is sent.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid request configuration: %s: %s", e.Field, e.Reason)
}

func missingPathParams(names []string) *ConfigurationError {
	return &ConfigurationError{
		Field:  "pathParams",
		Reason: "no value for placeholder(s) " + quoteAll(names),
	}
}

func unusedPathParams(names []string) *ConfigurationError {
	return &ConfigurationError{
		Field:  "pathParams",
		Reason: "no placeholder for param(s) " + quoteAll(names),
	}
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("{%s}", n)
	}
	return strings.Join(quoted, ", ")
}
