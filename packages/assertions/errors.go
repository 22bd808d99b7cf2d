package assertions

import "fmt"

// AssertionError reports a response that does not satisfy an expectation.
// Expected is the matcher description and Actual the value found.
type AssertionError struct {
	Subject  string
	Expected string
	Actual   any
	Message  string
}

func (e *AssertionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Subject, e.Message)
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Subject, e.Expected, describe(e.Actual))
}
