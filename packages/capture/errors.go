package capture

import "fmt"

// FieldNotFoundError reports a path or header that is not present in a
// response.
type FieldNotFoundError struct {
	Source Source
	Path   string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("%s field not found: %s", e.Source, e.Path)
}

// TypeError reports a value that exists but has the wrong JSON type.
type TypeError struct {
	Path string
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("field %s: expected %s, got %s", e.Path, e.Want, e.Got)
}
