package capture

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
	"github.com/tidwall/gjson"
)

// Source is the part of a response a Capture reads from.
type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

func (s Source) String() string {
	switch s {
	case SourceHeader:
		return "header"
	case SourceStatus:
		return "status"
	case SourceDuration:
		return "duration"
	default:
		return "body"
	}
}

// ParseSource maps a source name to a Source. Unknown names read the body.
func ParseSource(name string) Source {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "header", "headers":
		return SourceHeader
	case "status":
		return SourceStatus
	case "duration":
		return SourceDuration
	default:
		return SourceBody
	}
}

// Capture names a value to pull out of a response.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

type Extractor struct {
	response *http.Response
}

func NewExtractor(resp *http.Response) *Extractor {
	return &Extractor{response: resp}
}

// Lookup resolves path against the structured body. The empty path is the
// whole body.
func (e *Extractor) Lookup(path string) (gjson.Result, bool) {
	body := e.response.JSON()
	if !body.Exists() {
		return gjson.Result{}, false
	}

	path = NormalizePath(path)
	if path == "" {
		return body, true
	}

	result := body.Get(path)
	return result, result.Exists()
}

// Extract returns the raw value at path: nil, bool, float64, string,
// []any or map[string]any. A path that does not exist is a
// *FieldNotFoundError. The empty path on a non-JSON body returns the body text.
func (e *Extractor) Extract(path string) (any, error) {
	result, ok := e.Lookup(path)
	if !ok {
		if NormalizePath(path) == "" {
			return e.response.BodyString(), nil
		}
		return nil, &FieldNotFoundError{Source: SourceBody, Path: path}
	}
	return result.Value(), nil
}

func (e *Extractor) String(path string) (string, error) {
	result, err := e.typed(path, "string", gjson.String)
	if err != nil {
		return "", err
	}
	return result.Str, nil
}

// Int returns the number at path. Numbers with a fractional part are rejected.
func (e *Extractor) Int(path string) (int, error) {
	result, err := e.typed(path, "integer", gjson.Number)
	if err != nil {
		return 0, err
	}
	if result.Num != math.Trunc(result.Num) {
		return 0, &TypeError{Path: path, Want: "integer", Got: result.Raw}
	}
	return int(result.Int()), nil
}

func (e *Extractor) Float(path string) (float64, error) {
	result, err := e.typed(path, "number", gjson.Number)
	if err != nil {
		return 0, err
	}
	return result.Num, nil
}

func (e *Extractor) Bool(path string) (bool, error) {
	result, ok := e.Lookup(path)
	if !ok {
		return false, &FieldNotFoundError{Source: SourceBody, Path: path}
	}
	if result.Type != gjson.True && result.Type != gjson.False {
		return false, &TypeError{Path: path, Want: "boolean", Got: TypeName(result)}
	}
	return result.Bool(), nil
}

func (e *Extractor) Map(path string) (map[string]any, error) {
	result, ok := e.Lookup(path)
	if !ok {
		return nil, &FieldNotFoundError{Source: SourceBody, Path: path}
	}
	m, isMap := result.Value().(map[string]any)
	if !isMap {
		return nil, &TypeError{Path: path, Want: "object", Got: TypeName(result)}
	}
	return m, nil
}

func (e *Extractor) List(path string) ([]any, error) {
	result, ok := e.Lookup(path)
	if !ok {
		return nil, &FieldNotFoundError{Source: SourceBody, Path: path}
	}
	if !result.IsArray() {
		return nil, &TypeError{Path: path, Want: "array", Got: TypeName(result)}
	}
	list, _ := result.Value().([]any)
	return list, nil
}

func (e *Extractor) typed(path, want string, kind gjson.Type) (gjson.Result, error) {
	result, ok := e.Lookup(path)
	if !ok {
		return result, &FieldNotFoundError{Source: SourceBody, Path: path}
	}
	if result.Type != kind {
		return result, &TypeError{Path: path, Want: want, Got: TypeName(result)}
	}
	return result, nil
}

// Header returns the named response header. A missing header is a
// *FieldNotFoundError.
func (e *Extractor) Header(name string) (string, error) {
	for k, v := range e.response.Headers {
		if strings.EqualFold(k, name) {
			return v, nil
		}
	}
	return "", &FieldNotFoundError{Source: SourceHeader, Path: name}
}

// Capture reads the value c describes.
func (e *Extractor) Capture(c Capture) (any, error) {
	switch c.Source {
	case SourceHeader:
		return e.Header(c.Path)
	case SourceStatus:
		return e.response.StatusCode, nil
	case SourceDuration:
		return e.response.DurationMs(), nil
	default:
		return e.Extract(c.Path)
	}
}

// ExtractAll runs every capture against resp. Values that were found are
// returned even when others are missing; the missing ones are joined into
// the error.
func ExtractAll(resp *http.Response, captures []Capture) (map[string]any, error) {
	extractor := NewExtractor(resp)
	results := make(map[string]any, len(captures))

	var errs []error
	for _, c := range captures {
		value, err := extractor.Capture(c)
		if err != nil {
			errs = append(errs, fmt.Errorf("capture %s: %w", c.Name, err))
			continue
		}
		results[c.Name] = value
	}

	return results, errors.Join(errs...)
}

// NormalizePath converts a dotted/bracket path into a gjson path:
// "items[0].tags[1]" becomes "items.0.tags.1" and "[0].id" becomes "0.id".
// A leading "$" or "$." is dropped. Every key is escaped, so gjson wildcards
// and modifiers such as "*", "#" or "@this" only ever match a key of that
// name. A quoted bracket key may contain dots: `data["a.b"]`.
func NormalizePath(path string) string {
	keys := splitPath(path)
	for i, key := range keys {
		keys[i] = gjson.Escape(key)
	}
	return strings.Join(keys, ".")
}

func splitPath(path string) []string {
	path = trimPath(path)

	var (
		keys []string
		key  strings.Builder
	)
	flush := func() {
		if key.Len() > 0 {
			keys = append(keys, key.String())
			key.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch ch := path[i]; ch {
		case '.':
			flush()
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end == -1 {
				key.WriteString(path[i:])
				i = len(path)
				continue
			}
			flush()
			keys = append(keys, strings.Trim(path[i+1:i+end], `"'`))
			i += end
		default:
			key.WriteByte(ch)
		}
	}
	flush()
	return keys
}

func trimPath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")
	return strings.TrimPrefix(path, ".")
}

// JoinPath prefixes path with root. Either may be empty. The result keeps
// the dotted/bracket syntax of its inputs.
func JoinPath(root, path string) string {
	root = trimPath(root)
	path = trimPath(path)
	switch {
	case root == "":
		return path
	case path == "":
		return root
	case path[0] == '[':
		return root + path
	default:
		return root + "." + path
	}
}

// TypeName names the JSON type of r: null, boolean, number, string, array or object.
func TypeName(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	if r.IsArray() {
		return "array"
	}
	return "object"
}
