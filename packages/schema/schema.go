package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

// Kind identifies where a Descriptor's schema comes from.
type Kind int

const (
	KindFile Kind = iota
	KindBytes
	KindValue
)

// Descriptor points at a JSON Schema document.
type Descriptor struct {
	Kind  Kind
	Path  string
	Data  []byte
	Value any
}

// File is a schema read from disk when validation runs. Relative paths
// resolve against the validator's base directory.
func File(path string) Descriptor {
	return Descriptor{Kind: KindFile, Path: path}
}

func Bytes(data []byte) Descriptor {
	return Descriptor{Kind: KindBytes, Data: data}
}

// Value is a schema given as a Go value, typically a map[string]any.
func Value(v any) Descriptor {
	return Descriptor{Kind: KindValue, Value: v}
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindFile:
		return d.Path
	case KindBytes:
		return "inline schema"
	default:
		return "schema value"
	}
}

type Validator struct {
	baseDir string
}

type Option func(*Validator)

// WithBaseDir resolves relative schema files against dir and rejects files
// outside it.
func WithBaseDir(dir string) Option {
	return func(v *Validator) {
		v.baseDir = dir
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks document against the schema and returns every violation.
// The error is reserved for schemas or documents that cannot be loaded.
func (v *Validator) Validate(document []byte, d Descriptor) ([]Violation, error) {
	schemaLoader, err := v.loader(d)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validating against %s: %w", d, err)
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, Violation{
			Field:       re.Field(),
			Type:        re.Type(),
			Description: re.Description(),
		})
	}
	return violations, nil
}

// Check is Validate returning a *ValidationError when there are violations.
func (v *Validator) Check(document []byte, d Descriptor) error {
	violations, err := v.Validate(document, d)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &ValidationError{Schema: d.String(), Violations: violations}
	}
	return nil
}

func (v *Validator) loader(d Descriptor) (gojsonschema.JSONLoader, error) {
	switch d.Kind {
	case KindBytes:
		return gojsonschema.NewBytesLoader(d.Data), nil
	case KindValue:
		return gojsonschema.NewGoLoader(d.Value), nil
	}

	schemaPath := d.Path
	if !filepath.IsAbs(schemaPath) && v.baseDir != "" {
		schemaPath = filepath.Join(v.baseDir, schemaPath)
	}

	if err := http.ValidatePathWithinBase(schemaPath, v.baseDir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return gojsonschema.NewBytesLoader(data), nil
}
