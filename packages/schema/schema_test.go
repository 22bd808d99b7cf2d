package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookingSchema = `{
	"type": "object",
	"required": ["firstname", "lastname", "totalprice", "bookingdates"],
	"properties": {
		"firstname": {"type": "string"},
		"lastname": {"type": "string"},
		"totalprice": {"type": "integer"},
		"depositpaid": {"type": "boolean"},
		"bookingdates": {
			"type": "object",
			"required": ["checkin", "checkout"],
			"properties": {
				"checkin": {"type": "string"},
				"checkout": {"type": "string"}
			}
		}
	}
}`

const validBooking = `{
	"firstname": "Sally",
	"lastname": "Brown",
	"totalprice": 111,
	"depositpaid": true,
	"bookingdates": {"checkin": "2013-02-23", "checkout": "2014-10-23"}
}`

func TestValidate_Valid(t *testing.T) {
	violations, err := NewValidator().Validate([]byte(validBooking), Bytes([]byte(bookingSchema)))

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidate_MissingRequiredField(t *testing.T) {
	doc := `{"firstname": "Sally", "totalprice": 111, "bookingdates": {"checkin": "2013-02-23", "checkout": "2014-10-23"}}`

	violations, err := NewValidator().Validate([]byte(doc), Bytes([]byte(bookingSchema)))

	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Equal(t, "required", violations[0].Type)
	assert.Contains(t, violations[0].Description, "lastname")
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	doc := `{"firstname": 1, "lastname": "Brown", "totalprice": "cheap", "bookingdates": {}}`

	violations, err := NewValidator().Validate([]byte(doc), Bytes([]byte(bookingSchema)))

	require.NoError(t, err)
	fields := make([]string, len(violations))
	for i, v := range violations {
		fields[i] = v.Field
	}
	assert.Contains(t, fields, "firstname")
	assert.Contains(t, fields, "totalprice")
	assert.Contains(t, fields, "bookingdates")
	assert.GreaterOrEqual(t, len(violations), 4)
}

func TestValidate_ValueSchema(t *testing.T) {
	s := map[string]any{
		"type":     "array",
		"minItems": 1,
		"items": map[string]any{
			"type":     "object",
			"required": []any{"bookingid"},
		},
	}

	violations, err := NewValidator().Validate([]byte(`[{"bookingid": 1}]`), Value(s))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = NewValidator().Validate([]byte(`[]`), Value(s))
	require.NoError(t, err)
	assert.Len(t, violations, 1)
}

func TestValidate_FileSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schemas"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schemas", "booking.json"), []byte(bookingSchema), 0o644))

	v := NewValidator(WithBaseDir(dir))
	violations, err := v.Validate([]byte(validBooking), File("schemas/booking.json"))

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidate_FileOutsideBaseDir(t *testing.T) {
	dir := t.TempDir()

	_, err := NewValidator(WithBaseDir(dir)).Validate([]byte(validBooking), File("../escape.json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := NewValidator().Validate([]byte(validBooking), File(filepath.Join(t.TempDir(), "nope.json")))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_DocumentNotJSON(t *testing.T) {
	_, err := NewValidator().Validate([]byte("<html>"), Bytes([]byte(bookingSchema)))

	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Check([]byte(validBooking), Bytes([]byte(bookingSchema))))

	err := v.Check([]byte(`{"firstname": "Sally"}`), Bytes([]byte(bookingSchema)))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Violations, 3)
	assert.Equal(t, "inline schema", validationErr.Schema)
	assert.Contains(t, err.Error(), "schema validation failed")
}
