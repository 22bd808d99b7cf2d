// Package schema validates JSON documents against JSON Schema using
// gojsonschema. Schemas can come from files, raw bytes or Go values.
package schema
