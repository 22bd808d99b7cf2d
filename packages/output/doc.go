// Package output formats scenario results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//
// Formatters that accumulate results before writing implement Flushable.
package output
