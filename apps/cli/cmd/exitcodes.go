package cmd

import (
	"errors"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/core/env"
	"github.com/abdul-hamid-achik/restcheck/packages/core/scenario"
	"github.com/abdul-hamid-achik/restcheck/packages/http"
	"github.com/abdul-hamid-achik/restcheck/packages/request"
)

// Exit codes for restcheck CLI
const (
	// ExitSuccess indicates all checks passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more assertions failed
	ExitTestFailure = 1

	// ExitParseError indicates a scenario file could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit code. Configuration problems
// are checked before network ones so that a missing credential that stopped
// a token request reports as configuration.
func exitCode(err error) int {
	var (
		coded    *codeError
		usage    usageError
		cfgErr   *request.ConfigurationError
		missing  *env.MissingError
		parseErr *scenario.ParseError
		netErr   *http.NetworkError
	)

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &coded):
		return coded.code
	case errors.As(err, &usage), strings.HasPrefix(err.Error(), "unknown command"):
		return ExitUsageError
	case errors.As(err, &parseErr):
		return ExitParseError
	case errors.As(err, &cfgErr), errors.As(err, &missing):
		return ExitConfigError
	case errors.As(err, &netErr):
		return ExitNetworkError
	default:
		return ExitTestFailure
	}
}

// codeError carries an exit code chosen by the command itself. A quiet
// error has already been reported by the command's output.
type codeError struct {
	code  int
	err   error
	quiet bool
}

func isQuiet(err error) bool {
	var ce *codeError
	return errors.As(err, &ce) && ce.quiet
}

func (e *codeError) Error() string { return e.err.Error() }
func (e *codeError) Unwrap() error { return e.err }

// exitPriority orders exit codes from most to least severe.
var exitPriority = []int{ExitUsageError, ExitConfigError, ExitParseError, ExitNetworkError, ExitTestFailure, ExitSuccess}

// moreSevere returns whichever of a and b ranks higher in exitPriority.
func moreSevere(a, b int) int {
	if slices.Index(exitPriority, b) < slices.Index(exitPriority, a) {
		return b
	}
	return a
}

// runExitCode picks the exit code for finished runs: the most severe step
// error wins, then any failed step.
func runExitCode(results []*scenario.RunResult) int {
	code := ExitSuccess
	for _, r := range results {
		for _, step := range r.Steps {
			switch {
			case step.Error != nil:
				code = moreSevere(code, exitCode(step.Error))
			case !step.Passed && !step.Skipped:
				code = moreSevere(code, ExitTestFailure)
			}
		}
	}
	return code
}

// usageArgs wraps a positional argument validator so that its errors
// exit with ExitUsageError.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
