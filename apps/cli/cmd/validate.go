package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/core/scenario"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Check scenario files without running them",
	Long: `Parse scenario files and check their steps, checks and captures
without sending any request.

Examples:
  restcheck validate booking.yaml
  restcheck validate ./scenarios/`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return usageError{err}
	}
	if len(files) == 0 {
		return usageError{errors.New("no scenario files found")}
	}

	var errs []error
	for _, file := range files {
		if _, err := scenario.ParseFile(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Invalid: %v\n", err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
	}

	if len(errs) > 0 {
		return &codeError{code: ExitParseError, err: fmt.Errorf("%d of %d files invalid", len(errs), len(files)), quiet: true}
	}
	return nil
}
