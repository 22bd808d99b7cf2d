package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/core/scenario"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the steps of scenario files",
	Long: `List every step defined in scenario files with its method, path,
tags and dependencies.

Examples:
  restcheck list booking.yaml
  restcheck list ./scenarios/`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return usageError{err}
	}
	if len(files) == 0 {
		return usageError{errors.New("no scenario files found")}
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, file := range files {
		s, err := scenario.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %v\n", err)
			errs = append(errs, err)
			continue
		}

		fmt.Fprintf(out, "\n%s (%s):\n", s.Name, file)
		for _, step := range s.Steps {
			method := strings.ToUpper(step.Method)
			if method == "" {
				method = "GET"
			}
			fmt.Fprintf(out, "  - %s: %s %s\n", step.Name, method, step.Path)
			if len(step.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %s\n", strings.Join(step.Tags, ", "))
			}
			if len(step.DependsOn) > 0 {
				fmt.Fprintf(out, "    depends on: %s\n", strings.Join(step.DependsOn, ", "))
			}
		}
	}

	return errors.Join(errs...)
}
