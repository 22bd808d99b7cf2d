package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/query"
)

var queryCmd = &cobra.Command{
	Use:   "query <expression> [file]",
	Short: "Run a JMESPath expression over JSON",
	Long: `Evaluate a JMESPath expression against a JSON document read from a
file or from standard input, and print the result as JSON.

Examples:
  restcheck query 'booking.bookingdates.checkin' booking.json
  restcheck send /booking --extract . | restcheck query '[?bookingid > ` + "`10`" + `] | length(@)'`,
	Args: usageArgs(cobra.RangeArgs(1, 2)),
	RunE: queryCommand,
}

func queryCommand(cmd *cobra.Command, args []string) error {
	q, err := query.Compile(args[0])
	if err != nil {
		return usageError{err}
	}

	var data []byte
	if len(args) == 2 && args[1] != "-" {
		data, err = os.ReadFile(args[1])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return usageError{fmt.Errorf("reading input: %w", err)}
	}

	result, err := q.SearchBytes(data)
	if err != nil {
		return err
	}
	text, err := query.Format(result)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
