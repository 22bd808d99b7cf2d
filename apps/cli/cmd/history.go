package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/history"
	"github.com/abdul-hamid-achik/restcheck/packages/logging"
)

var historyLimitFlag int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded requests",
	Long: `Browse requests recorded with --history (or the history setting in the
config file). Without either, ~/.restcheck/history.db is read.

Examples:
  restcheck history list --limit 5
  restcheck history show 0b6e3c8a-6a2f-4c1e-9d7b-3c2f1f0c9a11
  restcheck history clear`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent requests",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(s *history.Store) error {
			entries, err := s.List(historyLimitFlag)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests recorded")
				return nil
			}
			for _, e := range entries {
				printEntryLine(cmd.OutOrStdout(), e)
			}
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded request and its response",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(s *history.Store) error {
			e, err := s.Get(args[0])
			if errors.Is(err, history.ErrNotFound) {
				return usageError{fmt.Errorf("no history entry %q", args[0])}
			}
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), e)
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded request",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(s *history.Store) error {
			n, err := s.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries\n", n)
			return nil
		})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", getEnvInt("RESTCHECK_HISTORY_LIMIT", history.DefaultLimit), "Number of entries to show (env: RESTCHECK_HISTORY_LIMIT)")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyClearCmd)
}

// withHistory opens the configured history database, falling back to the
// default location.
func withHistory(fn func(*history.Store) error) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if settings.History == "" {
		settings.History = defaultHistoryPath()
	}
	store, err := openHistory(settings)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func statusColor(status int) *color.Color {
	switch {
	case status == 0, status >= 500:
		return color.New(color.FgRed)
	case status >= 400:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func printEntryLine(w io.Writer, e *history.Entry) {
	status := fmt.Sprintf("%d", e.Status)
	if e.Error != "" {
		status = "ERR"
	}
	fmt.Fprintf(w, "%s  %s  %-6s %s %s (%dms)\n",
		e.ID,
		e.Timestamp.Local().Format(time.DateTime),
		e.Method,
		e.URL,
		statusColor(e.Status).Sprint(status),
		e.Duration.Milliseconds(),
	)
}

func printEntry(w io.Writer, e *history.Entry) {
	fmt.Fprintf(w, "%s %s\n", e.Method, e.URL)
	fmt.Fprintf(w, "Sent: %s\n", e.Timestamp.Local().Format(time.RFC3339))
	for _, h := range e.RequestHeaders {
		fmt.Fprintf(w, "%s: %s\n", h.Name, h.Value)
	}
	if e.RequestBody != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(logging.Pretty([]byte(e.RequestBody)), "\n"))
	}

	fmt.Fprintln(w)
	if e.Error != "" {
		fmt.Fprintf(w, "%s %s\n", color.RedString("Error:"), e.Error)
		return
	}
	fmt.Fprintf(w, "%s (%dms)\n", statusColor(e.Status).Sprint(e.StatusText), e.Duration.Milliseconds())
	names := make([]string, 0, len(e.ResponseHeaders))
	for name := range e.ResponseHeaders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", name, e.ResponseHeaders[name])
	}
	if e.ResponseBody != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(logging.Pretty([]byte(e.ResponseBody)), "\n"))
	}
}
