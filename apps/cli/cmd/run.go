package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/core/scenario"
	"github.com/abdul-hamid-achik/restcheck/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run scenario files",
	Long: `Run the steps of one or more YAML scenario files.

Examples:
  restcheck run booking.yaml
  restcheck run booking.yaml --env staging
  restcheck run ./scenarios/ --tags smoke
  restcheck run booking.yaml --name "create*" --bail
  restcheck run ./scenarios/ --output junit --output-file report.xml
  restcheck run ./scenarios/ --watch`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag        string
	baseURIFlag    string
	varsFlag       map[string]string
	nameFlag       string
	tagsFlag       string
	verboseFlag    bool
	quietFlag      bool
	bailFlag       bool
	dryRunFlag     bool
	outputFlag     string
	outputFileFlag string
	watchFlag      bool
	rateFlag       float64
)

func init() {
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("RESTCHECK_ENV", ""), "Scenario environment to use (env: RESTCHECK_ENV)")
	runCmd.Flags().StringVar(&baseURIFlag, "base-uri", getEnvString("RESTCHECK_BASE_URI", ""), "Base URI for scenarios that do not set one (env: RESTCHECK_BASE_URI)")
	runCmd.Flags().StringToStringVar(&varsFlag, "var", nil, "Set a scenario variable (name=value), overriding the file")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only steps matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("RESTCHECK_TAGS", ""), "Run only steps with specified tags (comma-separated) (env: RESTCHECK_TAGS)")

	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show requests, statuses and captured values")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("RESTCHECK_QUIET", false), "Suppress all output except errors (env: RESTCHECK_QUIET)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("RESTCHECK_OUTPUT", "console"), "Output format: console, json, junit (env: RESTCHECK_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("RESTCHECK_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: RESTCHECK_OUTPUT_FILE)")

	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("RESTCHECK_BAIL", false), "Stop on first failure (env: RESTCHECK_BAIL)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without executing")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run scenarios")
	runCmd.Flags().Float64Var(&rateFlag, "rate", 0, "Maximum requests per second (0 for no limit)")
}

func splitTags(tags string) []string {
	var out []string
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func runCommand(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	if rateFlag < 0 {
		return usageError{fmt.Errorf("invalid rate %v (must not be negative)", rateFlag)}
	}

	files, err := collectFiles(args)
	if err != nil {
		return usageError{err}
	}
	if len(files) == 0 {
		return usageError{errors.New("no scenario files found")}
	}

	if dryRunFlag {
		return dryRun(cmd.OutOrStdout(), files)
	}

	var out io.Writer = cmd.OutOrStdout()
	if quietFlag {
		out = io.Discard
	}
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return usageError{fmt.Errorf("cannot create output file: %w", err)}
		}
		defer f.Close()
		out = f
	}

	client, err := newClient(settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	source, err := credentialSource(settings)
	if err != nil {
		return err
	}
	store, err := openHistory(settings)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	environment := envFlag
	if environment == "" {
		environment = settings.DefaultEnvironment
	}
	variables := make(map[string]any, len(varsFlag))
	for k, v := range varsFlag {
		variables[k] = v
	}

	cfg := &scenario.Config{
		Environment: environment,
		BaseURI:     firstNonEmpty(baseURIFlag, settings.BaseURI),
		Variables:   variables,
		Bail:        bailFlag || settings.GetBail(),
		NameFilter:  nameFlag,
		TagsFilter:  splitTags(tagsFlag),
		Source:      source,
		Transport:   client,
		Warn:        warnFunc(cmd.ErrOrStderr()),
		RateLimit:   rateFlag,
	}
	if store != nil {
		cfg.History = store
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runAll := func() (int, error) {
		formatter, err := output.New(outputFlag, out, verboseFlag, settings.GetNoColor())
		if err != nil {
			return ExitUsageError, usageError{err}
		}
		if !quietFlag {
			formatter.FormatHeader(version)
		}

		start := time.Now()
		results, errs := runFiles(ctx, scenario.NewRunner(cfg), files, formatter, cfg.Bail)
		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(time.Since(start)); err != nil {
				return ExitConfigError, fmt.Errorf("error writing output: %w", err)
			}
		}

		code := runExitCode(results)
		for _, err := range errs {
			code = moreSevere(code, exitCode(err))
		}
		return code, errors.Join(errs...)
	}

	code, err := runAll()
	if !watchFlag {
		switch {
		case err != nil:
			return &codeError{code: code, err: err}
		case code != ExitSuccess:
			return &codeError{code: code, err: errors.New("run failed"), quiet: true}
		}
		return nil
	}

	return watch(ctx, cmd.OutOrStdout(), args, files, func() {
		_, _ = runAll()
	})
}

// runFiles runs each file in turn. A file that fails to parse is reported
// through the formatter and, like a failed step, ends the run under bail.
func runFiles(ctx context.Context, r *scenario.Runner, files []string, formatter output.Formatter, bail bool) ([]*scenario.RunResult, []error) {
	var (
		results []*scenario.RunResult
		errs    []error
	)
	for _, file := range files {
		result, err := r.RunFile(ctx, file)
		if err != nil {
			formatter.FormatError(err)
			errs = append(errs, err)
			if bail {
				break
			}
			continue
		}

		formatter.FormatResult(result)
		results = append(results, result)
		if bail && !result.OK() {
			break
		}
	}
	return results, errs
}

func dryRun(w io.Writer, files []string) error {
	var errs []error
	for _, file := range files {
		s, err := scenario.ParseFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Would run: %s (%d steps)\n", file, len(s.Steps))
	}
	return errors.Join(errs...)
}

// watch re-runs after a scenario file under args is written, until ctx is
// cancelled.
func watch(ctx context.Context, w io.Writer, args, files []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Add files and directories to watch
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	// Also watch the original args if they're directories
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(w, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isScenarioFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(w, "\n\nFile changed: %s\nRe-running scenarios...\n\n", name)
				rerun()
				fmt.Fprintf(w, "\nWatching for changes... (press Ctrl+C to stop)\n")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "watcher error: %v\n", err)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
