package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/restcheck/packages/core/config"
	"github.com/abdul-hamid-achik/restcheck/packages/core/env"
	"github.com/abdul-hamid-achik/restcheck/packages/history"
	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

// Flags shared by every command that sends requests.
var (
	configFlag      string
	envFileFlag     string
	envPrefixFlag   string
	noColorFlag     bool
	timeoutFlag     string
	proxyFlag       string
	insecureFlag    bool
	logRequestFlag  []string
	logResponseFlag []string
	historyFlag     string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("RESTCHECK_CONFIG", ""), "Path to config file (env: RESTCHECK_CONFIG)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("RESTCHECK_ENV_FILE", ""), "Path to .env file with credentials (env: RESTCHECK_ENV_FILE)")
	flags.StringVar(&envPrefixFlag, "env-prefix", getEnvString("RESTCHECK_ENV_PREFIX", ""), "Prefix for credential lookups in the environment (env: RESTCHECK_ENV_PREFIX)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("RESTCHECK_NO_COLOR", false), "Disable colored output (env: RESTCHECK_NO_COLOR)")
	flags.StringVar(&timeoutFlag, "timeout", getEnvString("RESTCHECK_TIMEOUT", ""), "Request timeout, e.g. 30s, 1m (env: RESTCHECK_TIMEOUT)")
	flags.StringVar(&proxyFlag, "proxy", getEnvString("RESTCHECK_PROXY", ""), "Proxy URL for HTTP requests (env: RESTCHECK_PROXY)")
	flags.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("RESTCHECK_INSECURE", false), "Disable SSL certificate validation (env: RESTCHECK_INSECURE)")
	flags.StringSliceVar(&logRequestFlag, "log-request", nil, "Log request details: all, method, uri, params, headers, cookies, body")
	flags.StringSliceVar(&logResponseFlag, "log-response", nil, "Log response details: all, status, headers, cookies, body")
	flags.StringVar(&historyFlag, "history", getEnvString("RESTCHECK_HISTORY", ""), "Record sent requests in this SQLite database (env: RESTCHECK_HISTORY)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// loadSettings reads the config file and applies the shared flags on top.
func loadSettings() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, &codeError{code: ExitConfigError, err: err}
	}

	override := &config.Config{
		EnvFile:     envFileFlag,
		EnvPrefix:   envPrefixFlag,
		Proxy:       proxyFlag,
		History:     historyFlag,
		LogRequest:  logRequestFlag,
		LogResponse: logResponseFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d <= 0 {
			return nil, usageError{fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag)}
		}
		override.Timeout = int(d.Milliseconds())
	}
	if insecureFlag {
		override.ValidateSSL = config.BoolPtr(false)
	}
	if noColorFlag {
		override.NoColor = config.BoolPtr(true)
	}

	merged := cfg.Merge(override)
	if merged.GetNoColor() {
		color.NoColor = true
	}
	return merged, nil
}

// newClient builds the HTTP client described by cfg. Logged traffic goes
// to w.
func newClient(cfg *config.Config, w io.Writer) (*http.Client, error) {
	opts, err := cfg.ClientOptions(w)
	if err != nil {
		return nil, usageError{err}
	}
	return http.NewClient(opts...), nil
}

func credentialSource(cfg *config.Config) (env.Source, error) {
	src, err := cfg.CredentialSource()
	if err != nil {
		return nil, &codeError{code: ExitConfigError, err: err}
	}
	return src, nil
}

// openHistory opens the configured history database, or returns nil when
// none is configured.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.History == "" {
		return nil, nil
	}
	store, err := history.Open(cfg.History)
	if err != nil {
		return nil, &codeError{code: ExitConfigError, err: err}
	}
	return store, nil
}

func defaultHistoryPath() string {
	if p := getEnvString("RESTCHECK_HISTORY", ""); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".restcheck-history.db"
	}
	return filepath.Join(home, ".restcheck", "history.db")
}

// collectFiles expands directories into the scenario files they contain.
func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isScenarioFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			files = append(files, arg)
		}
	}

	return files, nil
}

// isScenarioFile accepts YAML files other than restcheck's own config.
func isScenarioFile(path string) bool {
	if slices.Contains(config.ConfigFilenames, filepath.Base(path)) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// warnFunc prints resolver warnings to w.
func warnFunc(w io.Writer) env.WarnFunc {
	return func(format string, args ...any) {
		fmt.Fprintf(w, "warning: "+format+"\n", args...)
	}
}
