package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/restcheck/packages/mock"
)

var (
	echoPortFlag    int
	echoDelayFlag   string
	echoStubsFlag   string
	echoVerboseFlag bool
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Start a local echo server",
	Long: `Start an HTTP server that answers every request with a JSON description
of what it received: method, path, query parameters, headers, body, form
fields and uploaded files.

A stub file replaces the echo for chosen routes:

  - method: POST
    path: /auth
    body: '{"token": "abc123"}'
  - method: GET
    path: /booking/{id}
    status: 200
    headers:
      X-Booking: "{id}"
    body: '{"bookingid": {id}}'

Examples:
  restcheck echo
  restcheck echo --port 8080 --delay 100ms
  restcheck echo --stubs stubs.yaml --verbose`,
	Args: usageArgs(cobra.NoArgs),
	RunE: echoCommand,
}

func init() {
	echoCmd.Flags().IntVarP(&echoPortFlag, "port", "p", getEnvInt("RESTCHECK_ECHO_PORT", 3000), "Port to listen on (env: RESTCHECK_ECHO_PORT)")
	echoCmd.Flags().StringVarP(&echoDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	echoCmd.Flags().StringVar(&echoStubsFlag, "stubs", "", "YAML file of stubbed routes")
	echoCmd.Flags().BoolVarP(&echoVerboseFlag, "verbose", "v", false, "Log every request")
}

// stubFile is one entry of a --stubs file.
type stubFile struct {
	Method      string            `yaml:"method"`
	Path        string            `yaml:"path"`
	Status      int               `yaml:"status"`
	ContentType string            `yaml:"contentType"`
	Headers     map[string]string `yaml:"headers"`
	Body        string            `yaml:"body"`
}

func loadStubs(server *mock.Server, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var stubs []stubFile
	if err := yaml.Unmarshal(data, &stubs); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, s := range stubs {
		if s.Method == "" || s.Path == "" {
			return 0, fmt.Errorf("%s: stub %d needs a method and a path", path, i+1)
		}
		server.Stub(s.Method, s.Path, &mock.StubResponse{
			StatusCode:  s.Status,
			ContentType: s.ContentType,
			Headers:     s.Headers,
			Body:        s.Body,
		})
	}
	return len(stubs), nil
}

func echoCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if echoDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(echoDelayFlag)
		if err != nil {
			return usageError{fmt.Errorf("invalid delay value %q: %w", echoDelayFlag, err)}
		}
	}

	server := mock.NewServer(
		mock.WithPort(echoPortFlag),
		mock.WithDelay(delay),
		mock.WithVerbose(echoVerboseFlag),
	)

	if echoStubsFlag != "" {
		n, err := loadStubs(server, echoStubsFlag)
		if err != nil {
			return &codeError{code: ExitConfigError, err: err}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d stubbed routes\n", n)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return &codeError{code: ExitNetworkError, err: err}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nEcho server stopped")
	return nil
}
