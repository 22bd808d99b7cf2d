package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/assertions"
	"github.com/abdul-hamid-achik/restcheck/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/restcheck/packages/core/env"
	"github.com/abdul-hamid-achik/restcheck/packages/core/scenario"
	"github.com/abdul-hamid-achik/restcheck/packages/http"
	"github.com/abdul-hamid-achik/restcheck/packages/output"
	"github.com/abdul-hamid-achik/restcheck/packages/query"
	"github.com/abdul-hamid-achik/restcheck/packages/request"
	"github.com/abdul-hamid-achik/restcheck/packages/schema"
)

var sendCmd = &cobra.Command{
	Use:   "send [method] <url>",
	Short: "Send one request and check the response",
	Long: `Send a single HTTP request, print the response and run any checks.

The method defaults to GET. A URL starting with / is joined to the
configured base URI. Placeholders such as {{$API_KEY}} are resolved from
the environment and the env file.

Checks take the form "<path> <operator> [value]", for example
"booking.totalprice > 100" or "token exists". Values are read as JSON
when they parse as JSON and as strings otherwise.

Examples:
  restcheck send https://restful-booker.herokuapp.com/booking/1
  restcheck send POST https://restful-booker.herokuapp.com/auth \
    -d '{"username":"{{$BOOKER_USERNAME}}","password":"{{$BOOKER_PASSWORD}}"}' \
    --status 200 --check "token exists" --extract token
  restcheck send GET /booking/{id} -p id=1 --check "firstname == Jim"
  restcheck send POST https://api.imgur.com/3/image --auth oauth2 --oauth2-prefix IMGUR_ -F image=@cat.png`,
	Args: usageArgs(cobra.RangeArgs(1, 2)),
	RunE: sendCommand,
}

var (
	sendHeaders      []string
	sendQuery        []string
	sendPathParams   []string
	sendData         string
	sendForm         []string
	sendMultipart    []string
	sendContentType  string
	sendUser         string
	sendAuthType     string
	sendToken        string
	sendOAuth2Prefix string
	sendStatus       int
	sendChecks       []string
	sendQueryChecks  []string
	sendAbsent       []string
	sendSchema       string
	sendRootPath     string
	sendExtract      string
	sendVerbose      bool
)

func init() {
	flags := sendCmd.Flags()
	flags.StringArrayVarP(&sendHeaders, "header", "H", nil, "Request header (Name: value), repeatable")
	flags.StringArrayVarP(&sendQuery, "query", "q", nil, "Query parameter (name=value), repeatable")
	flags.StringArrayVarP(&sendPathParams, "path-param", "p", nil, "Path parameter for a {name} placeholder (name=value)")
	flags.StringVarP(&sendData, "data", "d", "", "Request body, or @file to read it from a file")
	flags.StringArrayVarP(&sendForm, "form", "f", nil, "URL-encoded form field (name=value)")
	flags.StringArrayVarP(&sendMultipart, "multipart", "F", nil, "Multipart field (name=value) or file (name=@path)")
	flags.StringVar(&sendContentType, "content-type", "", "Content type of the body (default: application/json for --data)")

	flags.StringVarP(&sendUser, "user", "u", "", "Credentials as user:password")
	flags.StringVar(&sendAuthType, "auth", "", "Authentication: basic, preemptive, digest, bearer, oauth2 (default: basic with --user)")
	flags.StringVar(&sendToken, "token", "", "Bearer token for --auth bearer")
	flags.StringVar(&sendOAuth2Prefix, "oauth2-prefix", getEnvString("RESTCHECK_OAUTH2_PREFIX", "OAUTH2_"), "Credential prefix for --auth oauth2 (env: RESTCHECK_OAUTH2_PREFIX)")

	flags.IntVar(&sendStatus, "status", 0, "Expected status code")
	flags.StringArrayVar(&sendChecks, "check", nil, "Field check (path operator [value]), repeatable")
	flags.StringArrayVar(&sendQueryChecks, "jmes", nil, "JMESPath check (expression operator [value]), repeatable")
	flags.StringArrayVar(&sendAbsent, "absent", nil, "Field that must not be present, repeatable")
	flags.StringVar(&sendSchema, "schema", "", "JSON Schema file the body must satisfy")
	flags.StringVar(&sendRootPath, "root-path", "", "Path prefix applied to --check and --absent")
	flags.StringVar(&sendExtract, "extract", "", "Print only the value at this path instead of the response")
	flags.BoolVarP(&sendVerbose, "verbose", "v", false, "Show response headers")
}

func sendCommand(cmd *cobra.Command, args []string) error {
	method, rawURL := "GET", args[0]
	if len(args) == 2 {
		method, rawURL = strings.ToUpper(args[0]), args[1]
	}

	settings, err := loadSettings()
	if err != nil {
		return err
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

	resolver := env.NewResolver(source)
	resolver.SetWarnFunc(warnFunc(cmd.ErrOrStderr()))

	desc, err := buildSendRequest(resolver, settings.BaseURI, rawURL)
	if err != nil {
		return err
	}
	if sendAuthType == "oauth2" {
		cfg, err := oauth2.ConfigFromSource(source, sendOAuth2Prefix)
		if err != nil {
			return err
		}
		auth, err := oauth2.NewProvider(cfg).Auth(cmd.Context())
		if err != nil {
			return &codeError{code: ExitNetworkError, err: err}
		}
		desc = desc.WithAuth(auth)
	}

	var transport request.Transport = client
	if store != nil {
		transport = recordingTransport{next: client, store: store, warn: warnFunc(cmd.ErrOrStderr())}
	}
	resp, err := desc.WithTransport(transport).Send(method)
	if err != nil {
		return err
	}

	vr := assertions.Then(resp, assertions.WithBaseDir("."))
	if sendRootPath != "" {
		vr = vr.RootPath(sendRootPath)
	}

	out := cmd.OutOrStdout()
	if sendExtract != "" {
		value, err := vr.Extract(sendExtract)
		if err != nil {
			return err
		}
		text, err := query.Format(value)
		if err != nil {
			return err
		}
		if s, ok := value.(string); ok {
			text = s
		}
		fmt.Fprintln(out, text)
	} else {
		formatter := output.NewConsoleFormatter(
			output.WithWriter(out),
			output.WithVerbose(sendVerbose),
			output.WithNoColor(settings.GetNoColor()),
		)
		formatter.FormatResponse(resp)
	}

	if err := runSendChecks(vr); err != nil {
		return usageError{err}
	}

	var failed []string
	for _, r := range vr.Results() {
		if !r.Passed {
			failed = append(failed, r.Message)
		}
	}
	if len(failed) > 0 {
		for _, msg := range failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", msg)
		}
		return &codeError{code: ExitTestFailure, err: fmt.Errorf("%d check(s) failed", len(failed)), quiet: true}
	}
	return nil
}

// buildSendRequest turns the command line into a request descriptor with
// every placeholder resolved.
func buildSendRequest(resolver *env.Resolver, baseURI, rawURL string) (request.Descriptor, error) {
	desc := request.Given().WithBaseDir(".")

	if missing := resolver.MissingCredentials(rawURL, sendHeaders, sendQuery, sendPathParams, sendForm, sendMultipart, sendData, sendUser, sendToken); len(missing) > 0 {
		return desc, &env.MissingError{Keys: missing}
	}

	rawURL = resolver.Resolve(rawURL)
	if strings.HasPrefix(rawURL, "/") {
		if baseURI == "" {
			return desc, &request.ConfigurationError{Field: "baseURI", Reason: "relative URL " + rawURL + " needs a configured base URI"}
		}
		path, rawQuery, _ := strings.Cut(rawURL, "?")
		if rawQuery != "" {
			baseURI += "?" + rawQuery
		}
		desc = desc.WithBaseURI(baseURI).WithBasePath(path)
	} else {
		if !strings.Contains(rawURL, "://") {
			rawURL = "http://" + rawURL
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return desc, &request.ConfigurationError{Field: "baseURI", Reason: err.Error()}
		}
		base := u.Scheme + "://" + u.Host
		if u.RawQuery != "" {
			base += "?" + u.RawQuery
		}
		desc = desc.WithBaseURI(base).WithBasePath(u.Path)
	}

	for _, h := range sendHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return desc, usageError{fmt.Errorf("invalid header %q (use Name: value)", h)}
		}
		desc = desc.WithHeader(strings.TrimSpace(name), resolver.Resolve(strings.TrimSpace(value)))
	}

	pairs := func(flag string, values []string, apply func(name, value string)) error {
		for _, kv := range values {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return usageError{fmt.Errorf("invalid --%s value %q (use name=value)", flag, kv)}
			}
			apply(name, resolver.Resolve(value))
		}
		return nil
	}
	if err := pairs("query", sendQuery, func(n, v string) { desc = desc.WithQueryParam(n, v) }); err != nil {
		return desc, err
	}
	if err := pairs("path-param", sendPathParams, func(n, v string) { desc = desc.WithPathParam(n, v) }); err != nil {
		return desc, err
	}
	form := make(map[string]any)
	if err := pairs("form", sendForm, func(n, v string) {
		switch prev := form[n].(type) {
		case nil:
			form[n] = v
		case []any:
			form[n] = append(prev, v)
		default:
			form[n] = []any{prev, v}
		}
	}); err != nil {
		return desc, err
	}
	if err := pairs("multipart", sendMultipart, func(n, v string) {
		if path, ok := strings.CutPrefix(v, "@"); ok {
			desc = desc.WithFormFile(n, path)
			return
		}
		desc = desc.WithFormField(n, v)
	}); err != nil {
		return desc, err
	}

	switch {
	case sendData != "" && len(form) > 0:
		return desc, usageError{errors.New("--data and --form cannot be combined")}
	case len(form) > 0:
		desc = desc.WithBody(request.RawMap(form)).WithContentType(request.ContentTypeForm)
	case sendData != "":
		data := sendData
		if path, ok := strings.CutPrefix(data, "@"); ok {
			b, err := os.ReadFile(path)
			if err != nil {
				return desc, usageError{fmt.Errorf("cannot read body file: %w", err)}
			}
			data = string(b)
			if missing := resolver.MissingCredentials(data); len(missing) > 0 {
				return desc, &env.MissingError{Keys: missing}
			}
		}
		data = resolver.Resolve(data)
		if !json.Valid([]byte(data)) {
			return desc, usageError{errors.New("--data must be valid JSON")}
		}
		desc = desc.WithBody(request.Typed(json.RawMessage(data)))
	}
	if sendContentType != "" {
		desc = desc.WithContentType(sendContentType)
	}

	auth, err := sendAuth(resolver)
	if err != nil {
		return desc, err
	}
	return desc.WithAuth(auth), nil
}

func sendAuth(resolver *env.Resolver) (request.Auth, error) {
	user, pass, _ := strings.Cut(resolver.Resolve(sendUser), ":")
	kind := sendAuthType
	if kind == "" && sendUser != "" {
		kind = "basic"
	}

	switch kind {
	case "":
		return request.Auth{}, nil
	case "basic":
		return request.BasicAuth(user, pass), nil
	case "preemptive":
		return request.PreemptiveBasicAuth(user, pass), nil
	case "digest":
		return request.DigestAuth(user, pass), nil
	case "bearer":
		return request.OAuth2Auth(resolver.Resolve(sendToken)), nil
	case "oauth2":
		return request.Auth{}, nil
	default:
		return request.Auth{}, usageError{fmt.Errorf("unknown auth type %q (use basic, preemptive, digest, bearer or oauth2)", kind)}
	}
}

// runSendChecks evaluates every check flag against vr. Failures are recorded
// on vr; the returned error is for checks that cannot be parsed.
func runSendChecks(vr *assertions.ValidatableResponse) error {
	if sendStatus != 0 {
		_ = vr.AssertStatus(sendStatus)
	}
	for _, c := range sendChecks {
		path, m, err := parseCheck(c)
		if err != nil {
			return fmt.Errorf("--check %q: %w", c, err)
		}
		if name, ok := strings.CutPrefix(path, "header."); ok {
			_ = vr.AssertHeader(name, m)
			continue
		}
		_ = vr.AssertField(path, m)
	}
	for _, c := range sendQueryChecks {
		expr, m, err := parseCheck(c)
		if err != nil {
			return fmt.Errorf("--jmes %q: %w", c, err)
		}
		if !query.IsValid(expr) {
			_, err := query.Compile(expr)
			return err
		}
		_ = vr.AssertQuery(expr, m)
	}
	for _, path := range sendAbsent {
		_ = vr.AssertAbsent(path)
	}
	if sendSchema != "" {
		_ = vr.AssertSchema(schema.File(sendSchema))
	}
	return nil
}

// parseCheck splits "subject operator [value]" at the last known operator,
// so subjects such as JMESPath filters may contain spaces.
func parseCheck(s string) (string, assertions.Matcher, error) {
	fields := strings.Fields(s)
	for i := len(fields) - 1; i > 0; i-- {
		if !assertions.KnownOperator(fields[i]) {
			continue
		}
		subject := strings.Join(fields[:i], " ")
		var value any
		if i+1 < len(fields) {
			value = parseCheckValue(strings.Join(fields[i+1:], " "))
		}
		m, err := assertions.ParseMatcher(fields[i], value)
		if err != nil {
			return "", nil, err
		}
		return subject, m, nil
	}
	return "", nil, errors.New("expected <path> <operator> [value]")
}

func parseCheckValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

// recordingTransport stores every exchange in the history database.
type recordingTransport struct {
	next  request.Transport
	store scenario.Recorder
	warn  env.WarnFunc
}

func (t recordingTransport) Do(req *http.Request) (*http.Response, error) {
	resp, err := t.next.Do(req)
	var recErr error
	if err != nil {
		_, recErr = t.store.RecordFailure(req, err)
	} else {
		_, recErr = t.store.Record(req, resp)
	}
	if recErr != nil {
		t.warn("recording history: %v", recErr)
	}
	return resp, err
}
