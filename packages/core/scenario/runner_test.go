package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/restcheck/packages/core/env"
	"github.com/abdul-hamid-achik/restcheck/packages/history"
	"github.com/abdul-hamid-achik/restcheck/packages/http"
	"github.com/abdul-hamid-achik/restcheck/packages/mock"
	"github.com/abdul-hamid-achik/restcheck/packages/request"
)

var bookerCredentials = env.MapSource{
	"BOOKER_USERNAME": "admin",
	"BOOKER_PASSWORD": "password123",
}

// newBookingServer stubs a small booking API. Any other route is echoed
// back as JSON.
func newBookingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := mock.NewServer()
	srv.Stub("POST", "/auth", &mock.StubResponse{Body: `{"token":"abc123"}`})
	srv.Stub("POST", "/booking", &mock.StubResponse{Body: `{
		"bookingid": 20,
		"booking": {
			"firstname": "Jim",
			"totalprice": 111,
			"depositpaid": true,
			"bookingdates": {"checkin": "2018-01-01", "checkout": "2019-01-01"}
		}
	}`})
	srv.Stub("GET", "/booking/{id}", &mock.StubResponse{Body: `{"bookingid": {id}, "firstname": "Jim"}`})
	srv.Stub("DELETE", "/booking/{id}", &mock.StubResponse{StatusCode: 201, ContentType: "text/plain", Body: "Created"})
	srv.Stub("POST", "/oauth2/token", &mock.StubResponse{Body: `{"access_token":"tkn","token_type":"bearer","expires_in":3600}`})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func parse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := Parse(strings.NewReader(yaml))
	require.NoError(t, err)
	return s
}

func newTestRunner(ts *httptest.Server, cfg Config) *Runner {
	cfg.Variables = env.MergeVariables(map[string]any{"baseUri": ts.URL}, cfg.Variables)
	if cfg.Source == nil {
		cfg.Source = bookerCredentials
	}
	return NewRunner(&cfg)
}

const bookingScenario = `
name: booking
baseUri: "{{baseUri}}"
headers:
  Accept: application/json
variables:
  firstname: Jim
steps:
  - name: createToken
    method: POST
    path: /auth
    body:
      username: "{{$BOOKER_USERNAME}}"
      password: "{{$BOOKER_PASSWORD}}"
    expect:
      status: 200
      fields:
        - {path: token, op: exists}
    capture:
      token: token

  - name: createBooking
    method: POST
    path: /booking
    body:
      firstname: "{{firstname}}"
      totalprice: 111
    expect:
      status: 200
      rootPath: booking
      fields:
        - {path: firstname, value: "{{firstname}}"}
        - {path: totalprice, op: ">", value: 100}
        - {path: bookingdates.checkin, value: "2018-01-01"}
      absent: [additionalneeds]
      queries:
        - {path: booking.totalprice, value: 111}
      schema:
        type: object
        required: [bookingid, booking]
    capture:
      bookingid: bookingid
      contentType: {from: header, path: Content-Type}

  - name: updateBooking
    method: PUT
    path: /booking/{id}
    dependsOn: [createToken, createBooking]
    pathParams:
      id: "{{createBooking.bookingid}}"
    headers:
      Cookie: "token={{createToken.token}}"
      accept: application/xml
    body:
      firstname: James
    expect:
      status: 200
      fields:
        - {path: path, value: /booking/20}
        - {path: headers.Cookie, value: token=abc123}
        - {path: headers.Accept, value: application/xml}
        - {path: body.firstname, value: James}

  - name: checkAuth
    path: /whoami
    auth:
      type: preemptive
      username: "{{$BOOKER_USERNAME}}"
      password: "{{$BOOKER_PASSWORD}}"
    expect:
      fields:
        - {path: headers.Authorization, value: Basic YWRtaW46cGFzc3dvcmQxMjM=}

  - name: deleteBooking
    method: DELETE
    path: /booking/{id}
    pathParams:
      id: "{{bookingid}}"
    expect:
      status: 201
      body: {value: Created}
`

func TestRunner_BookingFlow(t *testing.T) {
	ts := newBookingServer(t)
	r := newTestRunner(ts, Config{})

	result, err := r.Run(context.Background(), parse(t, bookingScenario))
	require.NoError(t, err)

	for _, step := range result.Steps {
		assert.True(t, step.Passed, "step %s: %v %+v", step.Name, step.Error, step.Assertions)
	}
	assert.Equal(t, 5, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, result.OK())

	assert.Equal(t, "abc123", result.Steps[0].Captures["token"])
	assert.Equal(t, float64(20), result.Steps[1].Captures["bookingid"])
	assert.Equal(t, "application/json", result.Steps[1].Captures["contentType"])
	assert.Len(t, result.Steps[1].Assertions, 7)
	assert.Equal(t, ts.URL+"/booking/20", result.Steps[2].Request.URL)

	assert.EqualValues(t, 5, result.Latency.Count)
	assert.LessOrEqual(t, result.Latency.P50, result.Latency.Max)
}

func TestRunner_FailedStepSkipsDependents(t *testing.T) {
	ts := newBookingServer(t)
	r := newTestRunner(ts, Config{})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: createBooking
    method: POST
    path: /booking
    expect:
      fields:
        - {path: booking.bookingdates.checkin, value: "2018-02-01"}
    capture:
      bookingid: bookingid
  - name: getBooking
    path: /booking/{id}
    dependsOn: [createBooking]
    pathParams: {id: "{{bookingid}}"}
  - name: independent
    path: /ping
`))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)

	failed := result.Steps[0]
	require.Len(t, failed.Assertions, 1)
	assert.Contains(t, failed.Assertions[0].Message, `booking.bookingdates.checkin: expected equal to "2018-02-01", got "2018-01-01"`)
	assert.Equal(t, `dependency "createBooking" did not pass`, result.Steps[1].SkipReason)
	assert.True(t, result.Steps[2].Passed)
}

func TestRunner_Bail(t *testing.T) {
	ts := newBookingServer(t)
	r := newTestRunner(ts, Config{Bail: true})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: first
    path: /ping
    expect: {status: 404}
  - name: second
    path: /ping
`))
	require.NoError(t, err)

	assert.Len(t, result.Steps, 1)
	assert.False(t, result.OK())
}

func TestRunner_Filters(t *testing.T) {
	ts := newBookingServer(t)
	r := newTestRunner(ts, Config{NameFilter: "get*", TagsFilter: []string{"smoke"}})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: getOne
    path: /booking/1
    tags: [smoke]
  - name: getTwo
    path: /booking/2
  - name: listAll
    path: /booking
    tags: [smoke]
  - name: getThree
    path: /booking/3
    skip: not implemented yet
    tags: [smoke]
`))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, "filtered out", result.Steps[1].SkipReason)
	assert.Equal(t, "not implemented yet", result.Steps[3].SkipReason)
}

func TestRunner_ConfigurationErrors(t *testing.T) {
	ts := newBookingServer(t)
	var warnings []string
	r := newTestRunner(ts, Config{Warn: func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: unresolved
    path: /booking/{{bookingid}}
  - name: missingParam
    path: /booking/{id}
  - name: missingCredential
    path: /ping
    headers:
      X-Api-Key: "{{$API_KEY}}"
`))
	require.NoError(t, err)

	var cfgErr *request.ConfigurationError
	require.ErrorAs(t, result.Steps[0].Error, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)
	assert.Contains(t, cfgErr.Reason, "bookingid")

	require.ErrorAs(t, result.Steps[1].Error, &cfgErr)
	assert.Equal(t, "pathParams", cfgErr.Field)
	assert.Nil(t, result.Steps[1].Response)

	var missing *env.MissingError
	require.ErrorAs(t, result.Steps[2].Error, &missing)
	assert.Equal(t, []string{"API_KEY"}, missing.Keys)
	assert.False(t, result.Steps[2].Passed)
	assert.Nil(t, result.Steps[2].Request)
	assert.Empty(t, warnings)
}

func TestRunner_MissingCredentialsFailStep(t *testing.T) {
	ts := newBookingServer(t)

	tests := []struct {
		name     string
		step     string
		expected []string
	}{
		{
			name: "auth and header",
			step: `
    auth: {type: preemptive, username: "{{$NOPE_USER}}", password: "{{$NOPE_PASS}}"}
    headers:
      X-Api-Key: "{{$API_KEY}}"`,
			expected: []string{"API_KEY", "NOPE_USER", "NOPE_PASS"},
		},
		{
			name: "bearer token",
			step: `
    auth: {type: oauth2, token: "{{$ACCESS_TOKEN}}"}`,
			expected: []string{"ACCESS_TOKEN"},
		},
		{
			name: "query",
			step: `
    query:
      key: ["{{$QUERY_KEY}}"]`,
			expected: []string{"QUERY_KEY"},
		},
		{
			name: "nested body",
			step: `
    method: POST
    body:
      credentials:
        secret: "prefix-{{$BODY_SECRET}}"`,
			expected: []string{"BODY_SECRET"},
		},
		{
			name: "form",
			step: `
    method: POST
    form:
      password: "{{$FORM_PASSWORD}}"`,
			expected: []string{"FORM_PASSWORD"},
		},
		{
			name: "repeated key reported once",
			step: `
    headers:
      X-One: "{{$DUP}}"
      X-Two: "{{ $DUP }}"`,
			expected: []string{"DUP"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(ts, Config{Source: env.MapSource{}})

			result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: secret
    path: /ping`+tt.step+`
`))
			require.NoError(t, err)
			require.Len(t, result.Steps, 1)

			step := result.Steps[0]
			assert.False(t, step.Passed)
			assert.Nil(t, step.Request)
			assert.Nil(t, step.Response)
			assert.Equal(t, 1, result.Failed)

			var missing *env.MissingError
			require.ErrorAs(t, step.Error, &missing)
			assert.Equal(t, tt.expected, missing.Keys)
		})
	}
}

func TestRunner_CredentialsFromSource(t *testing.T) {
	ts := newBookingServer(t)
	r := newTestRunner(ts, Config{Source: env.MapSource{"API_KEY": "k-123"}})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: secret
    path: /ping
    auth: {type: none, username: "{{$UNUSED}}"}
    headers:
      X-Api-Key: "{{$API_KEY}}"
    expect:
      fields:
        - {path: headers.X-Api-Key, value: k-123}
`))
	require.NoError(t, err)
	assert.True(t, result.Steps[0].Passed, "%+v", result.Steps[0])
}

func TestRunner_CredentialInBaseURI(t *testing.T) {
	ts := newBookingServer(t)
	r := newTestRunner(ts, Config{Source: env.MapSource{}})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{$API_HOST}}"
steps:
  - name: ping
    path: /ping
`))
	require.NoError(t, err)

	var cfgErr *request.ConfigurationError
	require.ErrorAs(t, result.Steps[0].Error, &cfgErr)
	assert.Equal(t, "baseURI", cfgErr.Field)
	assert.Contains(t, cfgErr.Reason, "$API_HOST")
}

func TestRunner_NetworkError(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	r := NewRunner(&Config{BaseURI: url})
	result, err := r.Run(context.Background(), parse(t, "steps:\n  - name: ping\n    path: /ping\n"))
	require.NoError(t, err)

	var netErr *http.NetworkError
	require.ErrorAs(t, result.Steps[0].Error, &netErr)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Latency.Count)
}

func TestRunner_OAuth2FromSource(t *testing.T) {
	ts := newBookingServer(t)
	src := env.MapSource{
		"IMGUR_TOKEN_URL":     ts.URL + "/oauth2/token",
		"IMGUR_CLIENT_ID":     "id",
		"IMGUR_CLIENT_SECRET": "secret",
		"IMGUR_REFRESH_TOKEN": "rt",
	}
	r := newTestRunner(ts, Config{Source: src})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
auth: {type: oauth2, prefix: IMGUR_}
steps:
  - name: account
    path: /3/account/me
    expect:
      fields:
        - {path: headers.Authorization, value: Bearer tkn}
  - name: anonymous
    path: /3/gallery
    auth: {type: none}
    expect:
      absent: [headers.Authorization]
`))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Passed, "%+v", result.Steps)
}

func TestRunner_OAuth2MissingCredentials(t *testing.T) {
	ts := newBookingServer(t)
	r := newTestRunner(ts, Config{Source: env.MapSource{}})

	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: account
    path: /3/account/me
    auth: {type: oauth2, prefix: IMGUR_}
`))
	require.NoError(t, err)

	var missing *env.MissingError
	require.ErrorAs(t, result.Steps[0].Error, &missing)
	assert.Equal(t, []string{"IMGUR_CLIENT_ID", "IMGUR_TOKEN_URL"}, missing.Keys)
}

func TestRunner_RunFile_FormAndMultipart(t *testing.T) {
	ts := newBookingServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), []byte("png"), 0o644))
	path := filepath.Join(dir, "upload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
baseUri: "{{baseUri}}"
steps:
  - name: login
    method: POST
    path: /login
    form:
      username: "{{$BOOKER_USERNAME}}"
      scope: [read, write]
    expect:
      fields:
        - {path: form.username, value: admin}
        - {path: form.scope, value: [read, write]}
  - name: upload
    method: POST
    path: /3/upload
    multipart:
      - {name: title, value: "cat {{uuid()}}"}
      - {name: image, file: cat.png}
    expect:
      fields:
        - {path: files.image, value: cat.png}
        - {path: form.title, op: startsWith, value: "cat "}
`), 0o644))

	r := newTestRunner(ts, Config{})
	result, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "upload", result.Name)
	assert.Equal(t, 2, result.Passed, "%+v", result.Steps)
}

func TestRunner_Environment(t *testing.T) {
	ts := newBookingServer(t)
	s := parse(t, `
environments:
  local:
    region: eu
steps:
  - name: ping
    baseUri: "{{baseUri}}"
    path: /ping
    query:
      region: "{{region}}"
    expect:
      fields:
        - {path: params.region, value: eu}
`)

	result, err := newTestRunner(ts, Config{Environment: "local"}).Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)

	_, err = newTestRunner(ts, Config{Environment: "prod"}).Run(context.Background(), s)
	assert.ErrorContains(t, err, `unknown environment "prod"`)
}

func TestRunner_Cancelled(t *testing.T) {
	ts := newBookingServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestRunner(ts, Config{}).Run(ctx, parse(t, "baseUri: \"{{baseUri}}\"\nsteps:\n  - path: /ping\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "cancelled", result.Steps[0].SkipReason)
	assert.True(t, errors.Is(ctx.Err(), context.Canceled))
}

func TestRunner_RateLimit(t *testing.T) {
	ts := newBookingServer(t)

	start := time.Now()
	result, err := newTestRunner(ts, Config{RateLimit: 10}).Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: first
    path: /ping
  - name: second
    path: /ping
  - name: third
    path: /ping
`))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Passed)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestRunner_History(t *testing.T) {
	ts := newBookingServer(t)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	closed := httptest.NewServer(nil)
	closed.Close()

	r := newTestRunner(ts, Config{History: store})
	result, err := r.Run(context.Background(), parse(t, `
baseUri: "{{baseUri}}"
steps:
  - name: createToken
    method: POST
    path: /auth
  - name: offline
    baseUri: `+closed.URL+`
    path: /ping
`))
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)

	entries, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, closed.URL+"/ping", entries[0].URL)
	assert.NotEmpty(t, entries[0].Error)
	assert.Equal(t, ts.URL+"/auth", entries[1].URL)
	assert.Equal(t, result.Steps[0].Response.RequestID, entries[1].ID)
	assert.Equal(t, `{"token":"abc123"}`, entries[1].ResponseBody)
}
