package config

import (
	"bytes"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetBail())
	assert.False(t, cfg.GetNoColor())
	assert.Equal(t, 30000, cfg.Timeout)
	assert.True(t, cfg.IsDefault())
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".restcheck.yaml", `
baseUri: https://restful-booker.herokuapp.com
timeout: 5000
validateSSL: false
headers:
  Accept: application/json
logRequest: [uri, body]
logResponse: [status]
envFile: .env
`)

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://restful-booker.herokuapp.com", cfg.BaseURI)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.False(t, cfg.GetValidateSSL())
	assert.True(t, cfg.GetFollowRedirects(), "unset flags keep their defaults")
	assert.Equal(t, 10, cfg.MaxRedirects)
	assert.Equal(t, map[string]string{"Accept": "application/json"}, cfg.Headers)
	assert.Equal(t, []string{"uri", "body"}, cfg.LogRequest)
	assert.Equal(t, filepath.Join(dir, ".env"), cfg.EnvFile)
	assert.False(t, cfg.IsDefault())
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "restcheck.json", `{"baseUri": "https://api.imgur.com", "bail": true}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.imgur.com", cfg.BaseURI)
	assert.True(t, cfg.GetBail())
}

func TestLoadConfig_RCAcceptsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".restcheckrc", `{"noColor": true}`)

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, cfg.GetNoColor())
}

func TestFindAndLoadConfig_SearchOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "restcheck.json", `{"timeout": 1}`)
	writeFile(t, dir, ".restcheck.yml", `timeout: 2`)

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Timeout)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeFile(t, dir, "bad.json", `{"timeout": "soon"}`))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"Accept": "application/json"}

	merged := base.Merge(&Config{
		BaseURI:         "https://example.test",
		FollowRedirects: BoolPtr(false),
		Headers:         map[string]string{"X-Trace": "1"},
	})

	assert.Equal(t, "https://example.test", merged.BaseURI)
	assert.False(t, merged.GetFollowRedirects())
	assert.True(t, merged.GetValidateSSL())
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Trace": "1"}, merged.Headers)
	assert.Equal(t, map[string]string{"Accept": "application/json"}, base.Headers, "receiver unchanged")
	assert.Same(t, base, base.Merge(nil))
}

func TestClientOptions(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotHeader = r.Header.Get("X-Client")
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer server.Close()

	cfg := DefaultConfig().Merge(&Config{
		Headers:     map[string]string{"X-Client": "restcheck"},
		LogRequest:  []string{"method"},
		LogResponse: []string{"status"},
	})

	var out bytes.Buffer
	opts, err := cfg.ClientOptions(&out)
	require.NoError(t, err)

	resp, err := http.NewClient(opts...).Do(http.NewRequest("GET", server.URL))
	require.NoError(t, err)

	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, "restcheck", gotHeader)
	assert.Contains(t, out.String(), "Request method: GET")
	assert.Contains(t, out.String(), "204 No Content")
}

func TestClientOptions_UnknownDetail(t *testing.T) {
	cfg := DefaultConfig().Merge(&Config{LogResponse: []string{"cookies"}})

	_, err := cfg.ClientOptions(&bytes.Buffer{})
	assert.EqualError(t, err, "logResponse: unknown log detail: cookies")
}

func TestCredentialSource(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RESTCHECK_CFG_TOKEN", "from-env")
	envFile := writeFile(t, dir, ".env", "TOKEN=from-file\nCLIENT_ID=id\n")

	cfg := DefaultConfig().Merge(&Config{EnvFile: envFile, EnvPrefix: "RESTCHECK_CFG_"})
	src, err := cfg.CredentialSource()
	require.NoError(t, err)

	v, _ := src.Lookup("TOKEN")
	assert.Equal(t, "from-env", v)
	v, _ = src.Lookup("CLIENT_ID")
	assert.Equal(t, "id", v)

	cfg.EnvFile = filepath.Join(dir, "missing.env")
	_, err = cfg.CredentialSource()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig().Merge(&Config{BaseURI: "https://example.test", LogRequest: []string{"all"}})

	for _, name := range []string{".restcheck.yaml", "restcheck.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, cfg.SaveConfig(path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}
