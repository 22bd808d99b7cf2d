package http

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Do(NewRequest("GET", server.URL+"/test"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Contains(t, resp.BodyString(), "hello")
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name": "test"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL).
		AddHeader("Content-Type", "application/json").
		SetBody([]byte(`{"name": "test"}`))

	resp, err := NewClient().Do(req)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, int64(123), resp.JSON().Get("id").Int())
}

func TestClient_DuplicateHeadersKept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"one", "two"}, r.Header.Values("X-Test"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL).AddHeader("X-Test", "one").AddHeader("X-Test", "two")
	_, err := NewClient().Do(req)
	require.NoError(t, err)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Do(NewRequest("GET", server.URL))

	require.Error(t, err)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "GET", netErr.Method)
	assert.True(t, netErr.Timeout())
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient().Do(NewRequest("GET", url))

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, url, netErr.URL)
	assert.False(t, netErr.Timeout())
}

func TestClient_WithDefaultHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeader("X-Api-Key", "test-token"))
	resp, err := client.Do(NewRequest("GET", server.URL))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_WithDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeaders(map[string]string{
		"X-Api-Key":  "test-token",
		"User-Agent": "custom-agent",
	}))
	resp, err := client.Do(NewRequest("GET", server.URL))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(true))
	resp, err := client.Do(NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
	assert.Equal(t, 1, redirectCount)
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Do(NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestClient_MaxRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectCount++
		http.Redirect(w, r, "/redirect", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithMaxRedirects(3))
	resp, err := client.Do(NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.LessOrEqual(t, redirectCount, 4)
}

func TestClient_PreemptiveBasicAuth(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "password123", pass)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	req := NewRequest("DELETE", server.URL+"/booking/10")
	req.BasicAuth = &BasicAuthCredentials{Username: "admin", Password: "password123", Preemptive: true}

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestClient_ChallengedBasicAuth(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted Area"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if user != "admin" || pass != "admin" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("Congratulations!"))
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL+"/basic_auth")
	req.BasicAuth = &BasicAuthCredentials{Username: "admin", Password: "admin"}

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Congratulations!", resp.BodyString())
	assert.Equal(t, 2, calls)
}

func TestClient_ChallengedBasicAuthNotChallenged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok, "credentials must not be sent without a challenge")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL)
	req.BasicAuth = &BasicAuthCredentials{Username: "admin", Password: "admin"}

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_DigestAuth(t *testing.T) {
	const realm, nonce = "Protected Area", "dcd98b7102dd2f0e8b11d0f600bfb0c093"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="`+realm+`", qop="auth,auth-int", nonce="`+nonce+`", opaque="5ccc069c403ebaf9f0171e9517f40e41"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		got := ParseWWWAuthenticate(header)
		assert.Equal(t, "digest", got.Scheme)
		expected := &DigestAuth{
			Username: "admin",
			Password: "admin",
			Realm:    realm,
			Nonce:    nonce,
			URI:      "/digest_auth",
			Qop:      "auth",
			Nc:       got.Params["nc"],
			Cnonce:   got.Params["cnonce"],
			Method:   "GET",
		}
		if got.Params["response"] != expected.ComputeDigestResponse() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL+"/digest_auth")
	req.DigestAuth = &DigestAuthCredentials{Username: "admin", Password: "admin"}

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok", resp.BodyString())
}

func TestClient_BearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("DELETE", server.URL+"/image/xyz")
	req.BearerToken = "abc123"

	_, err := NewClient().Do(req)
	require.NoError(t, err)
}

func TestClient_Multipart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png-bytes"), 0644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "image", r.FormValue("type"))
		assert.Equal(t, "upload", r.FormValue("title"))

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "image.png", header.Filename)
		assert.Equal(t, "png-bytes", string(content))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL+"/image").AddHeader("Content-Type", "multipart/form-data")
	req.BaseDir = dir
	req.Multipart = []*MultipartPart{
		{Name: "image", Path: "image.png", File: true},
		{Name: "type", Value: "image"},
		{Name: "title", Value: "upload"},
	}

	resp, err := NewClient().Do(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_MultipartPathTraversal(t *testing.T) {
	req := NewRequest("POST", "http://127.0.0.1:1/upload")
	req.BaseDir = t.TempDir()
	req.Multipart = []*MultipartPart{{Name: "f", Path: "../../../etc/passwd", File: true}}

	_, err := NewClient().Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestClient_FiltersOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"client", "client,request"}, r.Header.Values("X-Trace"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var order []string
	tracing := func(name string) Filter {
		return func(req *Request, next Handler) (*Response, error) {
			order = append(order, name)
			trace := req.Header("X-Trace")
			if trace != "" {
				trace += ","
			}
			req.AddHeader("X-Trace", trace+name)
			resp, err := next(req)
			order = append(order, name+" done")
			return resp, err
		}
	}

	client := NewClient(WithFilters(tracing("client")))
	req := NewRequest("GET", server.URL)
	req.Filters = []Filter{tracing("request")}

	_, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"client", "request", "request done", "client done"}, order)
}

func TestClient_FilterShortCircuit(t *testing.T) {
	stub := func(req *Request, next Handler) (*Response, error) {
		return &Response{StatusCode: 418}, nil
	}
	client := NewClient(WithFilters(stub))

	resp, err := client.Do(NewRequest("GET", "http://example.invalid"))
	require.NoError(t, err)
	assert.Equal(t, 418, resp.StatusCode)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid http URL",
			url:     "http://example.com/path",
			wantErr: false,
		},
		{
			name:    "valid https URL",
			url:     "https://example.com/path",
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			url:     "ftp://example.com",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing scheme",
			url:     "example.com/path",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing host",
			url:     "http:///path",
			wantErr: true,
			errMsg:  "URL must have a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinBase(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		baseDir string
		wantErr bool
	}{
		{"path within base", "/home/user/project/file.txt", "/home/user/project", false},
		{"path traversal attempt", "/home/user/project/../../../etc/passwd", "/home/user/project", true},
		{"relative path traversal", "../../../etc/passwd", "/home/user/project", true},
		{"empty base dir", "/any/path", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinBase(tt.path, tt.baseDir)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "path traversal")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseWWWAuthenticate(t *testing.T) {
	c := ParseWWWAuthenticate(`Digest realm="test@host.com", qop="auth,auth-int", nonce="abc", opaque="xyz"`)

	assert.Equal(t, "digest", c.Scheme)
	assert.Equal(t, "test@host.com", c.Params["realm"])
	assert.Equal(t, "auth,auth-int", c.Params["qop"])
	assert.Equal(t, "abc", c.Params["nonce"])
	assert.Equal(t, "xyz", c.Params["opaque"])

	basic := ParseWWWAuthenticate(`Basic realm="Restricted"`)
	assert.Equal(t, "basic", basic.Scheme)
	assert.Equal(t, "Restricted", basic.Params["realm"])
}

func TestNewDigestAuth_UnsupportedAlgorithm(t *testing.T) {
	challenge := ParseWWWAuthenticate(`Digest realm="r", nonce="n", algorithm=SHA-256`)
	_, err := NewDigestAuth(&DigestAuthCredentials{Username: "u", Password: "p"}, challenge, "GET", "/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHA-256")
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{400, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_IsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"text/html", false},
		{"", false},
	}

	for _, tt := range tests {
		resp := &Response{Headers: map[string]string{"Content-Type": tt.contentType}}
		assert.Equal(t, tt.expected, resp.IsJSON(), "Content-Type: %s", tt.contentType)
	}
}

func TestResponse_JSON(t *testing.T) {
	t.Run("parses JSON bodies", func(t *testing.T) {
		resp := &Response{Body: []byte(`{"bookingdates": {"checkin": "2018-01-01"}}`)}
		assert.Equal(t, "2018-01-01", resp.JSON().Get("bookingdates.checkin").String())
	})

	t.Run("non-JSON body does not exist", func(t *testing.T) {
		resp := &Response{Body: []byte(`<html></html>`)}
		assert.False(t, resp.JSON().Exists())
	})
}

func TestResponse_PrettyString(t *testing.T) {
	resp := &Response{Body: []byte(`{"a":1}`)}
	assert.Equal(t, "{\n  \"a\": 1\n}\n", resp.PrettyString())

	plain := &Response{Body: []byte("not json")}
	assert.Equal(t, "not json", plain.PrettyString())
}

func TestResponse_As(t *testing.T) {
	type booking struct {
		FirstName string `json:"firstname"`
		Dates     struct {
			CheckIn string `json:"checkin"`
		} `json:"bookingdates"`
	}

	resp := &Response{Body: []byte(`{"firstname": "Sam", "bookingdates": {"checkin": "2024-01-01"}}`)}
	var b booking
	require.NoError(t, resp.As(&b))
	assert.Equal(t, "Sam", b.FirstName)
	assert.Equal(t, "2024-01-01", b.Dates.CheckIn)

	bad := &Response{Body: []byte(`nope`)}
	err := bad.As(&b)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decoding response body"))
}
