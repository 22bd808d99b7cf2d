package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client sends Requests. It is the transport the request package delegates
// to, and it owns everything auth-protocol related.
type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders []Header
	filters        []Filter
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	c.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders = append(c.defaultHeaders, Header{Name: key, Value: value})
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders = append(c.defaultHeaders, Header{Name: k, Value: v})
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithFilters adds filters that run around every request sent by the client,
// before any filters attached to the request itself.
func WithFilters(filters ...Filter) ClientOption {
	return func(c *Client) {
		c.filters = append(c.filters, filters...)
	}
}

// Do sends the request once. Transport failures are returned as *NetworkError
// and are never retried.
func (c *Client) Do(req *Request) (*Response, error) {
	filters := make([]Filter, 0, len(c.filters)+len(req.Filters))
	filters = append(filters, c.filters...)
	filters = append(filters, req.Filters...)
	return Chain(c.send, filters...)(req)
}

func (c *Client) send(req *Request) (*Response, error) {
	ctx := context.Background()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	switch {
	case req.DigestAuth != nil:
		return c.doWithChallenge(ctx, req, "digest")
	case req.BasicAuth != nil && !req.BasicAuth.Preemptive:
		return c.doWithChallenge(ctx, req, "basic")
	case req.BasicAuth != nil:
		return c.doRequest(ctx, req, BasicAuthorization(req.BasicAuth.Username, req.BasicAuth.Password))
	case req.BearerToken != "":
		return c.doRequest(ctx, req, "Bearer "+req.BearerToken)
	}

	return c.doRequest(ctx, req, "")
}

func (c *Client) doRequest(ctx context.Context, req *Request, authHeader string) (*Response, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, err
	}

	var body io.Reader
	var contentType string

	if len(req.Multipart) > 0 {
		multipartBody, ct, err := BuildMultipartBody(req.Multipart, req.BaseDir)
		if err != nil {
			return nil, errors.Wrap(err, "building multipart body")
		}
		body = multipartBody
		contentType = ct
	} else if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s request", req.Method)
	}

	for _, h := range c.defaultHeaders {
		httpReq.Header.Set(h.Name, h.Value)
	}

	for _, h := range req.Headers {
		if strings.EqualFold(h.Name, "Host") {
			httpReq.Host = h.Value
			continue
		}
		httpReq.Header.Add(h.Name, h.Value)
	}

	// Multipart boundary must win over any Content-Type header on the request
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if authHeader != "" {
		httpReq.Header.Set("Authorization", authHeader)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL, Err: errors.Wrap(err, "reading response body")}
	}

	headers := make(map[string]string)
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
		Body:       respBody,
		Duration:   duration,
		RequestID:  uuid.NewString(),
	}, nil
}

// doWithChallenge sends the request without credentials and answers a 401
// challenge of the given scheme once. Any other response is returned as-is.
func (c *Client) doWithChallenge(ctx context.Context, req *Request, scheme string) (*Response, error) {
	resp, err := c.doRequest(ctx, req, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	wwwAuth := resp.Header("WWW-Authenticate")
	if wwwAuth == "" {
		return resp, nil
	}

	challenge := ParseWWWAuthenticate(wwwAuth)
	if challenge.Scheme != scheme {
		return resp, nil
	}

	var authHeader string
	switch scheme {
	case "basic":
		authHeader = BasicAuthorization(req.BasicAuth.Username, req.BasicAuth.Password)
	case "digest":
		uri := req.URL
		if parsed, err := neturl.Parse(req.URL); err == nil {
			uri = parsed.RequestURI()
		}
		digest, err := NewDigestAuth(req.DigestAuth, challenge, req.Method, uri)
		if err != nil {
			return nil, err
		}
		authHeader = digest.BuildAuthorizationHeader()
	}

	return c.doRequest(ctx, req, authHeader)
}

// ValidatePathWithinBase checks that path resolves inside baseDir. An empty
// baseDir allows any path. Multipart files and schema files both go through it.
func ValidatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

// BuildMultipartBody creates a multipart form data body from multipart parts
func BuildMultipartBody(parts []*MultipartPart, baseDir string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, part := range parts {
		if !part.File {
			if err := writer.WriteField(part.Name, part.Value); err != nil {
				return nil, "", err
			}
			continue
		}

		filePath := part.Path
		if !filepath.IsAbs(filePath) && baseDir != "" {
			filePath = filepath.Join(baseDir, filePath)
		}

		if err := ValidatePathWithinBase(filePath, baseDir); err != nil {
			return nil, "", err
		}

		if err := writeFilePart(writer, part, filePath); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, part *MultipartPart, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var w io.Writer
	if part.ContentType != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, part.Name, filepath.Base(filePath)),
		}
		h["Content-Type"] = []string{part.ContentType}
		w, err = writer.CreatePart(h)
	} else {
		w, err = writer.CreateFormFile(part.Name, filepath.Base(filePath))
	}
	if err != nil {
		return err
	}

	_, err = io.Copy(w, file)
	return err
}
