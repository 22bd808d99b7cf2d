package http

import (
	"strings"
	"time"
)

// Header is a single request header. Requests keep headers in the order they
// were added and allow the same name more than once.
type Header struct {
	Name  string
	Value string
}

// BasicAuthCredentials holds credentials for basic auth. When Preemptive is
// false the credentials are only sent after the server answers 401 with a
// Basic challenge.
type BasicAuthCredentials struct {
	Username   string
	Password   string
	Preemptive bool
}

// DigestAuthCredentials holds credentials for digest auth
type DigestAuthCredentials struct {
	Username string
	Password string
}

// MultipartPart is one field of a multipart/form-data body. File parts are
// read from Path when the request is sent.
type MultipartPart struct {
	Name        string
	Value       string
	Path        string
	File        bool
	ContentType string
}

// Request is the wire-level request handed to a Client. It is produced by the
// request package and is not meant to be assembled by hand outside tests.
type Request struct {
	Method      string
	URL         string
	Headers     []Header
	Body        []byte
	Multipart   []*MultipartPart
	BaseDir     string // Base directory for resolving relative file paths
	Timeout     time.Duration
	BasicAuth   *BasicAuthCredentials
	DigestAuth  *DigestAuthCredentials
	BearerToken string
	Filters     []Filter
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method: method,
		URL:    requestURL,
	}
}

func (r *Request) AddHeader(name, value string) *Request {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// Header returns the last value set for name, compared case-insensitively.
func (r *Request) Header(name string) string {
	value := ""
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			value = h.Value
		}
	}
	return value
}

// HasAuth reports whether any credentials are attached to the request.
func (r *Request) HasAuth() bool {
	return r.BasicAuth != nil || r.DigestAuth != nil || r.BearerToken != ""
}
