package request

import (
	"fmt"
	"maps"
	"slices"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

// Transport sends a built request. *http.Client is the default implementation.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Descriptor describes an HTTP request before it is sent. It is immutable:
// every With method returns a modified copy and leaves the receiver untouched,
// so a base descriptor can be shared by many requests.
type Descriptor struct {
	baseURI     string
	basePath    string
	pathParams  map[string]any
	queryParams map[string][]string
	headers     []http.Header
	auth        Auth
	body        Body
	multipart   []*http.MultipartPart
	contentType string
	baseDir     string
	filters     []http.Filter
	transport   Transport
}

// Given returns an empty descriptor.
func Given() Descriptor {
	return Descriptor{}
}

func (d Descriptor) clone() Descriptor {
	d.pathParams = maps.Clone(d.pathParams)
	if d.queryParams != nil {
		q := make(map[string][]string, len(d.queryParams))
		for k, v := range d.queryParams {
			q[k] = slices.Clone(v)
		}
		d.queryParams = q
	}
	d.headers = slices.Clone(d.headers)
	d.multipart = slices.Clone(d.multipart)
	d.filters = slices.Clone(d.filters)
	return d
}

func (d Descriptor) WithBaseURI(uri string) Descriptor {
	d = d.clone()
	d.baseURI = uri
	return d
}

// WithBasePath sets the path appended to the base URI. It may contain
// {name} placeholders filled from path params when the request is built.
func (d Descriptor) WithBasePath(path string) Descriptor {
	d = d.clone()
	d.basePath = path
	return d
}

func (d Descriptor) WithPathParam(name string, value any) Descriptor {
	d = d.clone()
	if d.pathParams == nil {
		d.pathParams = make(map[string]any)
	}
	d.pathParams[name] = value
	return d
}

func (d Descriptor) WithPathParams(params map[string]any) Descriptor {
	d = d.clone()
	if d.pathParams == nil {
		d.pathParams = make(map[string]any, len(params))
	}
	maps.Copy(d.pathParams, params)
	return d
}

// WithQueryParam adds values for a query parameter. Values are formatted
// with %v; repeated calls for the same name accumulate.
func (d Descriptor) WithQueryParam(name string, values ...any) Descriptor {
	d = d.clone()
	if d.queryParams == nil {
		d.queryParams = make(map[string][]string)
	}
	for _, v := range values {
		d.queryParams[name] = append(d.queryParams[name], fmt.Sprintf("%v", v))
	}
	return d
}

func (d Descriptor) WithQueryParams(params map[string]any) Descriptor {
	for name, value := range params {
		d = d.WithQueryParam(name, value)
	}
	return d
}

// WithHeader appends a header. Headers keep their order and the same name
// may be added more than once. A Content-Type header picks the body encoding
// like WithContentType does, unless WithContentType is also set.
func (d Descriptor) WithHeader(name, value string) Descriptor {
	d = d.clone()
	d.headers = append(d.headers, http.Header{Name: name, Value: value})
	return d
}

func (d Descriptor) WithHeaders(headers ...http.Header) Descriptor {
	d = d.clone()
	d.headers = append(d.headers, headers...)
	return d
}

func (d Descriptor) WithAuth(auth Auth) Descriptor {
	d = d.clone()
	d.auth = auth
	return d
}

func (d Descriptor) WithBody(body Body) Descriptor {
	d = d.clone()
	d.body = body
	return d
}

func (d Descriptor) WithContentType(contentType string) Descriptor {
	d = d.clone()
	d.contentType = contentType
	return d
}

// WithFormField adds a plain multipart/form-data field.
func (d Descriptor) WithFormField(name, value string) Descriptor {
	d = d.clone()
	d.multipart = append(d.multipart, &http.MultipartPart{Name: name, Value: value})
	return d
}

// WithFormFile adds a multipart/form-data file part read from path at send time.
func (d Descriptor) WithFormFile(name, path string) Descriptor {
	d = d.clone()
	d.multipart = append(d.multipart, &http.MultipartPart{Name: name, Path: path, File: true})
	return d
}

// WithBaseDir sets the directory relative multipart file paths resolve
// against. Files outside it are rejected.
func (d Descriptor) WithBaseDir(dir string) Descriptor {
	d = d.clone()
	d.baseDir = dir
	return d
}

func (d Descriptor) WithFilters(filters ...http.Filter) Descriptor {
	d = d.clone()
	d.filters = append(d.filters, filters...)
	return d
}

func (d Descriptor) WithTransport(t Transport) Descriptor {
	d = d.clone()
	d.transport = t
	return d
}

func (d Descriptor) BaseURI() string {
	return d.baseURI
}

func (d Descriptor) BasePath() string {
	return d.basePath
}

func (d Descriptor) PathParams() map[string]any {
	return maps.Clone(d.pathParams)
}

func (d Descriptor) Auth() Auth {
	return d.auth
}

func (d Descriptor) Body() Body {
	return d.body
}
