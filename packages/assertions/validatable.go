package assertions

import (
	"github.com/abdul-hamid-achik/restcheck/packages/capture"
	"github.com/abdul-hamid-achik/restcheck/packages/http"
	"github.com/abdul-hamid-achik/restcheck/packages/query"
	"github.com/abdul-hamid-achik/restcheck/packages/schema"
)

// Result records one evaluated assertion.
type Result struct {
	Passed   bool
	Message  string
	Expected string
	Actual   any
	Subject  string
}

type recorder struct {
	results []*Result
}

func (r *recorder) record(subject string, m Matcher, actual any, err error) error {
	result := &Result{
		Subject: subject,
		Actual:  actual,
		Passed:  err == nil,
	}
	if m != nil {
		result.Expected = m.String()
	}
	if err != nil {
		result.Message = err.Error()
	}
	r.results = append(r.results, result)
	return err
}

// ValidatableResponse runs assertions against one response. Every Assert
// method returns nil on success or the failure as an error, and records the
// outcome for Results.
type ValidatableResponse struct {
	resp      *http.Response
	extractor *capture.Extractor
	validator *schema.Validator
	root      string
	rec       *recorder
}

type Option func(*ValidatableResponse)

// WithSchemaValidator sets the validator used by AssertSchema.
func WithSchemaValidator(v *schema.Validator) Option {
	return func(vr *ValidatableResponse) {
		vr.validator = v
	}
}

// WithBaseDir resolves schema files against dir.
func WithBaseDir(dir string) Option {
	return func(vr *ValidatableResponse) {
		vr.validator = schema.NewValidator(schema.WithBaseDir(dir))
	}
}

func Then(resp *http.Response, opts ...Option) *ValidatableResponse {
	vr := &ValidatableResponse{
		resp:      resp,
		extractor: capture.NewExtractor(resp),
		rec:       &recorder{},
	}
	for _, opt := range opts {
		opt(vr)
	}
	if vr.validator == nil {
		vr.validator = schema.NewValidator()
	}
	return vr
}

func (v *ValidatableResponse) Response() *http.Response {
	return v.resp
}

// RootPath returns a copy whose field paths are relative to root. The copy
// shares the receiver's results.
func (v *ValidatableResponse) RootPath(root string) *ValidatableResponse {
	c := *v
	c.root = capture.JoinPath(v.root, root)
	return &c
}

// DetachRootPath returns a copy with no root path.
func (v *ValidatableResponse) DetachRootPath() *ValidatableResponse {
	c := *v
	c.root = ""
	return &c
}

// Results returns every assertion evaluated so far, in order.
func (v *ValidatableResponse) Results() []*Result {
	out := make([]*Result, len(v.rec.results))
	copy(out, v.rec.results)
	return out
}

func (v *ValidatableResponse) check(subject string, m Matcher, actual any) error {
	if m.Matches(actual) {
		return v.rec.record(subject, m, actual, nil)
	}
	return v.rec.record(subject, m, actual, &AssertionError{
		Subject:  subject,
		Expected: m.String(),
		Actual:   actual,
	})
}

func (v *ValidatableResponse) AssertStatus(expected int) error {
	return v.check("status", EqualTo(expected), v.resp.StatusCode)
}

func (v *ValidatableResponse) AssertStatusMatches(m Matcher) error {
	return v.check("status", m, v.resp.StatusCode)
}

// AssertHeader checks a header value. A missing header is a
// *capture.FieldNotFoundError.
func (v *ValidatableResponse) AssertHeader(name string, m Matcher) error {
	subject := "header " + name
	value, err := v.extractor.Header(name)
	if err != nil {
		return v.rec.record(subject, m, nil, err)
	}
	return v.check(subject, m, value)
}

// AssertBody checks the body as text.
func (v *ValidatableResponse) AssertBody(m Matcher) error {
	return v.check("body", m, v.resp.BodyString())
}

// AssertField checks the value at path, relative to the root path. A path
// that does not exist is a *capture.FieldNotFoundError, so use AssertAbsent
// to check for absence.
func (v *ValidatableResponse) AssertField(path string, m Matcher) error {
	full := capture.JoinPath(v.root, path)
	value, err := v.extractor.Extract(full)
	if err != nil {
		return v.rec.record(full, m, nil, err)
	}
	return v.check(full, m, value)
}

// AssertAbsent passes only when path does not exist.
func (v *ValidatableResponse) AssertAbsent(path string) error {
	full := capture.JoinPath(v.root, path)
	absent := newMatcher("absent", func(any) bool { return false })

	result, found := v.extractor.Lookup(full)
	if !found {
		return v.rec.record(full, absent, nil, nil)
	}
	return v.rec.record(full, absent, result.Value(), &AssertionError{
		Subject:  full,
		Expected: absent.String(),
		Actual:   result.Value(),
	})
}

// Extract returns the value at path, relative to the root path.
func (v *ValidatableResponse) Extract(path string) (any, error) {
	return v.extractor.Extract(capture.JoinPath(v.root, path))
}

// Extractor exposes typed extraction over the response.
func (v *ValidatableResponse) Extractor() *capture.Extractor {
	return v.extractor
}

// AssertSchema validates the whole body. Violations are returned as a
// *schema.ValidationError.
func (v *ValidatableResponse) AssertSchema(d schema.Descriptor) error {
	subject := "schema " + d.String()
	m := newMatcher("valid against "+d.String(), func(any) bool { return true })
	return v.rec.record(subject, m, nil, v.validator.Check(v.resp.Body, d))
}

// AssertQuery runs a JMESPath expression over the body and checks its
// result. A query selecting nothing yields null.
func (v *ValidatableResponse) AssertQuery(expr string, m Matcher) error {
	subject := "query " + expr
	result, err := query.SearchBytes(v.resp.Body, expr)
	if err != nil {
		return v.rec.record(subject, m, nil, err)
	}
	return v.check(subject, m, result)
}
