package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/restcheck/packages/assertions"
	"github.com/abdul-hamid-achik/restcheck/packages/capture"
)

// Scenario is a sequence of requests that share a base URI, headers and
// variables. Values captured by one step are visible to the steps after it.
type Scenario struct {
	Name         string                    `yaml:"name"`
	Description  string                    `yaml:"description,omitempty"`
	BaseURI      string                    `yaml:"baseUri,omitempty"`
	Headers      map[string]string         `yaml:"headers,omitempty"`
	Variables    map[string]any            `yaml:"variables,omitempty"`
	Environments map[string]map[string]any `yaml:"environments,omitempty"`
	Auth         *Auth                     `yaml:"auth,omitempty"`
	Steps        []*Step                   `yaml:"steps"`

	// Path is the file the scenario was read from, empty for Parse.
	Path string `yaml:"-"`
}

// Step is one request and the expectations on its response.
type Step struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Method      string             `yaml:"method,omitempty"`
	BaseURI     string             `yaml:"baseUri,omitempty"`
	Path        string             `yaml:"path,omitempty"`
	PathParams  map[string]any     `yaml:"pathParams,omitempty"`
	Query       map[string]any     `yaml:"query,omitempty"`
	Headers     map[string]string  `yaml:"headers,omitempty"`
	Auth        *Auth              `yaml:"auth,omitempty"`
	ContentType string             `yaml:"contentType,omitempty"`
	Body        any                `yaml:"body,omitempty"`
	Form        map[string]any     `yaml:"form,omitempty"`
	Multipart   []Part             `yaml:"multipart,omitempty"`
	DependsOn   []string           `yaml:"dependsOn,omitempty"`
	Tags        []string           `yaml:"tags,omitempty"`
	Skip        string             `yaml:"skip,omitempty"`
	Expect      Expect             `yaml:"expect,omitempty"`
	Capture     map[string]Capture `yaml:"capture,omitempty"`
}

// Auth selects authentication for a step or a whole scenario.
//
//	type: basic | preemptive | digest | oauth2 | none
//
// oauth2 uses Token when set; otherwise a token is requested with the
// credentials found under Prefix in the credential source.
type Auth struct {
	Type     string `yaml:"type"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// Part is one multipart/form-data field. File is a path relative to the
// scenario file.
type Part struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// Expect lists what a step's response must satisfy. A step without any
// expectation passes on a 2xx status.
type Expect struct {
	Status   int      `yaml:"status,omitempty"`
	RootPath string   `yaml:"rootPath,omitempty"`
	Headers  []Check  `yaml:"headers,omitempty"`
	Body     *Check   `yaml:"body,omitempty"`
	Fields   []Check  `yaml:"fields,omitempty"`
	Absent   []string `yaml:"absent,omitempty"`
	Schema   any      `yaml:"schema,omitempty"`
	Queries  []Check  `yaml:"queries,omitempty"`
}

// IsZero reports whether no expectation is set.
func (e Expect) IsZero() bool {
	return e.Status == 0 && len(e.Headers) == 0 && e.Body == nil && len(e.Fields) == 0 &&
		len(e.Absent) == 0 && e.Schema == nil && len(e.Queries) == 0
}

// Check is one matcher application. Path is a field path for fields, a
// header name for headers and a JMESPath expression for queries. Op
// defaults to "==".
type Check struct {
	Path  string `yaml:"path,omitempty"`
	Op    string `yaml:"op,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

func (c Check) operator() string {
	if c.Op == "" {
		return "=="
	}
	return c.Op
}

// Capture names a response value to keep. In YAML it is either a body path
// or a mapping with "from" (body, header, status, duration) and "path".
type Capture struct {
	From string `yaml:"from,omitempty"`
	Path string `yaml:"path,omitempty"`
}

func (c *Capture) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Path = node.Value
		return nil
	}
	type plain Capture
	return node.Decode((*plain)(c))
}

// Captures returns the step's captures sorted by name.
func (s *Step) Captures() []capture.Capture {
	names := make([]string, 0, len(s.Capture))
	for name := range s.Capture {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]capture.Capture, 0, len(names))
	for _, name := range names {
		c := s.Capture[name]
		out = append(out, capture.Capture{Name: name, Source: capture.ParseSource(c.From), Path: c.Path})
	}
	return out
}

// ParseError reports a scenario file that could not be read or is invalid.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing scenario: %v", e.Err)
	}
	return fmt.Sprintf("parsing scenario %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseFile reads and validates a scenario file.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	s.Path = path
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: errors.New("empty scenario")}
		}
		return nil, &ParseError{Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &s, nil
}

var authTypes = map[string]bool{"": true, "none": true, "basic": true, "preemptive": true, "digest": true, "oauth2": true}

// Validate checks what can be checked before any placeholder is resolved.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("scenario has no steps")
	}

	var errs []error
	if s.Auth != nil && !authTypes[s.Auth.Type] {
		errs = append(errs, fmt.Errorf("unknown auth type %q", s.Auth.Type))
	}

	names := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step == nil {
			errs = append(errs, fmt.Errorf("step %d is empty", i+1))
			continue
		}
		label := step.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		} else if names[step.Name] {
			errs = append(errs, fmt.Errorf("step %s: duplicate name", label))
		} else {
			names[step.Name] = true
		}

		if err := step.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %s: %w", label, err))
		}
	}

	for _, step := range s.Steps {
		if step == nil {
			continue
		}
		for _, dep := range step.DependsOn {
			if !names[dep] {
				errs = append(errs, fmt.Errorf("step %s: depends on unknown step %q", step.Name, dep))
			}
		}
	}

	if len(errs) == 0 {
		if _, err := orderSteps(s.Steps); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Step) validate() error {
	var errs []error

	if s.Body != nil && len(s.Form) > 0 {
		errs = append(errs, errors.New("body and form are mutually exclusive"))
	}
	if len(s.Multipart) > 0 && (s.Body != nil || len(s.Form) > 0) {
		errs = append(errs, errors.New("multipart cannot be combined with body or form"))
	}
	for _, p := range s.Multipart {
		if p.Name == "" {
			errs = append(errs, errors.New("multipart part without a name"))
		}
	}
	if s.Auth != nil && !authTypes[s.Auth.Type] {
		errs = append(errs, fmt.Errorf("unknown auth type %q", s.Auth.Type))
	}

	checks := append(append([]Check{}, s.Expect.Headers...), s.Expect.Fields...)
	checks = append(checks, s.Expect.Queries...)
	if s.Expect.Body != nil {
		checks = append(checks, *s.Expect.Body)
	}
	for _, c := range checks {
		if !assertions.KnownOperator(c.operator()) {
			errs = append(errs, fmt.Errorf("unknown operator %q", c.Op))
		}
	}
	for _, c := range s.Expect.Queries {
		if c.Path == "" {
			errs = append(errs, errors.New("query check without an expression"))
		}
	}
	for _, c := range s.Expect.Headers {
		if c.Path == "" {
			errs = append(errs, errors.New("header check without a name"))
		}
	}

	switch s.Expect.Schema.(type) {
	case nil, string, map[string]any:
	default:
		errs = append(errs, errors.New("schema must be a file path or an inline object"))
	}

	for name, c := range s.Capture {
		if c.From != "" && !validCaptureSource(c.From) {
			errs = append(errs, fmt.Errorf("capture %s: unknown source %q", name, c.From))
		}
		if c.Path == "" && capture.ParseSource(c.From) == capture.SourceHeader {
			errs = append(errs, fmt.Errorf("capture %s: header name is required", name))
		}
	}

	return errors.Join(errs...)
}

func validCaptureSource(from string) bool {
	switch strings.ToLower(strings.TrimSpace(from)) {
	case "body", "header", "headers", "status", "duration":
		return true
	}
	return false
}
