package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/restcheck/packages/assertions"
	"github.com/abdul-hamid-achik/restcheck/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/restcheck/packages/capture"
	"github.com/abdul-hamid-achik/restcheck/packages/core/env"
	"github.com/abdul-hamid-achik/restcheck/packages/history"
	"github.com/abdul-hamid-achik/restcheck/packages/http"
	"github.com/abdul-hamid-achik/restcheck/packages/request"
	"github.com/abdul-hamid-achik/restcheck/packages/schema"
)

// Runner executes scenarios one step at a time. Steps are never retried and
// never run concurrently.
type Runner struct {
	transport request.Transport
	source    env.Source
	config    *Config
	providers map[string]*oauth2.Provider
	limiter   *rate.Limiter
}

type Config struct {
	Environment string
	// BaseURI is used by scenarios that do not set their own.
	BaseURI    string
	Variables  map[string]any
	Bail       bool
	NameFilter string
	TagsFilter []string
	Source     env.Source
	Transport  request.Transport
	Warn       env.WarnFunc
	// History, when set, records every request a run sends.
	History Recorder
	// RateLimit caps requests per second across every run of the Runner.
	// Zero means no limit.
	RateLimit float64
}

// Recorder stores sent exchanges. *history.Store implements it.
type Recorder interface {
	Record(req *http.Request, resp *http.Response) (*history.Entry, error)
	RecordFailure(req *http.Request, err error) (*history.Entry, error)
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.NewClient()
	}
	source := cfg.Source
	if source == nil {
		source = env.OSSource{}
	}

	r := &Runner{
		transport: transport,
		source:    source,
		config:    cfg,
		providers: make(map[string]*oauth2.Provider),
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return r
}

type RunResult struct {
	Name     string
	File     string
	Steps    []*StepResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Latency  Latency
}

// OK reports whether no step failed.
func (r *RunResult) OK() bool {
	return r.Failed == 0
}

type StepResult struct {
	Name       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Request    *http.Request
	Response   *http.Response
	Assertions []*assertions.Result
	Captures   map[string]any
	Error      error
}

// RunFile parses and runs the scenario at path. Parse failures are returned
// as *ParseError.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	s, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, s)
}

// Run executes the steps of s in dependency order. A step whose dependency
// did not pass is skipped; with Bail the run stops at the first failure.
// Errors returned here concern the scenario as a whole; per-step failures are
// reported in the StepResults.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*RunResult, error) {
	start := time.Now()

	environment, err := env.LoadEnvironment(r.config.Environment, s.Environments)
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	steps, err := orderSteps(s.Steps)
	if err != nil {
		return nil, &ParseError{Path: s.Path, Err: err}
	}

	resolver := env.NewResolver(r.source)
	resolver.SetWarnFunc(r.config.Warn)
	resolver.SetVariables(env.MergeVariables(s.Variables, environment.Variables, r.config.Variables))

	baseDir := "."
	if s.Path != "" {
		baseDir = filepath.Dir(s.Path)
	}

	result := &RunResult{Name: s.Name, File: s.Path}
	latency := newLatencyRecorder()
	executed := make(map[string]*StepResult)

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			result.add(skipped(step, "cancelled"))
			continue
		}
		if !r.shouldRun(step) {
			result.add(skipped(step, "filtered out"))
			continue
		}
		if step.Skip != "" {
			result.add(skipped(step, step.Skip))
			continue
		}
		if dep := failedDependency(step, executed); dep != "" {
			sr := skipped(step, fmt.Sprintf("dependency %q did not pass", dep))
			executed[step.Name] = sr
			result.add(sr)
			continue
		}

		sr := r.runStep(ctx, s, step, resolver, baseDir)
		if step.Name != "" {
			executed[step.Name] = sr
		}
		if sr.Response != nil {
			latency.Record(sr.Response.Duration)
		}
		result.add(sr)

		if !sr.Passed && r.config.Bail {
			break
		}
	}

	result.Duration = time.Since(start)
	result.Latency = latency.Summary()
	return result, nil
}

func (r *RunResult) add(sr *StepResult) {
	r.Steps = append(r.Steps, sr)
	switch {
	case sr.Skipped:
		r.Skipped++
	case sr.Passed:
		r.Passed++
	default:
		r.Failed++
	}
}

func skipped(step *Step, reason string) *StepResult {
	return &StepResult{Name: step.Name, Skipped: true, SkipReason: reason}
}

func failedDependency(step *Step, executed map[string]*StepResult) string {
	for _, dep := range step.DependsOn {
		if sr, ok := executed[dep]; !ok || !sr.Passed {
			return dep
		}
	}
	return ""
}

func (r *Runner) shouldRun(step *Step) bool {
	if r.config.NameFilter != "" && !matchesPattern(step.Name, r.config.NameFilter) {
		return false
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(step.Tags, r.config.TagsFilter) {
		return false
	}
	return true
}

func (r *Runner) runStep(ctx context.Context, s *Scenario, step *Step, resolver *env.Resolver, baseDir string) *StepResult {
	result := &StepResult{
		Name:     step.Name,
		Captures: make(map[string]any),
	}
	start := time.Now()

	desc, method, err := r.describe(ctx, s, step, resolver, baseDir)
	if err != nil {
		result.Error = err
		return result
	}

	req, err := desc.Build(method)
	if err != nil {
		result.Error = err
		return result
	}
	result.Request = req

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			result.Error = err
			return result
		}
	}
	resp, err := r.transport.Do(req)
	result.Duration = time.Since(start)
	r.record(req, resp, err)
	if err != nil {
		result.Error = err
		return result
	}
	result.Response = resp
	result.Duration = resp.Duration

	vr := assertions.Then(resp, assertions.WithBaseDir(baseDir))
	if err := applyExpect(vr, step.Expect, resolver); err != nil {
		result.Error = err
		result.Assertions = vr.Results()
		return result
	}
	result.Assertions = vr.Results()

	if step.Expect.IsZero() {
		result.Passed = resp.IsSuccess()
	} else {
		result.Passed = true
		for _, a := range result.Assertions {
			if !a.Passed {
				result.Passed = false
				break
			}
		}
	}

	captured, err := capture.ExtractAll(resp, step.Captures())
	for name, value := range captured {
		result.Captures[name] = value
		resolver.SetCapture(step.Name, name, value)
	}
	if err != nil {
		result.Error = err
		result.Passed = false
	}

	return result
}

func (r *Runner) record(req *http.Request, resp *http.Response, sendErr error) {
	if r.config.History == nil {
		return
	}
	var err error
	if sendErr != nil {
		_, err = r.config.History.RecordFailure(req, sendErr)
	} else {
		_, err = r.config.History.Record(req, resp)
	}
	if err != nil && r.config.Warn != nil {
		r.config.Warn("recording history: %v", err)
	}
}

// describe turns a step into a request descriptor, resolving every
// placeholder against variables, captures and the credential source.
func (r *Runner) describe(ctx context.Context, s *Scenario, step *Step, resolver *env.Resolver, baseDir string) (request.Descriptor, string, error) {
	method := strings.ToUpper(strings.TrimSpace(step.Method))
	if method == "" {
		method = "GET"
	}

	base := firstNonEmpty(step.BaseURI, s.BaseURI, r.config.BaseURI)
	for _, f := range [][2]string{{"baseURI", base}, {"path", step.Path}} {
		if unresolved := resolver.GetUnresolvedVariables(f[1]); len(unresolved) > 0 {
			return request.Descriptor{}, "", &request.ConfigurationError{
				Field:  f[0],
				Reason: "unresolved variable(s) " + strings.Join(unresolved, ", "),
			}
		}
	}

	authSpec := step.Auth
	if authSpec == nil {
		authSpec = s.Auth
	}
	if missing := resolver.MissingCredentials(credentialFields(s, step, authSpec)...); len(missing) > 0 {
		return request.Descriptor{}, "", &env.MissingError{Keys: missing}
	}

	desc := request.Given().
		WithTransport(r.transport).
		WithBaseURI(resolver.Resolve(base)).
		WithBasePath(resolver.Resolve(step.Path)).
		WithBaseDir(baseDir)

	if len(step.PathParams) > 0 {
		desc = desc.WithPathParams(resolver.ResolveValue(step.PathParams).(map[string]any))
	}

	for _, name := range sortedKeys(step.Query) {
		switch v := resolver.ResolveValue(step.Query[name]).(type) {
		case []any:
			desc = desc.WithQueryParam(name, v...)
		default:
			desc = desc.WithQueryParam(name, v)
		}
	}

	for _, h := range mergeHeaders(s.Headers, step.Headers) {
		desc = desc.WithHeader(h.Name, resolver.Resolve(h.Value))
	}

	auth, err := r.auth(ctx, authSpec, resolver)
	if err != nil {
		return request.Descriptor{}, "", err
	}
	desc = desc.WithAuth(auth)

	if step.ContentType != "" {
		desc = desc.WithContentType(resolver.Resolve(step.ContentType))
	}

	switch {
	case step.Body != nil:
		body := resolver.ResolveValue(step.Body)
		if m, ok := body.(map[string]any); ok {
			desc = desc.WithBody(request.RawMap(m))
		} else {
			desc = desc.WithBody(request.Typed(body))
		}
	case len(step.Form) > 0:
		desc = desc.WithBody(request.RawMap(resolver.ResolveValue(step.Form).(map[string]any)))
		if step.ContentType == "" {
			desc = desc.WithContentType(request.ContentTypeForm)
		}
	}

	for _, p := range step.Multipart {
		if p.File != "" {
			desc = desc.WithFormFile(p.Name, resolver.Resolve(p.File))
		} else {
			desc = desc.WithFormField(p.Name, resolver.Resolve(p.Value))
		}
	}

	return desc, method, nil
}

// credentialFields lists every step value that may hold a {{$KEY}}
// placeholder once baseURI and path have been checked.
func credentialFields(s *Scenario, step *Step, a *Auth) []any {
	headers := mergeHeaders(s.Headers, step.Headers)
	fields := make([]any, 0, len(headers)+len(step.Multipart)+8)
	for _, h := range headers {
		fields = append(fields, h.Value)
	}
	if a != nil && !strings.EqualFold(a.Type, "none") {
		fields = append(fields, a.Username, a.Password, a.Token)
	}
	fields = append(fields, step.PathParams, step.Query, step.Body, step.Form, step.ContentType)
	for _, p := range step.Multipart {
		fields = append(fields, p.Value, p.File)
	}
	return fields
}

func (r *Runner) auth(ctx context.Context, a *Auth, resolver *env.Resolver) (request.Auth, error) {
	if a == nil {
		return request.Auth{}, nil
	}

	username := resolver.Resolve(a.Username)
	password := resolver.Resolve(a.Password)

	switch strings.ToLower(a.Type) {
	case "", "none":
		return request.Auth{}, nil
	case "basic":
		return request.BasicAuth(username, password), nil
	case "preemptive":
		return request.PreemptiveBasicAuth(username, password), nil
	case "digest":
		return request.DigestAuth(username, password), nil
	case "oauth2":
		if a.Token != "" {
			return request.OAuth2Auth(resolver.Resolve(a.Token)), nil
		}
		provider, err := r.provider(a.Prefix)
		if err != nil {
			return request.Auth{}, err
		}
		return provider.Auth(ctx)
	default:
		return request.Auth{}, &request.ConfigurationError{Field: "auth", Reason: "unknown type " + a.Type}
	}
}

// provider returns one OAuth2 provider per credential prefix, so a token is
// shared by every step that uses the same credentials.
func (r *Runner) provider(prefix string) (*oauth2.Provider, error) {
	if p, ok := r.providers[prefix]; ok {
		return p, nil
	}
	cfg, err := oauth2.ConfigFromSource(r.source, prefix)
	if err != nil {
		return nil, err
	}
	p := oauth2.NewProvider(cfg)
	r.providers[prefix] = p
	return p, nil
}

// applyExpect evaluates every expectation. Failed assertions are recorded on
// vr; the returned error is reserved for expectations that cannot be built.
func applyExpect(vr *assertions.ValidatableResponse, exp Expect, resolver *env.Resolver) error {
	matcher := func(c Check) (assertions.Matcher, error) {
		m, err := assertions.ParseMatcher(c.operator(), resolver.ResolveValue(c.Value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Path, err)
		}
		return m, nil
	}

	if exp.Status != 0 {
		_ = vr.AssertStatus(exp.Status)
	}

	for _, c := range exp.Headers {
		m, err := matcher(c)
		if err != nil {
			return err
		}
		_ = vr.AssertHeader(c.Path, m)
	}

	if exp.Body != nil {
		m, err := matcher(*exp.Body)
		if err != nil {
			return err
		}
		_ = vr.AssertBody(m)
	}

	fields := vr
	if exp.RootPath != "" {
		fields = vr.RootPath(resolver.Resolve(exp.RootPath))
	}
	for _, c := range exp.Fields {
		m, err := matcher(c)
		if err != nil {
			return err
		}
		_ = fields.AssertField(resolver.Resolve(c.Path), m)
	}
	for _, path := range exp.Absent {
		_ = fields.AssertAbsent(resolver.Resolve(path))
	}

	switch sc := exp.Schema.(type) {
	case string:
		_ = vr.AssertSchema(schema.File(resolver.Resolve(sc)))
	case map[string]any:
		_ = vr.AssertSchema(schema.Value(sc))
	}

	for _, c := range exp.Queries {
		m, err := matcher(c)
		if err != nil {
			return err
		}
		_ = vr.AssertQuery(resolver.Resolve(c.Path), m)
	}

	return nil
}

// orderSteps sorts steps so each comes after the steps it depends on,
// otherwise keeping file order.
func orderSteps(steps []*Step) ([]*Step, error) {
	index := make(map[string]int, len(steps))
	for i, step := range steps {
		if step.Name != "" {
			index[step.Name] = i
		}
	}

	inDegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, step := range steps {
		for _, dep := range step.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", step.Name, dep)
			}
			dependents[j] = append(dependents[j], i)
			inDegree[i]++
		}
	}

	sorted := make([]*Step, 0, len(steps))
	done := make([]bool, len(steps))
	for len(sorted) < len(steps) {
		next := -1
		for i := range steps {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, fmt.Errorf("circular dependency between steps")
		}
		done[next] = true
		sorted = append(sorted, steps[next])
		for _, k := range dependents[next] {
			inDegree[k]--
		}
	}
	return sorted, nil
}

// matchesPattern matches name against a pattern with an optional leading
// and/or trailing "*".
func matchesPattern(name, pattern string) bool {
	switch {
	case pattern == "" || pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	default:
		return name == pattern
	}
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		if slices.Contains(tags, filter) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mergeHeaders returns scenario headers overridden by step headers, sorted
// by name. Names compare case-insensitively.
func mergeHeaders(scenario, step map[string]string) []http.Header {
	merged := make(map[string]http.Header, len(scenario)+len(step))
	for _, source := range []map[string]string{scenario, step} {
		for name, value := range source {
			merged[strings.ToLower(name)] = http.Header{Name: name, Value: value}
		}
	}

	headers := make([]http.Header, 0, len(merged))
	for _, key := range sortedKeys(merged) {
		headers = append(headers, merged[key])
	}
	return headers
}
