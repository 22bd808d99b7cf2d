package env

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverHasUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		captures  map[string]any
		expected  bool
	}{
		{"no placeholders", "/booking", nil, nil, false},
		{"resolved variable", "{{id}}", map[string]any{"id": 1}, nil, false},
		{"unresolved variable", "{{id}}", nil, nil, true},
		{"mixed", "{{id}} {{token}}", map[string]any{"id": 1}, nil, true},
		{"qualified capture", "{{createBooking.bookingid}}", nil, map[string]any{"bookingid": 7}, false},
		{"missing credential", "{{$TOKEN}}", nil, nil, true},
		{"present credential", "{{$BOOKER_USERNAME}}", nil, nil, false},
		{"function ignored", "{{uuid()}}", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(MapSource{"BOOKER_USERNAME": "admin"})
			r.SetVariables(tt.variables)
			for k, v := range tt.captures {
				r.SetCapture("createBooking", k, v)
			}
			assert.Equal(t, tt.expected, r.HasUnresolvedVariables(tt.input))
		})
	}
}

func TestResolverGetUnresolvedVariables(t *testing.T) {
	r := NewResolver(MapSource{})
	r.SetVariable("bar", "middle")

	assert.Nil(t, r.GetUnresolvedVariables("hello"))
	assert.Equal(t, []string{"foo", "baz"}, r.GetUnresolvedVariables("{{foo}} and {{bar}} and {{ baz }}"))
	assert.Equal(t, []string{"setup.projectId"}, r.GetUnresolvedVariables("{{setup.projectId}}/tasks"))
	assert.Equal(t, []string{"$API_HOST", "foo"}, r.GetUnresolvedVariables("https://{{$API_HOST}}/{{foo}}"))
}

func TestResolverMissingCredentials(t *testing.T) {
	r := NewResolver(MapSource{"BOOKER_USERNAME": "admin", "EMPTY": ""})

	tests := []struct {
		name     string
		values   []any
		expected []string
	}{
		{"none", []any{"/booking", 12, nil}, nil},
		{"present", []any{"{{$BOOKER_USERNAME}}"}, nil},
		{"present but empty", []any{"{{$EMPTY}}"}, nil},
		{"missing", []any{"Bearer {{$TOKEN}}"}, []string{"TOKEN"}},
		{"variables and functions ignored", []any{"{{id}} {{uuid()}}"}, nil},
		{
			"nested",
			[]any{map[string]any{
				"auth": map[string]any{"user": "{{$USER}}"},
				"list": []any{"{{$ITEM}}", 3},
			}},
			[]string{"USER", "ITEM"},
		},
		{"string collections", []any{map[string]string{"X-Key": "{{$KEY}}"}, []string{"{{$KEY}}", "{{$OTHER}}"}}, []string{"KEY", "OTHER"}},
		{"reported once", []any{"{{$TOKEN}}", "{{ $TOKEN }}"}, []string{"TOKEN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.MissingCredentials(tt.values...))
		})
	}
}

func TestResolverResolve(t *testing.T) {
	src := MapSource{"BOOKER_USERNAME": "admin"}

	tests := []struct {
		name      string
		input     string
		variables map[string]any
		captures  map[string]any
		expected  string
	}{
		{name: "no placeholders", input: "/booking", expected: "/booking"},
		{name: "variable", input: "/booking/{{id}}", variables: map[string]any{"id": 20}, expected: "/booking/20"},
		{name: "spaces inside braces", input: "{{ id }}", variables: map[string]any{"id": 20}, expected: "20"},
		{name: "capture", input: "token={{token}}", captures: map[string]any{"token": "abc"}, expected: "token=abc"},
		{name: "qualified capture", input: "{{auth.token}}", captures: map[string]any{"token": "abc"}, expected: "abc"},
		{
			name:      "capture wins over variable",
			input:     "{{token}}",
			variables: map[string]any{"token": "var"},
			captures:  map[string]any{"token": "cap"},
			expected:  "cap",
		},
		{name: "credential", input: "user={{$BOOKER_USERNAME}}", expected: "user=admin"},
		{name: "missing credential kept", input: "{{$BOOKER_PASSWORD}}", expected: "{{$BOOKER_PASSWORD}}"},
		{name: "function", input: "{{base64('admin:secret')}}", expected: "YWRtaW46c2VjcmV0"},
		{name: "unknown function kept", input: "{{nope()}}", expected: "{{nope()}}"},
		{name: "unresolved kept", input: "hello {{unknown}}", expected: "hello {{unknown}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(src)
			r.SetVariables(tt.variables)
			for k, v := range tt.captures {
				r.SetCapture("auth", k, v)
			}
			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolverWarnings(t *testing.T) {
	r := NewResolver(MapSource{})
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{$SECRET}} {{random(x, 2)}}")

	assert.Equal(t, []string{
		"unresolved variable: missing",
		"unresolved credential: $SECRET",
		`function call random(x, 2) failed: random(): min "x" is not an integer`,
	}, warnings)
}

func TestResolverResolveValue(t *testing.T) {
	r := NewResolver(MapSource{"BOOKER_PASSWORD": "password123"})
	r.SetCapture("create", "bookingid", float64(20))
	r.SetVariable("name", "Jim")

	got := r.ResolveValue(map[string]any{
		"bookingid": "{{bookingid}}",
		"greeting":  "hi {{name}}",
		"password":  "{{$BOOKER_PASSWORD}}",
		"tags":      []any{"{{name}}", 3, true},
		"missing":   "{{nope}}",
		"nested":    map[string]any{"id": "{{create.bookingid}}"},
	})

	assert.Equal(t, map[string]any{
		"bookingid": float64(20),
		"greeting":  "hi Jim",
		"password":  "password123",
		"tags":      []any{"Jim", 3, true},
		"missing":   "{{nope}}",
		"nested":    map[string]any{"id": float64(20)},
	}, got)
}

func TestResolverClone(t *testing.T) {
	r := NewResolver(MapSource{})
	r.SetVariable("a", 1)

	clone := r.Clone()
	clone.SetVariable("a", 2)
	clone.SetCapture("", "b", 3)

	v, _ := r.GetVariable("a")
	assert.Equal(t, 1, v)
	assert.False(t, r.HasVariable("b"))
	assert.True(t, clone.HasVariable("b"))
}

func TestNewResolver_NilSourceReadsEnvironment(t *testing.T) {
	t.Setenv("RESTCHECK_RESOLVER_PROBE", "from-env")

	assert.Equal(t, "from-env", NewResolver(nil).Resolve("{{$RESTCHECK_RESOLVER_PROBE}}"))
}
