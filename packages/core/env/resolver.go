package env

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver interpolates {{...}} placeholders:
//
//	{{name}}        a variable or a value captured by an earlier step
//	{{step.name}}   a capture qualified by the step that produced it
//	{{$KEY}}        a lookup in the credential Source
//	{{date(7)}}     a function call
//
// Unresolved placeholders are left in place and reported through the warn
// function. Callers that must not send a placeholder as a secret check
// MissingCredentials first.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	source    Source
	funcs     *Funcs
	warnFunc  WarnFunc
}

// NewResolver creates a resolver whose {{$KEY}} lookups go to src. A nil
// src reads the process environment.
func NewResolver(src Source) *Resolver {
	if src == nil {
		src = OSSource{}
	}
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		source:    src,
		funcs:     NewFuncs(),
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) Funcs() *Funcs {
	return r.funcs
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps.Copy(r.variables, vars)
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a captured value under both "step.name" and "name".
func (r *Resolver) SetCapture(stepName, captureName string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stepName != "" {
		r.captures[stepName+"."+captureName] = value
	}
	r.captures[captureName] = value
}

func (r *Resolver) GetCapture(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

// lookup resolves one placeholder expression.
func (r *Resolver) lookup(expr string) (any, bool) {
	if key, ok := strings.CutPrefix(expr, "$"); ok {
		if val, found := r.source.Lookup(key); found {
			return val, true
		}
		r.warn("unresolved credential: $%s", key)
		return nil, false
	}

	if strings.Contains(expr, "(") {
		val, ok, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call %s failed: %v", expr, err)
			return nil, false
		}
		if ok {
			return val, true
		}
		r.warn("unresolved function call: %s", expr)
		return nil, false
	}

	if val, ok := r.GetVariable(expr); ok {
		return val, true
	}

	r.warn("unresolved variable: %s", expr)
	return nil, false
}

func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.lookup(expr); ok {
			return fmt.Sprintf("%v", val)
		}
		return match
	})
}

// ResolveValue resolves every string inside v, descending into maps and
// slices. A string that is exactly one placeholder takes the resolved
// value's own type, so "{{bookingid}}" can become a number.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		if m := variablePattern.FindStringSubmatchIndex(val); m != nil && m[0] == 0 && m[1] == len(val) {
			expr := strings.TrimSpace(val[m[2]:m[3]])
			if resolved, ok := r.lookup(expr); ok {
				return resolved
			}
			return val
		}
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// GetUnresolvedVariables returns the names of {{name}} and {{$KEY}}
// placeholders in input that neither a variable, a capture nor the credential
// source can provide, in order of appearance. Function placeholders are not
// considered.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var unresolved []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.Contains(expr, "(") {
			continue
		}
		if key, ok := strings.CutPrefix(expr, "$"); ok {
			if !r.HasCredential(key) {
				unresolved = append(unresolved, expr)
			}
			continue
		}
		if !r.HasVariable(expr) {
			unresolved = append(unresolved, expr)
		}
	}
	return unresolved
}

// HasCredential reports whether the credential source holds key.
func (r *Resolver) HasCredential(key string) bool {
	_, ok := r.source.Lookup(key)
	return ok
}

// MissingCredentials returns the keys of {{$KEY}} placeholders found in any
// string inside values that the credential source cannot provide. Maps and
// slices are searched recursively. Keys are reported once, in order of
// appearance.
func (r *Resolver) MissingCredentials(values ...any) []string {
	var (
		missing []string
		seen    = make(map[string]bool)
	)
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			for _, m := range variablePattern.FindAllStringSubmatch(val, -1) {
				key, ok := strings.CutPrefix(strings.TrimSpace(m[1]), "$")
				if !ok || seen[key] || r.HasCredential(key) {
					continue
				}
				seen[key] = true
				missing = append(missing, key)
			}
		case map[string]any:
			for _, k := range slices.Sorted(maps.Keys(val)) {
				walk(val[k])
			}
		case map[string]string:
			for _, k := range slices.Sorted(maps.Keys(val)) {
				walk(val[k])
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		case []string:
			for _, item := range val {
				walk(item)
			}
		}
	}
	for _, v := range values {
		walk(v)
	}
	return missing
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// GetVariable looks name up in captures first, then variables.
func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return nil, false
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver(r.source)
	clone.funcs = r.funcs
	clone.warnFunc = r.warnFunc
	maps.Copy(clone.variables, r.variables)
	maps.Copy(clone.captures, r.captures)
	return clone
}
