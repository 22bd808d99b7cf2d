package env

import (
	"fmt"
	"maps"
	"slices"
)

// Environment is a named set of variables, e.g. "staging" or "prod".
type Environment struct {
	Name      string
	Variables map[string]any
}

// LoadEnvironment selects envName from envs. The empty name selects nothing
// and yields an empty environment.
func LoadEnvironment(envName string, envs map[string]map[string]any) (*Environment, error) {
	env := &Environment{
		Name:      envName,
		Variables: make(map[string]any),
	}
	if envName == "" {
		return env, nil
	}

	vars, ok := envs[envName]
	if !ok {
		names := slices.Sorted(maps.Keys(envs))
		return nil, fmt.Errorf("unknown environment %q (available: %v)", envName, names)
	}
	maps.Copy(env.Variables, vars)
	return env, nil
}

// MergeVariables merges sources left to right; later sources win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		maps.Copy(result, src)
	}
	return result
}
