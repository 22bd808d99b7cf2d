package env

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Source looks up credentials and other settings by key. Tests and
// scenarios read secrets through a Source instead of embedding literals.
type Source interface {
	Lookup(key string) (string, bool)
}

// OSSource reads process environment variables, with Prefix prepended to
// every key.
type OSSource struct {
	Prefix string
}

func (s OSSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(s.Prefix + key)
}

// MapSource is a fixed set of values, typically loaded from a .env file.
type MapSource map[string]string

func (s MapSource) Lookup(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Chain consults each source in order and returns the first hit.
type Chain []Source

func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// MissingError lists required keys a Source could not provide.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required credentials: %s", strings.Join(e.Keys, ", "))
}

// Require looks up every key and fails with a *MissingError naming all keys
// that are absent or empty.
func Require(src Source, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	var missing []string
	for _, key := range keys {
		v, ok := src.Lookup(key)
		if !ok || v == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingError{Keys: missing}
	}
	return values, nil
}
