package env

import (
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func computes a value for {{name(args)}} in scenario values.
type Func func(args []string) (any, error)

// Funcs is a registry of named functions.
type Funcs struct {
	funcs map[string]Func
	now   func() time.Time
}

func NewFuncs() *Funcs {
	f := &Funcs{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	f.Register("uuid", func([]string) (any, error) { return uuid.NewString(), nil })
	f.Register("now", func([]string) (any, error) { return f.now().UTC().Format(time.RFC3339), nil })
	f.Register("timestamp", func([]string) (any, error) { return f.now().Unix(), nil })
	f.Register("timestampMs", func([]string) (any, error) { return f.now().UnixMilli(), nil })
	f.Register("date", f.date)
	f.Register("random", funcRandom)
	f.Register("randomString", funcRandomString)
	f.Register("randomEmail", func([]string) (any, error) {
		return fmt.Sprintf("%s@%s.com", randomString(8, lower), randomString(6, lower)), nil
	})
	f.Register("base64", func(args []string) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("base64 takes one argument")
		}
		return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
	})
	return f
}

func (f *Funcs) Register(name string, fn Func) {
	f.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates expr, e.g. `date(7)` or `randomString(12)`. ok is false
// when expr is not a call to a registered function.
func (f *Funcs) Call(expr string) (value any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false, nil
	}

	fn, found := f.funcs[matches[1]]
	if !found {
		return nil, false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	value, err = fn(args)
	if err != nil {
		return nil, true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return value, true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

// date returns today's date shifted by an optional number of days, in an
// optional Go layout: date(), date(7), date(-1, "02/01/2006").
func (f *Funcs) date(args []string) (any, error) {
	days := 0
	layout := time.DateOnly
	if len(args) >= 1 && args[0] != "" {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("day offset %q is not an integer", args[0])
		}
		days = n
	}
	if len(args) >= 2 {
		layout = args[1]
	}
	return f.now().UTC().AddDate(0, 0, days).Format(layout), nil
}

func funcRandom(args []string) (any, error) {
	lo, hi := 0, 100
	if len(args) >= 2 {
		var err error
		if lo, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("min %q is not an integer", args[0])
		}
		if hi, err = strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("max %q is not an integer", args[1])
		}
	}
	if hi < lo {
		return nil, fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return rand.IntN(hi-lo+1) + lo, nil
}

const (
	lower        = "abcdefghijklmnopqrstuvwxyz"
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func funcRandomString(args []string) (any, error) {
	length := 16
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("length %q is not a non-negative integer", args[0])
		}
		length = n
	}
	return randomString(length, alphanumeric), nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.IntN(len(charset))]
	}
	return string(result)
}
