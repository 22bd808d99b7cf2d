package http

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Response is the record of one sent request. It is created once per send and
// never modified afterwards; the structured body is parsed on first use.
type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
	RequestID  string

	parseOnce sync.Once
	parsed    gjson.Result
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// JSON returns the parsed body. The result does not exist when the body is
// not valid JSON.
func (r *Response) JSON() gjson.Result {
	r.parseOnce.Do(func() {
		if gjson.ValidBytes(r.Body) {
			r.parsed = gjson.ParseBytes(r.Body)
		}
	})
	return r.parsed
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// As decodes the JSON body into target, which must be a pointer.
func (r *Response) As(target any) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("decoding response body into %T: %w", target, err)
	}
	return nil
}

// PrettyString returns the body indented when it is JSON, or as-is otherwise.
func (r *Response) PrettyString() string {
	if !r.JSON().Exists() {
		return r.BodyString()
	}
	return string(pretty.Pretty(r.Body))
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
