package mock

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// maxEchoBody bounds how much of a request body is read and echoed back.
const maxEchoBody = 10 << 20

// Echo is the JSON document the echo handler answers with.
type Echo struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Params  map[string]any    `json:"params"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
	Form    map[string]any    `json:"form,omitempty"`
	Files   map[string]string `json:"files,omitempty"`
}

// EchoHandler answers every request with an Echo of what it received. JSON
// bodies are echoed as structured values, form and multipart bodies as the
// form map, and anything else as a string.
func EchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		echo, err := NewEcho(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo)
	})
}

// NewEcho records r. It consumes the request body.
func NewEcho(r *http.Request) (*Echo, error) {
	echo := &Echo{
		Method:  r.Method,
		Path:    r.URL.Path,
		Params:  flatten(r.URL.Query()),
		Headers: make(map[string]string, len(r.Header)),
	}
	for name, values := range r.Header {
		echo.Headers[name] = strings.Join(values, ", ")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxEchoBody); err != nil {
			return nil, err
		}
		echo.Form = flatten(r.MultipartForm.Value)
		echo.Files = make(map[string]string)
		for field, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				echo.Files[field] = headers[0].Filename
			}
		}
		return echo, nil
	case "application/x-www-form-urlencoded":
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEchoBody))
		if err != nil {
			return nil, err
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
		echo.Form = flatten(values)
		return echo, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEchoBody))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return echo, nil
	}

	var decoded any
	if json.Unmarshal(body, &decoded) == nil {
		echo.Body = decoded
	} else {
		echo.Body = string(body)
	}
	return echo, nil
}

// flatten keeps single values as strings and repeated values as lists.
func flatten(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		out[k] = items
	}
	return out
}
