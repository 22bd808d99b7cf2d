package request

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeMultipart = "multipart/form-data"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// Build turns the descriptor into a wire request for method without sending
// it. All configuration errors surface here.
func (d Descriptor) Build(method string) (*http.Request, error) {
	if strings.TrimSpace(d.baseURI) == "" {
		return nil, &ConfigurationError{Field: "baseURI", Reason: "not set"}
	}

	path, err := d.ResolvePath()
	if err != nil {
		return nil, err
	}

	rawURL, err := d.resolveURL(path)
	if err != nil {
		return nil, err
	}

	req := http.NewRequest(strings.ToUpper(method), rawURL)
	req.Headers = slices.Clone(d.headers)
	req.BaseDir = d.baseDir
	req.Filters = slices.Clone(d.filters)

	if err := d.applyBody(req); err != nil {
		return nil, err
	}
	if err := d.applyAuth(req); err != nil {
		return nil, err
	}

	return req, nil
}

// ResolvePath substitutes path params into the base path. Every placeholder
// needs a param and every param needs a placeholder.
func (d Descriptor) ResolvePath() (string, error) {
	referenced := make(map[string]bool)
	var missing []string

	for _, m := range placeholderPattern.FindAllStringSubmatch(d.basePath, -1) {
		name := m[1]
		if referenced[name] {
			continue
		}
		referenced[name] = true
		if _, ok := d.pathParams[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", missingPathParams(missing)
	}

	var unused []string
	for name := range d.pathParams {
		if !referenced[name] {
			unused = append(unused, name)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		return "", unusedPathParams(unused)
	}

	return placeholderPattern.ReplaceAllStringFunc(d.basePath, func(match string) string {
		name := match[1 : len(match)-1]
		return url.PathEscape(fmt.Sprintf("%v", d.pathParams[name]))
	}), nil
}

func (d Descriptor) resolveURL(path string) (string, error) {
	base, baseQuery, _ := strings.Cut(d.baseURI, "?")

	rawURL := base
	if path != "" {
		rawURL = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if baseQuery != "" {
		rawURL += "?" + baseQuery
	}

	if err := http.ValidateURL(rawURL); err != nil {
		return "", &ConfigurationError{Field: "baseURI", Reason: err.Error()}
	}

	if len(d.queryParams) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &ConfigurationError{Field: "baseURI", Reason: err.Error()}
	}
	q := u.Query()
	for name, values := range d.queryParams {
		for _, v := range values {
			q.Add(name, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d Descriptor) applyBody(req *http.Request) error {
	if len(d.multipart) > 0 {
		if d.body.Kind != BodyNone {
			return &ConfigurationError{Field: "body", Reason: "cannot combine a body with multipart parts"}
		}
		req.Multipart = slices.Clone(d.multipart)
		return nil
	}

	contentType := d.contentType
	if contentType == "" {
		contentType = req.Header("Content-Type")
	}
	if d.body.Kind == BodyNone {
		if contentType != "" && req.Header("Content-Type") == "" {
			req.AddHeader("Content-Type", contentType)
		}
		return nil
	}

	if contentType == "" {
		contentType = ContentTypeJSON
	}

	var payload []byte
	if strings.HasPrefix(strings.ToLower(contentType), ContentTypeForm) {
		if d.body.Kind != BodyRawMap {
			return &ConfigurationError{Field: "body", Reason: "typed bodies can only be sent as JSON"}
		}
		payload = []byte(encodeForm(d.body.Map))
	} else {
		var value any = d.body.Map
		if d.body.Kind == BodyTyped {
			value = d.body.Value
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return &ConfigurationError{Field: "body", Reason: fmt.Sprintf("encoding JSON: %v", err)}
		}
		payload = encoded
	}

	req.SetBody(payload)
	if req.Header("Content-Type") == "" {
		req.AddHeader("Content-Type", contentType)
	}
	return nil
}

func encodeForm(m map[string]any) string {
	values := url.Values{}
	for k, v := range m {
		switch vv := v.(type) {
		case []any:
			for _, item := range vv {
				values.Add(k, fmt.Sprintf("%v", item))
			}
		case []string:
			for _, item := range vv {
				values.Add(k, item)
			}
		default:
			values.Set(k, fmt.Sprintf("%v", v))
		}
	}
	return values.Encode()
}

func (d Descriptor) applyAuth(req *http.Request) error {
	switch d.auth.Kind {
	case AuthBasic:
		req.BasicAuth = &http.BasicAuthCredentials{
			Username:   d.auth.Username,
			Password:   d.auth.Password,
			Preemptive: d.auth.Preemptive,
		}
	case AuthDigest:
		req.DigestAuth = &http.DigestAuthCredentials{
			Username: d.auth.Username,
			Password: d.auth.Password,
		}
	case AuthOAuth2:
		if d.auth.Token == "" {
			return &ConfigurationError{Field: "auth", Reason: "oauth2 token is empty"}
		}
		req.BearerToken = d.auth.Token
	}
	return nil
}
