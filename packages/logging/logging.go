package logging

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

// Detail selects which parts of a request or response are logged.
type Detail int

const (
	All Detail = iota
	Method
	URI
	Params
	Headers
	Body
	Status
)

func (d Detail) String() string {
	switch d {
	case Method:
		return "method"
	case URI:
		return "uri"
	case Params:
		return "params"
	case Headers:
		return "headers"
	case Body:
		return "body"
	case Status:
		return "status"
	default:
		return "all"
	}
}

// ParseDetail maps a detail name to a Detail.
func ParseDetail(name string) (Detail, error) {
	for _, d := range []Detail{All, Method, URI, Params, Headers, Body, Status} {
		if strings.EqualFold(name, d.String()) {
			return d, nil
		}
	}
	return All, fmt.Errorf("unknown log detail: %s", name)
}

type detailSet map[Detail]bool

func newDetailSet(details []Detail) detailSet {
	set := make(detailSet)
	for _, d := range details {
		set[d] = true
	}
	return set
}

func (s detailSet) has(d Detail) bool {
	return len(s) == 0 || s[All] || s[d]
}

var (
	label = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

// RequestFilter logs each request to w before it is sent. With no details
// everything is logged; Status does not apply to requests.
func RequestFilter(w io.Writer, details ...Detail) http.Filter {
	set := newDetailSet(details)
	return func(req *http.Request, next http.Handler) (*http.Response, error) {
		writeRequest(w, req, set)
		return next(req)
	}
}

// ResponseFilter logs each response to w once it arrives. With no details
// everything is logged; Method, URI and Params do not apply to responses.
func ResponseFilter(w io.Writer, details ...Detail) http.Filter {
	set := newDetailSet(details)
	return func(req *http.Request, next http.Handler) (*http.Response, error) {
		resp, err := next(req)
		if err != nil {
			fmt.Fprintf(w, "%s %v\n", color.RedString("Request failed:"), err)
			return nil, err
		}
		writeResponse(w, resp, set)
		return resp, nil
	}
}

func writeRequest(w io.Writer, req *http.Request, set detailSet) {
	if set.has(Method) {
		fmt.Fprintf(w, "%-16s%s\n", label("Request method:"), req.Method)
	}
	if set.has(URI) {
		fmt.Fprintf(w, "%-16s%s\n", label("Request URI:"), req.URL)
	}
	if set.has(Params) {
		writeParams(w, req.URL)
		if len(req.Multipart) > 0 {
			fmt.Fprintf(w, "%s\n", label("Multiparts:"))
			for _, p := range req.Multipart {
				if p.File {
					fmt.Fprintf(w, "  %s=@%s\n", p.Name, p.Path)
				} else {
					fmt.Fprintf(w, "  %s=%s\n", p.Name, p.Value)
				}
			}
		}
	}
	if set.has(Headers) {
		fmt.Fprintf(w, "%s\n", label("Headers:"))
		for _, h := range req.Headers {
			fmt.Fprintf(w, "  %s: %s\n", h.Name, h.Value)
		}
		if auth := describeAuth(req); auth != "" {
			fmt.Fprintf(w, "  %s\n", faint("(auth: "+auth+")"))
		}
	}
	if set.has(Body) {
		fmt.Fprintf(w, "%s\n", label("Body:"))
		writeBody(w, req.Body)
	}
}

func writeParams(w io.Writer, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	query := u.Query()
	fmt.Fprintf(w, "%s\n", label("Query params:"))
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range query[name] {
			fmt.Fprintf(w, "  %s=%s\n", name, v)
		}
	}
}

// describeAuth names the scheme without revealing credentials.
func describeAuth(req *http.Request) string {
	switch {
	case req.DigestAuth != nil:
		return "digest " + req.DigestAuth.Username
	case req.BasicAuth != nil && req.BasicAuth.Preemptive:
		return "preemptive basic " + req.BasicAuth.Username
	case req.BasicAuth != nil:
		return "basic " + req.BasicAuth.Username
	case req.BearerToken != "":
		return "bearer"
	}
	return ""
}

func writeResponse(w io.Writer, resp *http.Response, set detailSet) {
	if set.has(Status) {
		status := resp.Status
		if status == "" {
			status = fmt.Sprintf("%d", resp.StatusCode)
		}
		fmt.Fprintf(w, "%s %s\n", statusColor(resp.StatusCode)(status), faint(fmt.Sprintf("(%dms)", resp.DurationMs())))
	}
	if set.has(Headers) {
		names := make([]string, 0, len(resp.Headers))
		for name := range resp.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s: %s\n", name, resp.Headers[name])
		}
	}
	if set.has(Body) {
		fmt.Fprintln(w)
		writeBody(w, resp.Body)
	}
}

func statusColor(code int) func(a ...any) string {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case code >= 400:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	}
}

func writeBody(w io.Writer, body []byte) {
	if len(body) == 0 {
		fmt.Fprintf(w, "%s\n", faint("<none>"))
		return
	}
	fmt.Fprint(w, Pretty(body))
	if body[len(body)-1] != '\n' && !gjson.ValidBytes(body) {
		fmt.Fprintln(w)
	}
}

// Pretty indents JSON bodies, colorizing them when color output is enabled.
// Other bodies are returned unchanged.
func Pretty(body []byte) string {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	out := pretty.Pretty(body)
	if !color.NoColor {
		out = pretty.Color(out, nil)
	}
	return string(out)
}

// PrettyPrint writes the response body to w, indented if it is JSON, and
// returns the body text.
func PrettyPrint(w io.Writer, resp *http.Response) string {
	out := Pretty(resp.Body)
	fmt.Fprint(w, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(w)
	}
	return resp.BodyString()
}
