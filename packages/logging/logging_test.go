package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/restcheck/packages/http"
)

func init() {
	color.NoColor = true
}

func bookingRequest() *http.Request {
	req := http.NewRequest("POST", "https://restful-booker.herokuapp.com/booking/20?expand=dates&a=1")
	req.AddHeader("Content-Type", "application/json")
	req.AddHeader("Cookie", "token=abc")
	req.SetBody([]byte(`{"firstname":"Jim"}`))
	req.BasicAuth = &http.BasicAuthCredentials{Username: "admin", Password: "password123", Preemptive: true}
	return req
}

func okHandler(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Headers:    map[string]string{"Content-Type": "application/json", "Connection": "keep-alive"},
		Body:       []byte(`{"bookingid":20}`),
		Duration:   42 * time.Millisecond,
	}, nil
}

func TestRequestFilter_All(t *testing.T) {
	var buf bytes.Buffer
	handler := http.Chain(okHandler, RequestFilter(&buf))

	_, err := handler(bookingRequest())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Request method: POST")
	assert.Contains(t, out, "Request URI:    https://restful-booker.herokuapp.com/booking/20?expand=dates&a=1")
	assert.Contains(t, out, "Query params:\n  a=1\n  expand=dates\n")
	assert.Contains(t, out, "  Cookie: token=abc\n")
	assert.Contains(t, out, "(auth: preemptive basic admin)")
	assert.NotContains(t, out, "password123")
	assert.Contains(t, out, "Body:\n{\n  \"firstname\": \"Jim\"\n}\n")
}

func TestRequestFilter_URIOnly(t *testing.T) {
	var buf bytes.Buffer
	handler := http.Chain(okHandler, RequestFilter(&buf, URI))

	_, err := handler(bookingRequest())
	require.NoError(t, err)

	assert.Equal(t, "Request URI:    https://restful-booker.herokuapp.com/booking/20?expand=dates&a=1\n", buf.String())
}

func TestRequestFilter_Multipart(t *testing.T) {
	var buf bytes.Buffer
	req := http.NewRequest("POST", "https://api.imgur.com/3/upload")
	req.Multipart = []*http.MultipartPart{
		{Name: "title", Value: "cat"},
		{Name: "image", Path: "cat.png", File: true},
	}

	_, err := http.Chain(okHandler, RequestFilter(&buf, Params))(req)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Multiparts:\n  title=cat\n  image=@cat.png\n")
}

func TestResponseFilter_All(t *testing.T) {
	var buf bytes.Buffer
	handler := http.Chain(okHandler, ResponseFilter(&buf))

	_, err := handler(bookingRequest())
	require.NoError(t, err)

	assert.Equal(t, "200 OK (42ms)\nConnection: keep-alive\nContent-Type: application/json\n\n{\n  \"bookingid\": 20\n}\n", buf.String())
}

func TestResponseFilter_BodyOnly(t *testing.T) {
	var buf bytes.Buffer
	handler := http.Chain(okHandler, ResponseFilter(&buf, Body))

	_, err := handler(bookingRequest())
	require.NoError(t, err)

	assert.Equal(t, "\n{\n  \"bookingid\": 20\n}\n", buf.String())
}

func TestResponseFilter_Error(t *testing.T) {
	var buf bytes.Buffer
	failing := func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}

	_, err := http.Chain(failing, ResponseFilter(&buf))(bookingRequest())

	require.Error(t, err)
	assert.Contains(t, buf.String(), "Request failed: connection refused")
}

func TestFilters_WithClient(t *testing.T) {
	var reqBuf, respBuf bytes.Buffer
	handler := http.Chain(okHandler, RequestFilter(&reqBuf, Method), ResponseFilter(&respBuf, Status))

	resp, err := handler(bookingRequest())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Request method: POST\n", reqBuf.String())
	assert.Equal(t, "200 OK (42ms)\n", respBuf.String())
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	resp := &http.Response{Body: []byte(`{"a":[1,2]}`)}

	body := PrettyPrint(&buf, resp)

	assert.Equal(t, `{"a":[1,2]}`, body)
	assert.Equal(t, "{\n  \"a\": [1, 2]\n}\n", buf.String())
}

func TestPrettyPrint_PlainText(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, &http.Response{Body: []byte("Created")})
	assert.Equal(t, "Created\n", buf.String())
}

func TestParseDetail(t *testing.T) {
	d, err := ParseDetail("BODY")
	require.NoError(t, err)
	assert.Equal(t, Body, d)

	_, err = ParseDetail("cookies")
	assert.Error(t, err)
}
