package request

import (
	"net/http"
	"sync"

	resthttp "github.com/abdul-hamid-achik/restcheck/packages/http"
)

var defaultTransport = sync.OnceValue(func() Transport {
	return resthttp.NewClient()
})

// Send builds the request and hands it to the transport once. Every call
// produces a new response; failures are returned, never retried.
func (d Descriptor) Send(method string) (*resthttp.Response, error) {
	req, err := d.Build(method)
	if err != nil {
		return nil, err
	}

	t := d.transport
	if t == nil {
		t = defaultTransport()
	}
	return t.Do(req)
}

func (d Descriptor) Get() (*resthttp.Response, error) {
	return d.Send(http.MethodGet)
}

func (d Descriptor) Post() (*resthttp.Response, error) {
	return d.Send(http.MethodPost)
}

func (d Descriptor) Put() (*resthttp.Response, error) {
	return d.Send(http.MethodPut)
}

func (d Descriptor) Patch() (*resthttp.Response, error) {
	return d.Send(http.MethodPatch)
}

func (d Descriptor) Delete() (*resthttp.Response, error) {
	return d.Send(http.MethodDelete)
}
