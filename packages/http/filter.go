package http

// Handler sends a request and returns its response.
type Handler func(req *Request) (*Response, error)

// Filter wraps a Handler. A filter may inspect or modify the request, decide
// not to call next, and inspect the response that next returns.
type Filter func(req *Request, next Handler) (*Response, error)

// Chain wraps h so that filters run in the given order, the first filter
// being the outermost.
func Chain(h Handler, filters ...Filter) Handler {
	for i := len(filters) - 1; i >= 0; i-- {
		filter, next := filters[i], h
		h = func(req *Request) (*Response, error) {
			return filter(req, next)
		}
	}
	return h
}
