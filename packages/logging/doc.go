// Package logging provides transport filters that print requests and
// responses, and pretty printing for response bodies.
//
//	client := http.NewClient(http.WithFilters(
//		logging.RequestFilter(os.Stderr, logging.URI),
//		logging.ResponseFilter(os.Stderr, logging.Body),
//	))
package logging
