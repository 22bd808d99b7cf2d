// Package request builds HTTP requests from immutable descriptors and sends
// them through a transport.
//
// A descriptor is assembled with chained With calls in any order:
//
//	resp, err := request.Given().
//		WithBaseURI("https://restful-booker.herokuapp.com").
//		WithBasePath("/booking/{bookingId}").
//		WithPathParam("bookingId", 20).
//		Get()
//
// Building fails with a *ConfigurationError when the base URI is missing or
// when placeholders and path params do not line up. Sending returns the
// transport's *http.NetworkError unchanged; nothing is retried.
package request
