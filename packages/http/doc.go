// Package http is the transport used to send requests built by the request
// package.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts, redirects, proxy and TLS verification
//   - Basic (preemptive or challenged), digest and bearer authentication
//   - Multipart form data support
//   - Filters that run around every send, used for request/response logging
//   - Responses that parse their JSON body lazily
package http
