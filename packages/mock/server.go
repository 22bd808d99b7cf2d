// Package mock provides an echo HTTP server for exercising requests.
package mock

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// Server echoes every request back as JSON, except for requests matching a
// stubbed route.
type Server struct {
	router  *Router
	port    int
	delay   time.Duration
	verbose bool
}

// Option is a functional option for Server
type Option func(*Server)

func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithVerbose logs every request
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router: NewRouter(),
		port:   3000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stub serves resp for method and pattern instead of echoing.
func (s *Server) Stub(method, pattern string, resp *StubResponse) {
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	if resp.ContentType == "" {
		resp.ContentType = "application/json"
	}
	s.router.AddRoute(&Route{
		Method:      strings.ToUpper(method),
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Response:    resp,
	})
}

// Handler returns the server's handler for use with httptest or another mux.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Echo server listening on http://%s", listener.Addr())
	if s.verbose {
		for _, route := range s.router.Routes() {
			log.Printf("  %s %s -> %d", route.Method, route.PathPattern, route.Response.StatusCode)
		}
	}

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	route, params := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		EchoHandler().ServeHTTP(w, r)
		if s.verbose {
			log.Printf("%s %s -> echo (%s)", r.Method, r.URL.RequestURI(), time.Since(start))
		}
		return
	}

	resp := route.Response
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", resp.ContentType)

	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(resolveBodyParams(resp.Body, params)))

	if s.verbose {
		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.RequestURI(), resp.StatusCode, time.Since(start))
	}
}

func resolveBodyParams(body string, params map[string]string) string {
	result := body
	for key, value := range params {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}
