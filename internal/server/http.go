package server

import (
	"context"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/larkmcp/larkmcp/internal/instrumentation"
)

const (
	httpReadHeaderTimeout = 10 * time.Second
	httpWriteTimeout      = 60 * time.Second
	httpIdleTimeout       = 120 * time.Second
)

// HTTPServer serves the MCP streamable-http transport alongside the health
// probe endpoints.
type HTTPServer struct {
	httpServer *http.Server
	health     *HealthChecker
	addr       string
}

// NewHTTPServer creates an HTTP server exposing the MCP endpoint at /mcp and
// the probe endpoints at /healthz and /readyz.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, sc *ServerContext, addr string) *HTTPServer {
	health := NewHealthChecker(sc)

	mux := http.NewServeMux()
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)
	mux.Handle("/mcp", streamable)
	health.RegisterHealthEndpoints(mux)

	handler := http.Handler(mux)
	if m := sc.Metrics(); m != nil {
		handler = requestMetrics(m, handler)
	}

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: httpReadHeaderTimeout,
			WriteTimeout:      httpWriteTimeout,
			IdleTimeout:       httpIdleTimeout,
		},
		health: health,
		addr:   addr,
	}
}

// statusWriter captures the response code for the request metrics. Flush is
// forwarded so the streamable transport can keep flushing event frames.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestMetrics(m *instrumentation.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

// Health returns the health checker so callers can flip readiness.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.addr
}

// Start starts the HTTP server and blocks until it stops.
func (s *HTTPServer) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}
