package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/larkmcp/larkmcp/internal/config"
	"github.com/larkmcp/larkmcp/internal/instrumentation"
	"github.com/larkmcp/larkmcp/internal/lark"
	"github.com/larkmcp/larkmcp/internal/logging"
)

// ServerContext holds the shared dependencies of the MCP server: the Lark
// client, its token cache, and the instrumentation recorders. A single
// ServerContext is created at startup and shared by every tool handler.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	larkClient *lark.Client
	tokens     *lark.TokenCache
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger
	tracer     trace.Tracer

	mu       sync.RWMutex
	shutdown bool
}

// Options configures a ServerContext beyond the process configuration.
type Options struct {
	// HTTPClient is shared between the token cache and the API client so
	// both reuse one connection pool. If nil, one is created with the
	// configured request timeout.
	HTTPClient *http.Client

	// Metrics receives token refresh and API call recordings. Optional.
	Metrics *instrumentation.Metrics

	// Audit receives tool invocation audit entries. Optional.
	Audit *instrumentation.AuditLogger

	// Tracer creates spans around tool invocations. Optional.
	Tracer trace.Tracer
}

// NewServerContext creates the shared server state from the process
// configuration. The token cache is created eagerly but no identity call is
// made until the first tool needs a token.
func NewServerContext(ctx context.Context, cfg *config.Config, opts Options) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	tokens, err := lark.NewTokenCache(lark.TokenCacheConfig{
		AppID:            cfg.AppID,
		AppSecret:        cfg.AppSecret,
		UserRefreshToken: cfg.UserRefreshToken,
		BaseURL:          cfg.BaseURL,
		HTTPClient:       httpClient,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	client, err := lark.NewClient(lark.ClientConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: httpClient,
		Tokens:     tokens,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	if opts.Metrics != nil {
		metrics := opts.Metrics
		tokens.SetRefreshObserver(func(kind lark.TokenKind, refreshErr error) {
			metrics.RecordTokenRefresh(shutdownCtx, string(kind), observerStatus(refreshErr))
		})
		client.SetOperationObserver(func(op string, callErr error, duration time.Duration) {
			metrics.RecordLarkOperation(shutdownCtx, op, observerStatus(callErr), duration)
		})
	}

	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		larkClient: client,
		tokens:     tokens,
		metrics:    opts.Metrics,
		audit:      opts.Audit,
		tracer:     opts.Tracer,
	}, nil
}

func observerStatus(err error) string {
	if err != nil {
		return logging.StatusError
	}
	return logging.StatusSuccess
}

// Context returns the server lifetime context. It is canceled on shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// LarkClient returns the shared Lark API client.
func (sc *ServerContext) LarkClient() *lark.Client {
	return sc.larkClient
}

// Tokens returns the shared token cache.
func (sc *ServerContext) Tokens() *lark.TokenCache {
	return sc.tokens
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Audit returns the audit logger, or nil when audit logging is off.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	return sc.audit
}

// Tracer returns the tracer for tool spans, or nil when tracing is off.
func (sc *ServerContext) Tracer() trace.Tracer {
	return sc.tracer
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
