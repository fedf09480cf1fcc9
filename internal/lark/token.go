package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/larkmcp/larkmcp/internal/logging"
)

// TokenKind selects which access token a caller needs.
type TokenKind string

const (
	// TokenKindTenant is the app-level token obtained from the app id and
	// secret. Most tools use it.
	TokenKindTenant TokenKind = "tenant"

	// TokenKindUser is the user-level token obtained from a stored refresh
	// credential. Document creation requires it.
	TokenKindUser TokenKind = "user"
)

// DefaultExpiryMargin is the safety margin applied to cached tokens. A token
// with less remaining lifetime than this is treated as absent and refreshed
// before use, so callers never receive a token about to expire mid-call.
const DefaultExpiryMargin = 5 * time.Minute

const (
	tenantTokenPath = "/auth/v3/tenant_access_token/internal"
	userTokenPath   = "/authen/v1/refresh_access_token"
)

type cachedToken struct {
	value     string
	expiresAt time.Time
}

func (t cachedToken) valid(now time.Time, margin time.Duration) bool {
	return t.value != "" && t.expiresAt.After(now.Add(margin))
}

// TokenCacheConfig configures a TokenCache.
type TokenCacheConfig struct {
	// AppID and AppSecret are the application credentials used for the
	// tenant token exchange. Both are required.
	AppID     string
	AppSecret string

	// UserRefreshToken is the stored credential for the user token
	// exchange. Optional; without it user-kind requests fail with an
	// AuthError.
	UserRefreshToken string

	// BaseURL is the identity endpoint base, e.g.
	// "https://open.feishu.cn/open-apis".
	BaseURL string

	// HTTPClient performs the credential exchange calls. If nil, a client
	// with a 30 second timeout is used.
	HTTPClient *http.Client

	// ExpiryMargin overrides DefaultExpiryMargin. Zero means the default.
	ExpiryMargin time.Duration

	// Logger receives refresh events. Token and secret values are never
	// logged. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// TokenCache serves valid bearer tokens for the Lark API, fetching and
// refreshing them from the identity endpoint as needed. It holds at most one
// token per kind, entirely in process memory.
//
// Reads of a valid cached token take only a read lock. Refreshes are
// deduplicated per kind with a singleflight group, so concurrent callers that
// find the token absent or near expiry share a single identity-endpoint call
// and all receive its result.
type TokenCache struct {
	cfg        TokenCacheConfig
	httpClient *http.Client
	margin     time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	tokens map[TokenKind]cachedToken

	group singleflight.Group

	// onRefresh, when set, is invoked after every refresh attempt so the
	// instrumentation layer can count them without this package depending
	// on it.
	onRefresh func(kind TokenKind, err error)
}

// NewTokenCache creates a TokenCache. It fails if the application
// credentials are missing; that is a startup configuration error, not an
// AuthError.
func NewTokenCache(cfg TokenCacheConfig) (*TokenCache, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("lark: app id and app secret are required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("lark: base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	margin := cfg.ExpiryMargin
	if margin == 0 {
		margin = DefaultExpiryMargin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenCache{
		cfg:        cfg,
		httpClient: httpClient,
		margin:     margin,
		logger:     logger,
		tokens:     make(map[TokenKind]cachedToken),
	}, nil
}

// SetRefreshObserver registers a callback invoked after every refresh
// attempt. Must be called before the cache is shared between goroutines.
func (c *TokenCache) SetRefreshObserver(fn func(kind TokenKind, err error)) {
	c.onRefresh = fn
}

// HasUserCredential reports whether a user refresh credential is configured.
func (c *TokenCache) HasUserCredential() bool {
	return c.cfg.UserRefreshToken != ""
}

// Token returns a currently-valid bearer token of the requested kind,
// refreshing it first when absent or within the expiry margin. Failures are
// reported as *AuthError.
func (c *TokenCache) Token(ctx context.Context, kind TokenKind) (string, error) {
	if kind != TokenKindTenant && kind != TokenKindUser {
		return "", &AuthError{Kind: kind, Msg: "unknown token kind"}
	}

	c.mu.RLock()
	tok := c.tokens[kind]
	c.mu.RUnlock()
	if tok.valid(time.Now(), c.margin) {
		return tok.value, nil
	}

	// Deduplicate concurrent refreshes per kind: every waiter gets the
	// result of the one in-flight exchange, success or failure.
	v, err, _ := c.group.Do(string(kind), func() (any, error) {
		// A refresh may have completed while this call waited on the
		// group; serve it instead of exchanging again.
		c.mu.RLock()
		tok := c.tokens[kind]
		c.mu.RUnlock()
		if tok.valid(time.Now(), c.margin) {
			return tok.value, nil
		}
		return c.refresh(ctx, kind)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token of the given kind so the next Token call
// refreshes it. Used when the API rejects a token before its computed expiry.
func (c *TokenCache) Invalidate(kind TokenKind) {
	c.mu.Lock()
	delete(c.tokens, kind)
	c.mu.Unlock()
}

func (c *TokenCache) refresh(ctx context.Context, kind TokenKind) (string, error) {
	var (
		value     string
		expiresIn time.Duration
		err       error
	)
	switch kind {
	case TokenKindTenant:
		value, expiresIn, err = c.fetchTenantToken(ctx)
	case TokenKindUser:
		value, expiresIn, err = c.fetchUserToken(ctx)
	}

	if c.onRefresh != nil {
		c.onRefresh(kind, err)
	}
	if err != nil {
		c.logger.Error("token refresh failed",
			slog.String("token_kind", string(kind)),
			logging.Err(err))
		return "", err
	}

	c.mu.Lock()
	c.tokens[kind] = cachedToken{value: value, expiresAt: time.Now().Add(expiresIn)}
	c.mu.Unlock()

	c.logger.Info("token refreshed",
		slog.String("token_kind", string(kind)),
		slog.String("token", logging.SanitizeToken(value)),
		slog.Duration("expires_in", expiresIn))
	return value, nil
}

// fetchTenantToken exchanges the app credentials for a tenant access token.
// The tenant endpoint returns its fields at the top level, not inside the
// usual data envelope.
func (c *TokenCache) fetchTenantToken(ctx context.Context) (string, time.Duration, error) {
	body := map[string]string{
		"app_id":     c.cfg.AppID,
		"app_secret": c.cfg.AppSecret,
	}

	var resp struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int64  `json:"expire"`
	}
	if err := c.postJSON(ctx, TokenKindTenant, tenantTokenPath, body, &resp); err != nil {
		return "", 0, err
	}
	if resp.Code != 0 {
		return "", 0, &AuthError{
			Kind: TokenKindTenant,
			Msg:  fmt.Sprintf("exchange rejected with code %d: %s", resp.Code, c.sanitize(resp.Msg)),
		}
	}
	if resp.TenantAccessToken == "" || resp.Expire <= 0 {
		return "", 0, &AuthError{Kind: TokenKindTenant, Msg: "malformed exchange response"}
	}
	return resp.TenantAccessToken, time.Duration(resp.Expire) * time.Second, nil
}

// fetchUserToken exchanges the stored refresh credential for a user access
// token.
func (c *TokenCache) fetchUserToken(ctx context.Context) (string, time.Duration, error) {
	if c.cfg.UserRefreshToken == "" {
		return "", 0, &AuthError{Kind: TokenKindUser, Msg: "no user refresh credential configured"}
	}

	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": c.cfg.UserRefreshToken,
	}

	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int64  `json:"expires_in"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, TokenKindUser, userTokenPath, body, &resp); err != nil {
		return "", 0, err
	}
	if resp.Code != 0 {
		return "", 0, &AuthError{
			Kind: TokenKindUser,
			Msg:  fmt.Sprintf("exchange rejected with code %d: %s", resp.Code, c.sanitize(resp.Msg)),
		}
	}
	if resp.Data.AccessToken == "" || resp.Data.ExpiresIn <= 0 {
		return "", 0, &AuthError{Kind: TokenKindUser, Msg: "malformed exchange response"}
	}
	return resp.Data.AccessToken, time.Duration(resp.Data.ExpiresIn) * time.Second, nil
}

func (c *TokenCache) postJSON(ctx context.Context, kind TokenKind, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &AuthError{Kind: kind, Msg: "failed to encode exchange request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return &AuthError{Kind: kind, Msg: "failed to build exchange request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Kind: kind, Msg: "identity endpoint unreachable", Err: sanitizeNetErr(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AuthError{Kind: kind, Msg: fmt.Sprintf("identity endpoint returned status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &AuthError{Kind: kind, Msg: "malformed exchange response", Err: err}
	}
	return nil
}

// sanitize strips credential material from upstream-provided text before it
// is put into an error message or log line.
func (c *TokenCache) sanitize(msg string) string {
	msg = strings.ReplaceAll(msg, c.cfg.AppSecret, "[redacted]")
	if c.cfg.UserRefreshToken != "" {
		msg = strings.ReplaceAll(msg, c.cfg.UserRefreshToken, "[redacted]")
	}
	return msg
}

// sanitizeNetErr marks timeouts so callers can distinguish them from other
// connection failures.
func sanitizeNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timeout: %w", err)
	}
	return err
}
