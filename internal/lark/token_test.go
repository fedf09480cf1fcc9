package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAppID     = "cli_test_app"
	testAppSecret = "super-secret-value"
)

// newIdentityServer returns a mock identity endpoint that issues tenant and
// user tokens with the given lifetime, counting exchange calls per kind.
func newIdentityServer(t *testing.T, expireSeconds int64, tenantCalls, userCalls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tenantTokenPath:
			n := tenantCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":                0,
				"msg":                 "ok",
				"tenant_access_token": fmt.Sprintf("t-token-%d", n),
				"expire":              expireSeconds,
			})
		case userTokenPath:
			n := userCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"msg":  "ok",
				"data": map[string]any{
					"access_token": fmt.Sprintf("u-token-%d", n),
					"expires_in":   expireSeconds,
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestTokenCache(t *testing.T, baseURL string) *TokenCache {
	t.Helper()
	cache, err := NewTokenCache(TokenCacheConfig{
		AppID:            testAppID,
		AppSecret:        testAppSecret,
		UserRefreshToken: "ur-refresh-credential",
		BaseURL:          baseURL,
	})
	require.NoError(t, err)
	return cache
}

func TestNewTokenCache_RequiresCredentials(t *testing.T) {
	_, err := NewTokenCache(TokenCacheConfig{BaseURL: "http://localhost"})
	assert.Error(t, err)

	_, err = NewTokenCache(TokenCacheConfig{AppID: testAppID, AppSecret: testAppSecret})
	assert.Error(t, err)
}

func TestToken_ConcurrentCallersShareOneExchange(t *testing.T) {
	var tenantCalls, userCalls atomic.Int64
	srv := newIdentityServer(t, 7200, &tenantCalls, &userCalls)
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	const callers = 50
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			tokens[i], errs[i] = cache.Token(context.Background(), TokenKindTenant)
		}(i)
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int64(1), tenantCalls.Load(), "concurrent callers must share one exchange")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "t-token-1", tokens[i], "all callers must receive the same token")
	}
}

func TestToken_CachedWithinMarginIsNotRefetched(t *testing.T) {
	var tenantCalls, userCalls atomic.Int64
	srv := newIdentityServer(t, 7200, &tenantCalls, &userCalls)
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	for i := 0; i < 10; i++ {
		tok, err := cache.Token(context.Background(), TokenKindTenant)
		require.NoError(t, err)
		assert.Equal(t, "t-token-1", tok)
	}
	assert.Equal(t, int64(1), tenantCalls.Load(), "a valid cached token must not be refetched")
}

func TestToken_NearExpiryTriggersRefresh(t *testing.T) {
	// Tokens issued with a lifetime inside the 5-minute safety margin are
	// treated as absent on the next read, so every call refreshes.
	var tenantCalls, userCalls atomic.Int64
	srv := newIdentityServer(t, 60, &tenantCalls, &userCalls)
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	tok, err := cache.Token(context.Background(), TokenKindTenant)
	require.NoError(t, err)
	assert.Equal(t, "t-token-1", tok)

	tok, err = cache.Token(context.Background(), TokenKindTenant)
	require.NoError(t, err)
	assert.Equal(t, "t-token-2", tok)
	assert.Equal(t, int64(2), tenantCalls.Load())
}

func TestToken_KindsAreCachedIndependently(t *testing.T) {
	var tenantCalls, userCalls atomic.Int64
	srv := newIdentityServer(t, 7200, &tenantCalls, &userCalls)
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	tenantTok, err := cache.Token(context.Background(), TokenKindTenant)
	require.NoError(t, err)
	userTok, err := cache.Token(context.Background(), TokenKindUser)
	require.NoError(t, err)

	assert.Equal(t, "t-token-1", tenantTok)
	assert.Equal(t, "u-token-1", userTok)
	assert.Equal(t, int64(1), tenantCalls.Load())
	assert.Equal(t, int64(1), userCalls.Load())
}

func TestToken_FailureSharedByAllWaiters(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	const callers = 20
	errs := make([]error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			_, errs[i] = cache.Token(context.Background(), TokenKindTenant)
		}(i)
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 0; i < callers; i++ {
		var authErr *AuthError
		require.True(t, errors.As(errs[i], &authErr), "expected AuthError, got %v", errs[i])
		assert.Equal(t, TokenKindTenant, authErr.Kind)
	}
}

func TestToken_UserKindWithoutCredential(t *testing.T) {
	var tenantCalls, userCalls atomic.Int64
	srv := newIdentityServer(t, 7200, &tenantCalls, &userCalls)
	defer srv.Close()

	cache, err := NewTokenCache(TokenCacheConfig{
		AppID:     testAppID,
		AppSecret: testAppSecret,
		BaseURL:   srv.URL,
	})
	require.NoError(t, err)
	assert.False(t, cache.HasUserCredential())

	_, err = cache.Token(context.Background(), TokenKindUser)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, TokenKindUser, authErr.Kind)
	assert.Equal(t, int64(0), userCalls.Load(), "no exchange without a credential")
}

func TestToken_UnknownKind(t *testing.T) {
	cache := newTestTokenCache(t, "http://localhost:0")
	_, err := cache.Token(context.Background(), TokenKind("bogus"))
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
}

func TestToken_ErrorNeverContainsSecret(t *testing.T) {
	// The identity endpoint echoes the secret back in its error message;
	// the cache must redact it before surfacing the failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 99991663,
			"msg":  "bad credentials for secret " + testAppSecret,
		})
	}))
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	_, err := cache.Token(context.Background(), TokenKindTenant)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testAppSecret)
	assert.Contains(t, err.Error(), "[redacted]")
}

func TestToken_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	_, err := cache.Token(context.Background(), TokenKindTenant)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
}

func TestInvalidate(t *testing.T) {
	var tenantCalls, userCalls atomic.Int64
	srv := newIdentityServer(t, 7200, &tenantCalls, &userCalls)
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	_, err := cache.Token(context.Background(), TokenKindTenant)
	require.NoError(t, err)

	cache.Invalidate(TokenKindTenant)

	tok, err := cache.Token(context.Background(), TokenKindTenant)
	require.NoError(t, err)
	assert.Equal(t, "t-token-2", tok)
	assert.Equal(t, int64(2), tenantCalls.Load())
}

func TestSetRefreshObserver(t *testing.T) {
	var tenantCalls, userCalls atomic.Int64
	srv := newIdentityServer(t, 7200, &tenantCalls, &userCalls)
	defer srv.Close()

	cache := newTestTokenCache(t, srv.URL)

	var observed []TokenKind
	cache.SetRefreshObserver(func(kind TokenKind, err error) {
		assert.NoError(t, err)
		observed = append(observed, kind)
	})

	_, err := cache.Token(context.Background(), TokenKindTenant)
	require.NoError(t, err)
	// Cached read must not trigger the observer again.
	_, err = cache.Token(context.Background(), TokenKindTenant)
	require.NoError(t, err)

	assert.Equal(t, []TokenKind{TokenKindTenant}, observed)
}

func TestToken_IdentityEndpointTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cache, err := NewTokenCache(TokenCacheConfig{
		AppID:      testAppID,
		AppSecret:  testAppSecret,
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Timeout: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	_, err = cache.Token(context.Background(), TokenKindTenant)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.NotContains(t, err.Error(), testAppSecret)
}
