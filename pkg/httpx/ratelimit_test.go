package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/confirm/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(userID, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), httpx.CtxKeyUserID, userID))
	}
	return req
}

func TestKeyExtractors(t *testing.T) {
	t.Run("IP from RemoteAddr", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(requestAs("", "192.168.1.1:12345")))
	})

	t.Run("IP prefers X-Forwarded-For", func(t *testing.T) {
		req := requestAs("", "192.168.1.1:12345")
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("IP uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := requestAs("", "192.168.1.1:12345")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})

	t.Run("user id from context", func(t *testing.T) {
		require.Equal(t, "u-1", httpx.UserIDKeyExtractor(requestAs("u-1", "192.168.1.1:1")))
		require.Equal(t, "", httpx.UserIDKeyExtractor(requestAs("", "192.168.1.1:1")))
	})

	t.Run("composite skips empty values", func(t *testing.T) {
		extractor := httpx.CompositeKeyExtractor(":", httpx.UserIDKeyExtractor, httpx.IPKeyExtractor)
		require.Equal(t, "u-1:192.168.1.1", extractor(requestAs("u-1", "192.168.1.1:1")))
		require.Equal(t, "192.168.1.1", extractor(requestAs("", "192.168.1.1:1")))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	config := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}

	t.Run("blocks requests over limit", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(okHandler())

		for i := range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestAs("", "192.168.1.1:12345"))
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs("", "192.168.1.1:12345"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("senders are tracked separately", func(t *testing.T) {
		h := httpx.RateLimitByUser(config)(okHandler())

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestAs("alice", "10.0.0.1:1"))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs("alice", "10.0.0.1:1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		// Same address, different sender
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs("bob", "10.0.0.1:1"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		one := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
		h := httpx.RateLimitMiddleware(one, func(*http.Request) string { return "" })(okHandler())

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestAs("", "10.0.0.1:1"))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestParseRateLimitFromEnv(t *testing.T) {
	defaults := httpx.RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	t.Run("no env uses defaults", func(t *testing.T) {
		require.Equal(t, defaults, httpx.ParseRateLimitFromEnv("TESTNONE", defaults))
	})

	t.Run("overrides all parameters", func(t *testing.T) {
		t.Setenv("RATELIMIT_TESTALL_REQUESTS", "100")
		t.Setenv("RATELIMIT_TESTALL_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_TESTALL_BURST", "50")

		got := httpx.ParseRateLimitFromEnv("TESTALL", defaults)
		require.Equal(t, 100, got.RequestsPerWindow)
		require.Equal(t, 30*time.Second, got.Window)
		require.Equal(t, 50, got.Burst)
	})

	t.Run("invalid and zero values use defaults", func(t *testing.T) {
		t.Setenv("RATELIMIT_TESTBAD_REQUESTS", "lots")
		t.Setenv("RATELIMIT_TESTBAD_WINDOW_SEC", "0")
		t.Setenv("RATELIMIT_TESTBAD_BURST", "-3")

		require.Equal(t, defaults, httpx.ParseRateLimitFromEnv("TESTBAD", defaults))
	})
}
