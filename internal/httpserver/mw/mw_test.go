package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, remote, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/topology", nil)
	req.RemoteAddr = remote
	if host != "" {
		req.Host = host
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"127.0.0.1", "10.0.0.0/8"}, false, logger.NewNop())(ok)

	assert.Equal(t, http.StatusNoContent, serve(h, "127.0.0.1:1000", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, "10.1.2.3:1000", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, "192.168.0.2:1000", "").Code)

	open := AllowOnlyCIDRS(nil, false, logger.NewNop())(ok)
	assert.Equal(t, http.StatusNoContent, serve(open, "192.168.0.2:1000", "").Code)
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"localhost", "*.lan"}, logger.NewNop())(ok)

	tests := []struct {
		host string
		want int
	}{
		{"localhost:9095", http.StatusNoContent},
		{"LOCALHOST", http.StatusNoContent},
		{"router.lan", http.StatusNoContent},
		{"lan", http.StatusForbidden},
		{".lan", http.StatusForbidden},
		{"evil.example:9095", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, "127.0.0.1:1000", tt.host).Code)
		})
	}

	open := EnforceHost(nil, logger.NewNop())(ok)
	assert.Equal(t, http.StatusNoContent, serve(open, "127.0.0.1:1000", "anything").Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 1})(ok)

	first := serve(h, "10.0.0.1:1", "")
	require.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1:2", "").Code)

	denied := serve(h, "10.0.0.1:3", "")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, denied.Header().Get("Retry-After"))

	// buckets are per client
	assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.2:1", "").Code)
}

func TestClientLimiter_SweepsIdleVisitors(t *testing.T) {
	l := newClientLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 60, IdleTTL: time.Minute, SweepInterval: time.Minute})
	now := time.Now()

	l.allow("a", now)
	l.allow("b", now)
	assert.Equal(t, 2, l.size())

	l.allow("c", now.Add(2*time.Minute))
	assert.Equal(t, 1, l.size())
}

func TestLog_RecordsStatus(t *testing.T) {
	var seen int
	h := Log(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		seen++
	}))

	rec := serve(h, "127.0.0.1:1", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1, seen)
}
