package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

func newRequestEvent(app core.App, ua string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/payment/create-payment", nil)
	req.Header.Set("User-Agent", ua)
	rec := httptest.NewRecorder()

	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e, rec
}

func TestAntiBot_RejectsCrawlers(t *testing.T) {
	app := newTestApp(t)
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 30)

	for _, ua := range []string{"Googlebot/2.1", "Some-Crawler", "python spider", "SCRAPER 1.0"} {
		e, rec := newRequestEvent(app, ua)
		require.NoError(t, limiter.AntiBot(e))
		assert.Equal(t, http.StatusForbidden, rec.Code, ua)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAntiBot_CountsPerIP(t *testing.T) {
	app := newTestApp(t)
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)
	key := "antibot:192.0.2.1"

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	for i := 0; i < 2; i++ {
		e, rec := newRequestEvent(app, "Mozilla/5.0")
		require.NoError(t, limiter.AntiBot(e))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	}

	e, rec := newRequestEvent(app, "Mozilla/5.0")
	require.NoError(t, limiter.AntiBot(e))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAntiBot_RedisErrorFailsOpen(t *testing.T) {
	app := newTestApp(t)
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 30)
	mock.ExpectIncr("antibot:192.0.2.1").SetErr(errors.New("connection refused"))

	e, rec := newRequestEvent(app, "Mozilla/5.0")
	require.NoError(t, limiter.AntiBot(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAntiBot_WithoutRedis(t *testing.T) {
	app := newTestApp(t)
	limiter := NewRateLimiter(nil, 0)
	assert.Equal(t, int64(30), limiter.limit)

	e, rec := newRequestEvent(app, "Mozilla/5.0")
	require.NoError(t, limiter.AntiBot(e))
	assert.Equal(t, http.StatusOK, rec.Code)

	e, rec = newRequestEvent(app, "bot")
	require.NoError(t, limiter.AntiBot(e))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAntiBot_KeysOnTrustedProxyIP(t *testing.T) {
	app := newTestApp(t)
	app.Settings().TrustedProxy.Headers = []string{"X-Forwarded-For"}

	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 30)
	mock.ExpectIncr("antibot:203.0.113.7").SetVal(1)
	mock.ExpectExpire("antibot:203.0.113.7", time.Minute).SetVal(true)

	e, rec := newRequestEvent(app, "Mozilla/5.0")
	e.Request.Header.Set("X-Forwarded-For", "203.0.113.7")
	require.NoError(t, limiter.AntiBot(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAntiBot_IgnoresUntrustedForwardedFor(t *testing.T) {
	app := newTestApp(t)

	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 30)
	mock.ExpectIncr("antibot:192.0.2.1").SetVal(1)
	mock.ExpectExpire("antibot:192.0.2.1", time.Minute).SetVal(true)

	e, rec := newRequestEvent(app, "Mozilla/5.0")
	e.Request.Header.Set("X-Forwarded-For", "203.0.113.7")
	require.NoError(t, limiter.AntiBot(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScannerAuth(t *testing.T) {
	app := newTestApp(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("door-1"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := NewScannerAuth(string(hash))
	require.True(t, auth.Enabled())

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{"valid key", "door-1", http.StatusOK},
		{"wrong key", "door-2", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec := newRequestEvent(app, "Mozilla/5.0")
			if tt.key != "" {
				e.Request.Header.Set(ScannerKeyHeader, tt.key)
			}
			require.NoError(t, auth.Require(e))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestScannerAuth_Disabled(t *testing.T) {
	app := newTestApp(t)
	auth := NewScannerAuth("")
	assert.False(t, auth.Enabled())

	e, rec := newRequestEvent(app, "Mozilla/5.0")
	require.NoError(t, auth.Require(e))
	assert.Equal(t, http.StatusOK, rec.Code)
}
