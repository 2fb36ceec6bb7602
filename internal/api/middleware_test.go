package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nvoloshyn/go-chathub/internal/auth"
	"github.com/nvoloshyn/go-chathub/internal/config"
	"github.com/nvoloshyn/go-chathub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *ChatHubApp {
	cfg := &config.Config{
		ServerAddr:        "localhost:0",
		DatabaseDSN:       "unused",
		AccessSigningKey:  []byte("test-access-key"),
		RefreshSigningKey: []byte("test-refresh-key"),
		AuthRateLimit:     100,
		AuthRateBurst:     100,
	}

	return NewChatHubApp(http.NewServeMux(), testutil.TestLogger(t), nil, nil, cfg)
}

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &ChatHubApp{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	// handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &ChatHubApp{}

	// simple handler that does not panic
	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_authMiddleware(t *testing.T) {
	app := newTestApp(t)

	protected := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		require.True(t, ok, "expected identity in context")
		assert.Equal(t, "u1", ident.UserId)
		assert.Equal(t, "alice", ident.Username)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := app.verifier.IssueAccess(auth.Identity{UserId: "u1", Username: "alice"})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		protected(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		protected(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")

		protected(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("refresh token rejected on access endpoints", func(t *testing.T) {
		token, err := app.verifier.IssueRefresh(auth.Identity{UserId: "u1", Username: "alice"})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		protected(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func Test_rateLimit(t *testing.T) {
	cfg := &config.Config{
		ServerAddr:        "localhost:0",
		DatabaseDSN:       "unused",
		AccessSigningKey:  []byte("test-access-key"),
		RefreshSigningKey: []byte("test-refresh-key"),
		AuthRateLimit:     1,
		AuthRateBurst:     2,
	}
	app := NewChatHubApp(http.NewServeMux(), testutil.TestLogger(t), nil, nil, cfg)

	limited := app.rateLimit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		limited(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "expected request %d within burst to pass", i+1)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	limited(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "expected request over burst to be throttled")

	// a different client is not affected
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	limited(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "expected other clients to be unaffected")
}
