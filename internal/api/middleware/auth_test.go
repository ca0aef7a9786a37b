package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-origination/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func signed(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func okHandler(seen *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = SubjectFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "testsecret"
	cfg := config.AuthConfig{Enabled: true, JWTSecret: secret}
	valid := jwt.MapClaims{"username": "ops", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name   string
		cfg    config.AuthConfig
		header string
		want   int
	}{
		{name: "disabled passes through", cfg: config.AuthConfig{Enabled: false}, want: http.StatusOK},
		{name: "missing header", cfg: cfg, want: http.StatusUnauthorized},
		{name: "wrong scheme", cfg: cfg, header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", cfg: cfg, header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "wrong secret", cfg: cfg, header: "Bearer " + signed(t, jwt.SigningMethodHS256, "other", valid), want: http.StatusUnauthorized},
		{name: "expired", cfg: cfg, header: "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"username": "ops", "exp": time.Now().Add(-time.Hour).Unix()}), want: http.StatusUnauthorized},
		{name: "wrong algorithm", cfg: cfg, header: "Bearer " + signed(t, jwt.SigningMethodHS512, secret, valid), want: http.StatusUnauthorized},
		{name: "valid token", cfg: cfg, header: "Bearer " + signed(t, jwt.SigningMethodHS256, secret, valid), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/loans", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(tt.cfg, quietLogger)(okHandler(nil)).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, unauthorizedBody, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_ExposesSubject(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "s3cret"}
	token := signed(t, jwt.SigningMethodHS256, "s3cret", jwt.MapClaims{"username": "analyst", "exp": time.Now().Add(time.Hour).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/loans", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()

	var subject string
	AuthMiddleware(cfg, quietLogger)(okHandler(&subject)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analyst", subject)
}

func TestCallbackAuth(t *testing.T) {
	cfg := config.CallbackAuthConfig{Enabled: true, Username: "engine", Password: "pw"}
	h := CallbackAuth(cfg, quietLogger)(okHandler(nil))

	t.Run("correct credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/scoring/callback", nil)
		req.SetBasicAuth("engine", "pw")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/scoring/callback", nil)
		req.SetBasicAuth("engine", "nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scoring/callback", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "scoring-callback")
	})

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CallbackAuth(config.CallbackAuthConfig{}, quietLogger)(okHandler(nil)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scoring/callback", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
