package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"loan-origination/internal/config"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const subjectKey ctxKey = "auth.subject"

const unauthorizedBody = `{"error":{"code":"UNAUTHORIZED","message":"Unauthorized"}}`

// SubjectFromContext returns the username of an authenticated bearer token.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// AuthMiddleware guards operator endpoints with an HS256 bearer token.
func AuthMiddleware(cfg config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := validateJWT(r.Header.Get("Authorization"), cfg.JWTSecret)
			if err != nil {
				logger.WarnContext(r.Context(), "Rejected bearer token", "error", err, "path", r.URL.Path)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, subject)))
		})
	}
}

func validateJWT(authHeader, secret string) (string, error) {
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}

	scheme, tokenString, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
		return "", errors.New("invalid Authorization header format")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	subject := ""
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		subject, _ = claims["username"].(string)
	}
	return subject, nil
}

// CallbackAuth protects the scoring engine callback with the basic-auth
// credentials registered with the engine.
func CallbackAuth(cfg config.CallbackAuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	basic := middleware.BasicAuth("scoring-callback", map[string]string{cfg.Username: cfg.Password})

	return func(next http.Handler) http.Handler {
		guarded := basic(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, _, ok := r.BasicAuth(); !ok {
				logger.WarnContext(r.Context(), "Score callback without credentials", "remote_addr", r.RemoteAddr)
			}
			guarded.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}
