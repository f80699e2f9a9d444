package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// maxArgLogLen is the maximum length for logged query strings before truncation.
const maxArgLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 5 * time.Second

type ctxKey string

const subjectKey ctxKey = "subject"

// RequestLogger returns middleware that logs all requests with timing.
// Server errors are logged at ERROR, slow requests at WARN.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, "request_id", id)
			}
			if q := r.URL.RawQuery; q != "" {
				attrs = append(attrs, "query", truncate(q, maxArgLogLen))
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
		})
	}
}

// JWTAuth validates the Bearer token on every request. Tokens must be HS256
// signed with secret and carry a subject.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w)
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(*jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.Subject == "" {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated subject, if any.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "Could not validate credentials")
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
