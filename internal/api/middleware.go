package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"gatehouse/internal/apperr"
	"gatehouse/internal/auth"
	"gatehouse/internal/logging"
	"gatehouse/internal/models"
	"gatehouse/internal/store"
)

type contextKey string

const problemBaseKey contextKey = "problemBase"

const CorrelationIDHeader = "X-Correlation-ID"

func CorrelationID(ctx context.Context) string {
	return logging.CorrelationID(ctx)
}

// correlationMiddleware reuses a well-formed client X-Correlation-ID or
// generates one, and echoes it on the response.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, id)

		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

func problemBaseMiddleware(base string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), problemBaseKey, base)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type AuthMiddleware struct {
	issuer *auth.TokenIssuer
	users  UserLookup
}

func NewAuthMiddleware(issuer *auth.TokenIssuer, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer, users: users}
}

// RequireAuth validates the bearer token and loads the caller. Deactivated and
// deleted accounts are rejected like an invalid token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, r, apperr.Unauthenticated("Authorization header required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeError(w, r, apperr.Unauthenticated("Invalid authorization header format"))
			return
		}

		claims, err := m.issuer.ValidateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			writeError(w, r, apperr.Unauthenticated("Invalid or expired token"))
			return
		}

		user, err := m.users.FindByID(r.Context(), claims.UserID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !user.Active) {
			writeError(w, r, apperr.Unauthenticated("Invalid or expired token"))
			return
		}
		if err != nil {
			writeError(w, r, store.AsAppError(err))
			return
		}

		ctx := auth.WithPrincipal(r.Context(), auth.Principal{
			UserID: user.ID,
			Email:  user.Email,
			Roles:  user.Roles(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// corsMiddleware allows the configured origins plus loopback development
// origins. Cross-origin requests from anywhere else are refused.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, ok := allowed[origin]
			if !ok && !isLoopbackOrigin(origin) {
				forbidden(w, r, "Origin not allowed")
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, If-Match, If-None-Match, X-Correlation-ID")
			h.Set("Access-Control-Expose-Headers", "ETag, Location, Retry-After, X-Correlation-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a handler panic into a 500 problem so the response still
// carries a correlation id. http.ErrAbortHandler is re-raised for net/http.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.ErrorContext(r.Context(), "panic recovered", "panic", rec, "stack", string(debug.Stack()))
			writeError(w, r, apperr.Internal(fmt.Errorf("panic: %v", rec)))
		}()
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(resolver *ClientIPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			slog.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"remote", resolver.Resolve(r),
			)
		})
	}
}
