package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/metrics"
)

// TokenValidator verifies bearer tokens. *auth.TokenService implements it.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthConfig holds configuration for the bearer token middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Tokens  TokenValidator
	Metrics metrics.Recorder
}

// Authenticate returns a middleware that requires a valid bearer token.
// Verified claims are stored in the request context (auth.ClaimsFromContext).
// Each rejection reason maps to its own error code.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("WWW-Authenticate", `Bearer`)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
				return
			}

			claims, err := cfg.Tokens.Validate(token)
			if err != nil {
				reason, code, message := classifyTokenError(err)
				recorder.IncTokenRejected(reason)

				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, code, message)
				return
			}

			recordClaims(r, claims)
			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func classifyTokenError(err error) (reason, code, message string) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return metrics.RejectExpired, "TOKEN_EXPIRED", "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return metrics.RejectInvalidSignature, "TOKEN_INVALID_SIGNATURE", "Token signature is invalid"
	default:
		return metrics.RejectMalformed, "TOKEN_MALFORMED", "Token is malformed"
	}
}
