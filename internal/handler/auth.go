package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/middleware"
	"github.com/penshort/userauth/internal/model"
	"github.com/penshort/userauth/internal/service"
)

// LoginService is the subset of *service.UserService used by AuthHandler.
type LoginService interface {
	Login(ctx context.Context, req model.TokenRequest) (*model.TokenResponse, error)
}

// AuthHandler handles token issuance and introspection.
type AuthHandler struct {
	svc    LoginService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc LoginService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// MeResponse describes the identity carried by a verified token.
type MeResponse struct {
	Subject   string    `json:"sub"`
	UserID    int32     `json:"user_id"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req model.TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeValidationError(w, vErr)
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInactiveUser):
			h.logger.Warn("login_failed",
				"reason", err.Error(),
				"request_id", requestID(r),
			)
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		default:
			h.logger.Error("internal_error",
				"error", err,
				"request_id", requestID(r),
			)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /auth/me. It must run behind middleware.Authenticate.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Subject:   claims.Subject,
		UserID:    claims.UserID,
		Role:      claims.Role,
		IssuedAt:  time.Unix(int64(claims.IssuedAt), 0).UTC(),
		ExpiresAt: claims.ExpiresAtTime(),
	})
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
