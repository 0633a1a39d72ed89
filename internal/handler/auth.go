package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lreview/lreview/internal/auth"
	"github.com/lreview/lreview/internal/handler/dto"
	"github.com/lreview/lreview/internal/middleware"
	"github.com/lreview/lreview/internal/service"
)

// AuthHandler handles registration, token issuance and password flows.
type AuthHandler struct {
	users  *service.UserService
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users *service.UserService, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Register handles POST /api/v1/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Birthday: req.Birthday,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_registered",
		"user_id", user.ID,
		"username", user.Username,
	)

	writeJSON(w, http.StatusCreated, dto.MessageResponse{Message: "Created."})
}

// Token handles POST /api/v1/oauth/token (password grant).
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if !strings.EqualFold(req.GrantType, "password") {
		writeError(w, http.StatusBadRequest, "The grant type must be password.")
		return
	}

	session, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "Either the username or password was invalid.")
			return
		}
		h.internalError(w, err)
		return
	}

	// Credentials in the response body must never be cached.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	writeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   session.ExpiresIn,
	})
}

// Forget handles POST /api/v1/forget.
func (h *AuthHandler) Forget(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.users.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Reset mail sent."})
}

// Reset handles PUT /api/v1/reset. The bearer credential here is the
// reset-purpose token from the mail sent by Forget; a session token is
// rejected, which keeps the two purposes isolated.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	token, errResp := middleware.BearerToken(r)
	if errResp != nil {
		writeAuthFailure(w, *errResp)
		return
	}

	userID, err := h.tokens.Validate(token, auth.PurposeReset)
	if err != nil {
		writeAuthFailure(w, dto.InvalidTokenError())
		return
	}

	var req dto.ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.users.ResetPassword(r.Context(), userID, req.Password); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeAuthFailure(w, dto.InvalidTokenError())
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("password_reset", "user_id", userID)

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Password updated."})
}

// handleServiceError maps user service errors to HTTP responses.
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "Missing arguments.")
	case errors.Is(err, service.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Existing email.")
	case errors.Is(err, service.ErrDuplicateUsername):
		writeError(w, http.StatusBadRequest, "Existing user.")
	case errors.Is(err, service.ErrEmailNotFound):
		writeError(w, http.StatusBadRequest, "Email not registered.")
	default:
		h.internalError(w, err)
	}
}

// internalError logs the cause and returns a generic 500.
func (h *AuthHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("internal_error", "error", err)
	writeError(w, http.StatusInternalServerError, "An internal error occurred.")
}

// writeAuthFailure writes a 401 with the bearer challenge header.
func writeAuthFailure(w http.ResponseWriter, resp dto.ErrorResponse) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, resp)
}
