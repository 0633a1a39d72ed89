package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lreview/lreview/internal/auth"
	"github.com/lreview/lreview/internal/handler/dto"
	"github.com/lreview/lreview/internal/service"
)

// UserHandler handles the authenticated profile endpoints.
type UserHandler struct {
	users   *service.UserService
	baseURL string
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, baseURL string, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Get handles GET /api/v1/user.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())

	user, err := h.users.Get(r.Context(), principal.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user, h.baseURL))
}

// Update handles PUT /api/v1/user.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())

	var req dto.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), principal.UserID, service.UpdateProfileInput{
		Email:    req.Email,
		Name:     req.Name,
		Birthday: req.Birthday,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_updated", "user_id", user.ID)

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user, h.baseURL))
}

// UploadAvatar handles PUT /api/v1/user/avatar (multipart field "avatar").
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing avatar file.")
		return
	}
	defer file.Close()

	ref, err := h.users.SetAvatar(r.Context(), principal.UserID, header.Filename, file)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("avatar_updated", "user_id", principal.UserID)

	writeJSON(w, http.StatusOK, dto.AvatarResponse{
		AvatarURL: dto.UploadURL(h.baseURL, ref),
	})
}

// handleServiceError maps user service errors to HTTP responses.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "Missing arguments.")
	case errors.Is(err, service.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "Existing email.")
	case errors.Is(err, service.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "Missing avatar file.")
	case errors.Is(err, service.ErrUnsupportedFile):
		writeError(w, http.StatusBadRequest, "Unsupported file type.")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found.")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "An internal error occurred.")
	}
}
