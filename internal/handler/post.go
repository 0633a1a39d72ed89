package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lreview/lreview/internal/auth"
	"github.com/lreview/lreview/internal/handler/dto"
	"github.com/lreview/lreview/internal/service"
)

// PostHandler handles journal entry endpoints. Every route here runs
// behind the auth middleware; ownership of the target post is enforced
// by the service before any read or mutation.
type PostHandler struct {
	posts   *service.PostService
	baseURL string
	logger  *slog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts *service.PostService, baseURL string, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:   posts,
		baseURL: baseURL,
		logger:  logger,
	}
}

// List handles GET /api/v1/user/posts.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	result, err := h.posts.List(r.Context(), principal.UserID, page)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := dto.ToPostCollectionResponse(
		result.Posts,
		principal.Username,
		h.baseURL,
		result.Page,
		result.Pages(),
		result.Total,
	)
	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/user/posts. The body is either JSON or,
// when images ride along, multipart/form-data with the same fields as
// form values plus an "images[]" file field.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())

	input, uploads, err := parsePostRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	post, err := h.posts.Create(r.Context(), principal.UserID, input, uploads)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("post_created",
		"post_id", post.ID,
		"owner_id", principal.UserID,
		"image_count", len(post.Images),
	)

	w.Header().Set("Location", h.baseURL+"/api/v1/user/post/"+post.ID)
	writeJSON(w, http.StatusCreated, dto.ToPostResponse(post, principal.Username, h.baseURL))
}

// Get handles GET /api/v1/user/post/{id}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	post, err := h.posts.Get(r.Context(), principal.UserID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPostResponse(post, principal.Username, h.baseURL))
}

// Update handles PUT /api/v1/user/post/{id}.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req dto.PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	post, err := h.posts.Update(r.Context(), principal.UserID, id, postInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("post_updated", "post_id", post.ID, "owner_id", principal.UserID)

	writeJSON(w, http.StatusOK, dto.ToPostResponse(post, principal.Username, h.baseURL))
}

// Delete handles DELETE /api/v1/user/post/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.MustPrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.posts.Delete(r.Context(), principal.UserID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("post_deleted", "post_id", id, "owner_id", principal.UserID)

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps post service errors to HTTP responses. A
// foreign post yields a generic forbidden body so the response leaks
// nothing beyond the denial itself.
func (h *PostHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "Post not found.")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, "Forbidden.")
	case errors.Is(err, service.ErrEmptyBody):
		writeError(w, http.StatusBadRequest, "The post body was empty or invalid.")
	case errors.Is(err, service.ErrUnsupportedFile):
		writeError(w, http.StatusBadRequest, "Unsupported file type.")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "An internal error occurred.")
	}
}

// parsePostRequest decodes a create request from JSON or multipart form.
func parsePostRequest(r *http.Request) (service.PostInput, []service.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var req dto.PostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return service.PostInput{}, nil, err
		}
		return postInput(req), nil, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return service.PostInput{}, nil, err
	}

	input := service.PostInput{
		Title:         r.FormValue("title"),
		Body:          r.FormValue("body"),
		HappenAge:     formInt(r, "happen_age"),
		Introspection: r.FormValue("introspection"),
		Emotion:       r.FormValue("emotion"),
		Score:         formInt(r, "score"),
	}

	var uploads []service.Upload
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images[]"] {
			file, err := header.Open()
			if err != nil {
				return service.PostInput{}, nil, err
			}
			uploads = append(uploads, service.Upload{
				Filename: header.Filename,
				File:     file,
			})
		}
	}

	return input, uploads, nil
}

// postInput maps the wire request to the service input.
func postInput(req dto.PostRequest) service.PostInput {
	return service.PostInput{
		Title:         req.Title,
		Body:          req.Body,
		HappenAge:     req.HappenAge,
		Introspection: req.Introspection,
		Emotion:       req.Emotion,
		Score:         req.Score,
	}
}

// formInt reads an integer form value, defaulting to zero.
func formInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.FormValue(key))
	return v
}
