package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lreview/lreview/internal/auth"
	"github.com/lreview/lreview/internal/handler/dto"
	"github.com/lreview/lreview/internal/model"
	"github.com/lreview/lreview/internal/repository"
)

// UserSource resolves a token subject to a stored user. The auth gate
// rejects tokens whose subject no longer exists.
type UserSource interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// PrincipalCache fronts the UserSource lookup. A nil cache disables
// caching; misses and cache errors fall through to the UserSource.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, userID string) (*model.Principal, error)
	SetPrincipal(ctx context.Context, p *model.Principal) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Tokens *auth.TokenService
	Users  UserSource
	Cache  PrincipalCache
}

// Auth returns a middleware that authenticates requests with a
// session-purpose bearer token. On success the resolved principal is
// injected into the request context; on failure the request is
// short-circuited with a 401 and a WWW-Authenticate challenge.
// Pre-flight OPTIONS requests pass through unauthenticated.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, errResp := BearerToken(r)
			if errResp != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "bad_header"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, *errResp)
				return
			}

			userID, err := cfg.Tokens.Validate(token, auth.PurposeSession)
			if err != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", validationReason(err)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, dto.InvalidTokenError())
				return
			}

			principal, err := resolvePrincipal(r.Context(), cfg, userID)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					// Valid signature for a user that no longer resolves.
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", "unknown_user"),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w, dto.InvalidTokenError())
					return
				}
				cfg.Logger.Error("database error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, dto.InvalidTokenError())
				return
			}

			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolvePrincipal looks up the principal, cache first.
func resolvePrincipal(ctx context.Context, cfg AuthConfig, userID string) (*model.Principal, error) {
	if cfg.Cache != nil {
		if p, _ := cfg.Cache.GetPrincipal(ctx, userID); p != nil {
			return p, nil
		}
	}

	user, err := cfg.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	principal := user.ToPrincipal()

	if cfg.Cache != nil {
		_ = cfg.Cache.SetPrincipal(ctx, principal)
	}

	return principal, nil
}

// BearerToken extracts the bearer credential from the Authorization
// header. It returns a ready-to-send error envelope when the header is
// absent (token missing) or not of the form "Bearer <token>".
func BearerToken(r *http.Request) (string, *dto.ErrorResponse) {
	header := r.Header.Get("Authorization")
	if header == "" {
		resp := dto.TokenMissingError()
		return "", &resp
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		resp := dto.InvalidTokenError()
		resp.ErrorDescription = "Authorization header must be of the form: Bearer <token>."
		return "", &resp
	}

	return strings.TrimSpace(token), nil
}

// validationReason maps token service errors to log labels.
func validationReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrWrongPurpose):
		return "wrong_purpose"
	default:
		return "bad_signature"
	}
}

// writeAuthError writes a 401 response with the RFC 6750 challenge
// header so clients know the expected scheme.
func writeAuthError(w http.ResponseWriter, resp dto.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(resp)
}
