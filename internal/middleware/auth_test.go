package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lreview/lreview/internal/auth"
	"github.com/lreview/lreview/internal/handler/dto"
	"github.com/lreview/lreview/internal/model"
	"github.com/lreview/lreview/internal/repository"
)

type fakeUserSource struct {
	users map[string]*model.User
	calls int
}

func (f *fakeUserSource) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.calls++
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

type fakePrincipalCache struct {
	entries map[string]*model.Principal
	sets    int
}

func (f *fakePrincipalCache) GetPrincipal(_ context.Context, userID string) (*model.Principal, error) {
	return f.entries[userID], nil
}

func (f *fakePrincipalCache) SetPrincipal(_ context.Context, p *model.Principal) error {
	f.sets++
	f.entries[p.UserID] = p
	return nil
}

func newAuthTestConfig(users *fakeUserSource, cache PrincipalCache) (AuthConfig, *auth.TokenService) {
	tokens := auth.NewTokenService("test-secret", 30*24*time.Hour, time.Hour)
	return AuthConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tokens: tokens,
		Users:  users,
		Cache:  cache,
	}, tokens
}

// echoHandler records the principal the middleware injected.
func echoHandler(got **model.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := auth.PrincipalFromContext(r.Context()); p != nil {
			*got = p
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestAuth_Success(t *testing.T) {
	t.Parallel()

	users := &fakeUserSource{users: map[string]*model.User{
		"u1": {ID: "u1", Username: "keeper", Email: "keeper@example.com"},
	}}
	cfg, tokens := newAuthTestConfig(users, nil)

	token, err := tokens.Issue("u1", auth.PurposeSession)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var got *model.Principal
	handler := Auth(cfg)(echoHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil {
		t.Fatal("principal was not injected into the context")
	}
	if got.UserID != "u1" || got.Username != "keeper" {
		t.Errorf("unexpected principal: %+v", got)
	}
}

func TestAuth_OptionsPassthrough(t *testing.T) {
	t.Parallel()

	cfg, _ := newAuthTestConfig(&fakeUserSource{}, nil)

	called := false
	handler := Auth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	// Pre-flight requests carry no Authorization header.
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/user", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("OPTIONS request should bypass authentication")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	t.Parallel()

	cfg, _ := newAuthTestConfig(&fakeUserSource{}, nil)
	handler := Auth(cfg)(echoHandler(new(*model.Principal)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("expected WWW-Authenticate: Bearer, got %q", got)
	}

	resp := decodeError(t, rec)
	if resp.StatusCode != dto.SubCodeTokenMissing {
		t.Errorf("expected sub-code %d, got %d", dto.SubCodeTokenMissing, resp.StatusCode)
	}
	if resp.Message != "Token missing." {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	t.Parallel()

	cfg, _ := newAuthTestConfig(&fakeUserSource{}, nil)
	handler := Auth(cfg)(echoHandler(new(*model.Principal)))

	headers := []string{
		"token-without-scheme",
		"Basic dXNlcjpwYXNz",
		"Bearer ",
	}

	for _, header := range headers {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}

		resp := decodeError(t, rec)
		if resp.StatusCode != dto.SubCodeInvalidToken {
			t.Errorf("header %q: expected sub-code %d, got %d", header, dto.SubCodeInvalidToken, resp.StatusCode)
		}
		if resp.Error != "invalid_token" {
			t.Errorf("header %q: expected error invalid_token, got %q", header, resp.Error)
		}
	}
}

func TestAuth_BadToken(t *testing.T) {
	t.Parallel()

	cfg, tokens := newAuthTestConfig(&fakeUserSource{}, nil)
	handler := Auth(cfg)(echoHandler(new(*model.Principal)))

	// A reset token must not open a session.
	resetToken, err := tokens.Issue("u1", auth.PurposeReset)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	for _, token := range []string{"garbage", resetToken} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		resp := decodeError(t, rec)
		if resp.Error != "invalid_token" || resp.StatusCode != dto.SubCodeInvalidToken {
			t.Errorf("unexpected envelope: %+v", resp)
		}
	}
}

func TestAuth_UnknownUser(t *testing.T) {
	t.Parallel()

	cfg, tokens := newAuthTestConfig(&fakeUserSource{users: map[string]*model.User{}}, nil)
	handler := Auth(cfg)(echoHandler(new(*model.Principal)))

	// Signed for a subject that no longer exists.
	token, err := tokens.Issue("gone", auth.PurposeSession)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error != "invalid_token" {
		t.Errorf("expected invalid_token, got %q", resp.Error)
	}
}

func TestAuth_CachePopulatedOnMiss(t *testing.T) {
	t.Parallel()

	users := &fakeUserSource{users: map[string]*model.User{
		"u1": {ID: "u1", Username: "keeper", Email: "keeper@example.com"},
	}}
	cache := &fakePrincipalCache{entries: map[string]*model.Principal{}}
	cfg, tokens := newAuthTestConfig(users, cache)

	token, err := tokens.Issue("u1", auth.PurposeSession)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	handler := Auth(cfg)(echoHandler(new(*model.Principal)))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	// First request misses and populates; the rest hit the cache.
	if users.calls != 1 {
		t.Errorf("expected a single user lookup, got %d", users.calls)
	}
	if cache.sets != 1 {
		t.Errorf("expected a single cache fill, got %d", cache.sets)
	}
}

func TestAuth_CacheHitSkipsUserSource(t *testing.T) {
	t.Parallel()

	users := &fakeUserSource{users: map[string]*model.User{}}
	cache := &fakePrincipalCache{entries: map[string]*model.Principal{
		"u1": {UserID: "u1", Username: "keeper", Email: "keeper@example.com"},
	}}
	cfg, tokens := newAuthTestConfig(users, cache)

	token, err := tokens.Issue("u1", auth.PurposeSession)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var got *model.Principal
	handler := Auth(cfg)(echoHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if users.calls != 0 {
		t.Errorf("cache hit should skip the user source, got %d lookups", users.calls)
	}
	if got == nil || got.Username != "keeper" {
		t.Errorf("unexpected principal: %+v", got)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")

	token, errResp := BearerToken(req)
	if errResp != nil {
		t.Fatalf("unexpected error: %+v", errResp)
	}
	if token != "abc.def.ghi" {
		t.Errorf("expected abc.def.ghi, got %q", token)
	}

	// Scheme comparison is case-insensitive per RFC 7235.
	req.Header.Set("Authorization", "bearer abc.def.ghi")
	if _, errResp := BearerToken(req); errResp != nil {
		t.Errorf("lowercase scheme should be accepted: %+v", errResp)
	}
}
