package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/weatherman/internal/model"
)

// mockSessionResolver はSessionResolverのモック実装。
type mockSessionResolver struct {
	resolveSessionFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, sessionID string) (*model.User, error) {
	if m.resolveSessionFn != nil {
		return m.resolveSessionFn(ctx, sessionID)
	}
	return nil, nil
}

var _ SessionResolver = (*mockSessionResolver)(nil)

func TestSessionMiddleware_NoCookie_Returns401(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionResolver{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called without a session cookie")
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Code != model.ErrCodeUnauthenticated {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthenticated)
	}
}

func TestSessionMiddleware_UnknownSession_Returns401(t *testing.T) {
	resolver := &mockSessionResolver{
		resolveSessionFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			// 存在しない・期限切れはいずれもnil
			return nil, nil
		},
	}
	mw := NewSessionMiddleware(resolver)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for an unknown session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "unknown-or-expired"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// ストア障害は「未認証」ではなく一般的なサーバーエラーとして報告する。
// 401はセッションが無い・無効な場合に限る。
func TestSessionMiddleware_ResolverError_Returns500(t *testing.T) {
	resolver := &mockSessionResolver{
		resolveSessionFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return nil, errors.New("store unavailable")
		},
	}
	mw := NewSessionMiddleware(resolver)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called when resolution fails")
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "some-session"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Code != model.ErrCodeStoreUnavailable {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeStoreUnavailable)
	}
	if strings.Contains(body.Message, "store unavailable") {
		t.Error("internal error detail should not leak to the client")
	}
}

func TestSessionMiddleware_ValidSession_InjectsUser(t *testing.T) {
	resolver := &mockSessionResolver{
		resolveSessionFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "valid-session" {
				return nil, nil
			}
			return &model.User{ID: "user-1", Email: "a@x.com", Name: "A"}, nil
		},
	}
	mw := NewSessionMiddleware(resolver)

	var gotUser *model.User
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r.Context())
		if err != nil {
			t.Errorf("UserFromContext() error = %v", err)
		}
		gotUser = user
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUser == nil || gotUser.ID != "user-1" {
		t.Errorf("user = %+v, want user-1", gotUser)
	}
}

func TestUserFromContext_Missing_ReturnsError(t *testing.T) {
	_, err := UserFromContext(context.Background())
	if err == nil {
		t.Error("expected error for a context without a user")
	}

	_, err = UserIDFromContext(context.Background())
	if err == nil {
		t.Error("expected error for a context without a user ID")
	}
}

func TestContextWithUser_RoundTrip(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "a@x.com"}
	ctx := ContextWithUser(context.Background(), user)

	got, err := UserFromContext(ctx)
	if err != nil {
		t.Fatalf("UserFromContext() error = %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("user ID = %q, want user-1", got.ID)
	}

	id, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext() error = %v", err)
	}
	if id != "user-1" {
		t.Errorf("user ID = %q, want user-1", id)
	}
}
