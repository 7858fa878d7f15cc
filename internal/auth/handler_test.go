package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockroom/stockroom/internal/auth"
	"github.com/stockroom/stockroom/internal/shared"
	_ "github.com/stockroom/stockroom/testing"
)

type stubRepo struct {
	user    *auth.User
	touched string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	s.touched = userID
	return nil
}

type auditSpy struct {
	actions []string
}

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager, *auditSpy) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	spy := &auditSpy{}
	handler := auth.NewHandler(nil, auth.NewService(repo), sessionManager, spy)
	return handler, sessionManager, spy
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{ID: "7", Email: "user@test.local", Name: "Test", Role: shared.RoleManager, PasswordHash: string(hashed), IsActive: true}
}

func postLogin(h *auth.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.HandleLoginForTest(res, req)
	return res
}

func TestLoginSuccessCreatesSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	handler, sessions, spy := newAuthHandler(t, repo)

	res := postLogin(handler, `{"email":"USER@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		User        shared.Identity `json:"user"`
		Permissions []string        `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "7", body.User.UserID)
	require.Contains(t, body.Permissions, shared.PermReportsExport)
	require.Equal(t, "7", repo.touched)
	require.Equal(t, []string{shared.AuditLogin}, spy.actions)

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookies[0])
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, shared.RoleManager, sess.Identity.Role)
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, _, spy := newAuthHandler(t, &stubRepo{user: activeUser(t)})

	res := postLogin(handler, `{"email":"user@test.local","password":"wrongpass"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "invalid email or password")
	require.Empty(t, res.Result().Cookies())
	require.Empty(t, spy.actions)

	res = postLogin(handler, `{"email":"nobody@test.local","password":"whatever1"}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t)
	user.IsActive = false
	handler, _, _ := newAuthHandler(t, &stubRepo{user: user})

	res := postLogin(handler, `{"email":"user@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestLoginValidation(t *testing.T) {
	handler, _, _ := newAuthHandler(t, &stubRepo{})

	res := postLogin(handler, `{"email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))

	var problem struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &problem))
	require.Equal(t, "email", problem.Fields["Email"])
	require.Equal(t, "min", problem.Fields["Password"])

	res = postLogin(handler, `{"email":`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	handler, sessions, spy := newAuthHandler(t, &stubRepo{})
	ctx := context.Background()
	sess, err := sessions.Create(ctx, httptest.NewRecorder(), shared.Identity{UserID: "7", Role: shared.RoleViewer})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sess.ID})
	res := httptest.NewRecorder()
	handler.HandleLogoutForTest(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, []string{shared.AuditLogout}, spy.actions)

	_, err = sessions.Get(ctx, sess.ID)
	require.ErrorIs(t, err, shared.ErrNoSession)

	// Logging out twice is harmless.
	res = httptest.NewRecorder()
	handler.HandleLogoutForTest(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
}

func TestMeRequiresIdentity(t *testing.T) {
	handler, _, _ := newAuthHandler(t, &stubRepo{})

	res := httptest.NewRecorder()
	handler.HandleMeForTest(res, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: "7", Role: shared.RoleViewer}))
	res = httptest.NewRecorder()
	handler.HandleMeForTest(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), shared.PermReportsView)
}
