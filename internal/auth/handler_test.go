package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kasira-pos/kasira-pos/internal/shared"
)

type fakeRepository struct {
	users    map[string]*User
	sessions map[string]int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:    make(map[string]*User),
		sessions: make(map[string]int64),
	}
}

func (f *fakeRepository) addUser(id int64, email, password, role string, active bool) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	f.users[email] = &User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     active,
	}
}

func (f *fakeRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	f.sessions[id] = userID
	return nil
}

func (f *fakeRepository) DeleteSession(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

type loginFixture struct {
	repo    *fakeRepository
	manager *shared.SessionManager
	handler *Handler
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := shared.NewSessionManager(client, "kasira_session", time.Hour, false)
	repo := newFakeRepository()
	handler := NewHandler(slog.Default(), NewService(repo), manager)
	return &loginFixture{repo: repo, manager: manager, handler: handler}
}

// serve runs the request through the session middleware the router installs,
// so handlers see a loaded session and commits happen on write.
func (f *loginFixture) serve(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()

	sess, err := f.manager.Load(req.Context(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", f.handler.handleLogin)
	mux.HandleFunc("/logout", f.handler.handleLogout)
	mux.HandleFunc("/me", f.handler.handleMe)

	inner := httptest.NewRecorder()
	mux.ServeHTTP(inner, req.WithContext(ctx))
	require.NoError(t, f.manager.Commit(ctx, rec, sess))

	for k, vals := range inner.Header() {
		for _, v := range vals {
			rec.Header().Add(k, v)
		}
	}
	rec.Code = inner.Code
	_, _ = rec.Body.Write(inner.Body.Bytes())
	return rec
}

func TestLoginSuccess(t *testing.T) {
	f := newLoginFixture(t)
	f.repo.addUser(1, "admin@kasira.local", "admin12345", "admin", true)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"admin@kasira.local","password":"admin12345"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.serve(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "admin", resp.Role)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == "kasira_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)
	assert.Len(t, f.repo.sessions, 1)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newLoginFixture(t)
	f.repo.addUser(1, "admin@kasira.local", "admin12345", "admin", true)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"admin@kasira.local","password":"wrongwrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.serve(t, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.repo.sessions)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newLoginFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"ghost@kasira.local","password":"whatever12"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.serve(t, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	f := newLoginFixture(t)
	f.repo.addUser(2, "gone@kasira.local", "gonegone12", "cashier", false)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"gone@kasira.local","password":"gonegone12"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.serve(t, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	f := newLoginFixture(t)

	for _, body := range []string{
		`{"email":"not-an-email","password":"longenough"}`,
		`{"email":"a@b.co","password":"short"}`,
		`{`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := f.serve(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, fmt.Sprintf("body %s", body))
	}
}

func TestMeRequiresSessionUser(t *testing.T) {
	f := newLoginFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := f.serve(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newLoginFixture(t)
	f.repo.addUser(1, "admin@kasira.local", "admin12345", "admin", true)

	login := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"admin@kasira.local","password":"admin12345"}`))
	login.Header.Set("Content-Type", "application/json")
	loginRec := f.serve(t, login)
	require.Equal(t, http.StatusOK, loginRec.Code)
	require.Len(t, f.repo.sessions, 1)

	logout := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, c := range loginRec.Result().Cookies() {
		logout.AddCookie(c)
	}
	logoutRec := f.serve(t, logout)
	require.Equal(t, http.StatusOK, logoutRec.Code)
	assert.Empty(t, f.repo.sessions)
}
