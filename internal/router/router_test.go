package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/note"
	noteentity "github.com/ovaphlow/pitchfork/service-notes-go/internal/note/entity"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/revocation"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

// users is a tiny in-memory store covering auth.UserStore and user.Store.
type users struct {
	mu   sync.Mutex
	next int64
	rows map[int64]entity.User
}

func (s *users) GetByID(_ context.Context, id int64) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (s *users) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *users) Create(_ context.Context, u *entity.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	u.ID = s.next
	s.rows[u.ID] = *u
	return u.ID, nil
}

func (s *users) Update(_ context.Context, u *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[u.ID] = *u
	return nil
}

func (s *users) MarkEmailVerified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.rows[id]
	u.IsEmailVerified = true
	s.rows[id] = u
	return nil
}

func (s *users) UpdatePassword(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.rows[id]
	u.PasswordHash = hash
	s.rows[id] = u
	return nil
}

func (s *users) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

type notes struct {
	mu   sync.Mutex
	next int64
	rows map[int64]noteentity.Note
}

func (s *notes) GetByID(_ context.Context, id int64) (*noteentity.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &n, nil
}

func (s *notes) ListByOwner(_ context.Context, owner int64, _, _ int) ([]noteentity.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []noteentity.Note{}
	for _, n := range s.rows {
		if n.OwnerID == owner {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *notes) Create(_ context.Context, n *noteentity.Note) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	n.ID = s.next
	s.rows[n.ID] = *n
	return n.ID, nil
}

func (s *notes) Update(_ context.Context, n *noteentity.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[n.ID] = *n
	return nil
}

func (s *notes) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, string, string, string) error { return nil }

func newTestRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()
	logger := zap.NewNop().Sugar()
	cfg := auth.Config{
		Secret:          []byte("0123456789abcdef0123456789abcdef"),
		SessionTTL:      time.Hour,
		VerificationTTL: time.Hour,
		BcryptCost:      bcrypt.MinCost,
		CookieName:      "access_token",
	}
	us := &users{rows: map[int64]entity.User{}}
	ns := &notes{rows: map[int64]noteentity.Note{}}
	rev := revocation.NewMemoryStore()
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewTokenService(cfg.Secret)
	authSvc := auth.NewService(cfg, us, hasher, tokens, nopMailer{}, logger, auth.WithRevocations(rev))

	return RegisterRoutes(Deps{
		Config:     Config{CORSOrigins: []string{"https://app.notes.test"}, AuthRatePerMinute: 600, AuthBurst: 100},
		Logger:     logger,
		DB:         db,
		Resolver:   auth.NewResolver(tokens, us, rev),
		CookieName: cfg.CookieName,
		Auth:       auth.NewHandler(authSvc, cfg, logger),
		Users:      user.NewHandler(user.NewUserService(us, hasher, authSvc, logger), logger),
		Notes:      note.NewHandler(note.NewService(ns, logger), true, logger),
	})
}

func send(h http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:5555"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, email string) *http.Cookie {
	t.Helper()
	rec := send(h, http.MethodPost, "/auth/register", `{"email":"`+email+`","name":"n","password":"pw1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = send(h, http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"pw1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "access_token" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestHealth(t *testing.T) {
	rec := send(newTestRouter(t, pinger{}), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, rec.Body.String())

	rec = send(newTestRouter(t, pinger{err: errors.New("down")}), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	h := newTestRouter(t, pinger{})
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/users/me"},
		{http.MethodGet, "/users/id/1"},
		{http.MethodPut, "/users/1"},
		{http.MethodDelete, "/users/1"},
		{http.MethodGet, "/notes/user/1"},
		{http.MethodGet, "/notes/1"},
		{http.MethodPost, "/notes"},
		{http.MethodPut, "/notes/1"},
		{http.MethodDelete, "/notes/1"},
		{http.MethodPost, "/auth/logout-all"},
	} {
		rec := send(h, r.method, r.path, `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
	}
}

func TestNotesAcrossUsers(t *testing.T) {
	h := newTestRouter(t, pinger{})
	alice := login(t, h, "alice@x.com")
	bob := login(t, h, "bob@x.com")

	rec := send(h, http.MethodPost, "/notes", `{"title":"t","content":"c","owner_id":2}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"owner_id":1`)

	assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/notes/1", "", alice).Code)
	assert.Equal(t, http.StatusNotFound, send(h, http.MethodGet, "/notes/1", "", bob).Code)
	assert.Equal(t, http.StatusNotFound, send(h, http.MethodPut, "/notes/1", `{"title":"x"}`, bob).Code)
	assert.Equal(t, http.StatusNotFound, send(h, http.MethodDelete, "/notes/1", "", bob).Code)
	assert.Equal(t, http.StatusOK, send(h, http.MethodDelete, "/notes/1", "", alice).Code)
}

func TestLogoutAllRevokesCookie(t *testing.T) {
	h := newTestRouter(t, pinger{})
	alice := login(t, h, "alice@x.com")

	require.Equal(t, http.StatusOK, send(h, http.MethodGet, "/users/me", "", alice).Code)
	require.Equal(t, http.StatusOK, send(h, http.MethodPost, "/auth/logout-all", "", alice).Code)
	assert.Equal(t, http.StatusUnauthorized, send(h, http.MethodGet, "/users/me", "", alice).Code)
}

func TestMiddlewareHeaders(t *testing.T) {
	h := newTestRouter(t, pinger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.notes.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.notes.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 27)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.test")
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, pinger{})
	req := httptest.NewRequest(http.MethodOptions, "/notes", nil)
	req.Header.Set("Origin", "https://app.notes.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}
