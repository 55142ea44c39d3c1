package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
)

// memUsers is an in-memory UserStore that enforces unique emails.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]entity.User
}

func newMemUsers() *memUsers { return &memUsers{rows: map[int64]entity.User{}} }

func (m *memUsers) GetByID(_ context.Context, id int64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *entity.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Email == u.Email {
			return 0, common.ErrConflict
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.rows[u.ID] = *u
	return u.ID, nil
}

func (m *memUsers) MarkEmailVerified(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	u.IsEmailVerified = true
	m.rows[id] = u
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = hash
	m.rows[id] = u
	return nil
}

func (m *memUsers) delete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
}

type sentMail struct{ to, subject, body string }

// captureMailer records messages; a non-nil err fails every send.
type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (c *captureMailer) Send(_ context.Context, to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMail{to, subject, body})
	return nil
}

// lastToken pulls the token out of the most recent verification link.
func (c *captureMailer) lastToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	body := c.sent[len(c.sent)-1].body
	i := strings.Index(body, "/verify-email/")
	if i < 0 {
		return ""
	}
	rest := body[i+len("/verify-email/"):]
	if j := strings.IndexAny(rest, " \n"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// mockUsers is a testify mock for cases that need exact call expectations.
type mockUsers struct{ mock.Mock }

func (m *mockUsers) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*entity.User)
	return u, args.Error(1)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*entity.User)
	return u, args.Error(1)
}

func (m *mockUsers) Create(ctx context.Context, u *entity.User) (int64, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUsers) MarkEmailVerified(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUsers) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

type mockRevocations struct{ mock.Mock }

func (m *mockRevocations) RevokedAt(ctx context.Context, userID int64) (time.Time, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockRevocations) Revoke(ctx context.Context, userID int64, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

var errStoreDown = errors.New("pq: connection refused")
