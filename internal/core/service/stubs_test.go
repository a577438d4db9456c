package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// In-memory user repository enforcing the same unique constraints as the store
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.User
	seq       int
	createErr error
	updateErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, domain.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return nil, domain.ErrDuplicateUsername
		}
	}
	r.seq++
	stored := cloneUser(user)
	stored.ID = fmt.Sprintf("u%d", r.seq)
	r.byID[stored.ID] = stored
	return cloneUser(stored), nil
}

func (r *stubUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *stubUserRepo) FindByActivationToken(_ context.Context, token string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ActivationToken == token })
}

func (r *stubUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	return err == nil, nil
}

func (r *stubUserRepo) Update(_ context.Context, id string, c ports.UserChanges) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if c.IfActivationToken != nil && u.ActivationToken != *c.IfActivationToken {
		return nil, domain.ErrUserNotFound
	}
	for _, other := range r.byID {
		if other.ID == id {
			continue
		}
		if c.Email != nil && other.Email == *c.Email {
			return nil, domain.ErrDuplicateEmail
		}
		if c.Username != nil && other.Username == *c.Username {
			return nil, domain.ErrDuplicateUsername
		}
	}
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.Username != nil {
		u.Username = *c.Username
	}
	if c.FirstName != nil {
		u.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		u.LastName = *c.LastName
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.Avatar != nil {
		u.Avatar = *c.Avatar
	}
	if c.IsActive != nil {
		u.IsActive = *c.IsActive
	}
	if c.Status != nil {
		u.Status = *c.Status
	}
	if c.ActivationToken != nil {
		u.ActivationToken = *c.ActivationToken
	}
	if now := time.Now().UTC(); now.After(u.ModifiedAt) {
		u.ModifiedAt = now
	}
	return cloneUser(u), nil
}

// ---------------------------------------------------------------------------
// Blacklist, mailer and blob store stubs
// ---------------------------------------------------------------------------

type stubBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Duration
	err     error
}

func newStubBlacklist() *stubBlacklist {
	return &stubBlacklist{entries: make(map[string]time.Duration)}
}

func (b *stubBlacklist) Add(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.entries[jti] = ttl
	return nil
}

func (b *stubBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	_, ok := b.entries[jti]
	return ok, nil
}

type stubMailer struct {
	mu   sync.Mutex
	sent []ports.EmailMessage
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg ports.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *stubMailer) last() ports.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type stubBlobStore struct {
	objects map[string][]byte
	putErr  error
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{objects: make(map[string][]byte)}
}

func (s *stubBlobStore) Put(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.objects[path] = buf.Bytes()
	return nil
}

func (s *stubBlobStore) Delete(_ context.Context, path string) error {
	delete(s.objects, path)
	return nil
}

func (s *stubBlobStore) URL(path string) string {
	return "http://media.test/" + path
}
