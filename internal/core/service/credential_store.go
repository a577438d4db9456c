package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

const (
	activationTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	activationTokenLength   = 128

	// maxUsernameAttempts bounds the insert retries after a username collision
	// reported by the store's unique index.
	maxUsernameAttempts = 32
	maxNameLength       = 150
)

// CredentialStore owns user records: validation, hashing, username
// derivation and single-row lifecycle updates.
type CredentialStore struct {
	repo     ports.UserRepository
	validate *validator.Validate
	hashCost int
	log      zerolog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewCredentialStore(repo ports.UserRepository, log zerolog.Logger) *CredentialStore {
	return &CredentialStore{
		repo:     repo,
		validate: validator.New(),
		hashCost: bcrypt.DefaultCost,
		log:      log,
	}
}

// Create validates and persists a new, not yet activated user. The username
// is derived from the email and made unique with a numeric suffix; the
// store's unique index decides races, in which case the suffix loop runs again.
func (s *CredentialStore) Create(ctx context.Context, email, firstName, lastName, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validateNames(&firstName, &lastName); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(password, email, firstName, lastName); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, err := newActivationToken()
	if err != nil {
		return nil, err
	}

	base := domain.UsernameBase(email)
	if base == "" {
		base = "user"
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username, err := s.nextFreeUsername(ctx, base)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		created, err := s.repo.Create(ctx, &domain.User{
			Email:           email,
			Username:        username,
			FirstName:       firstName,
			LastName:        lastName,
			PasswordHash:    string(hash),
			IsActive:        false,
			Status:          domain.StatusActive,
			ActivationToken: token,
			CreatedAt:       now,
			ModifiedAt:      now,
		})
		if errors.Is(err, domain.ErrDuplicateUsername) {
			s.log.Debug().Str("username", username).Int("attempt", attempt).Msg("username taken concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	return nil, fmt.Errorf("create user %q: %w", base, domain.ErrDuplicateUsername)
}

// nextFreeUsername returns base, base_1, base_2, ... whichever is free first.
func (s *CredentialStore) nextFreeUsername(ctx context.Context, base string) (string, error) {
	username := base
	for count := 1; ; count++ {
		exists, err := s.repo.UsernameExists(ctx, username)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !exists {
			return username, nil
		}
		username = fmt.Sprintf("%s_%d", base, count)
	}
}

// VerifyPassword reports whether plain matches the user's hash. A nil user
// is compared against a throwaway hash so unknown accounts cost the same.
func (s *CredentialStore) VerifyPassword(user *domain.User, plain string) bool {
	if user == nil || user.PasswordHash == "" {
		s.dummyOnce.Do(func() {
			s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), s.hashCost)
		})
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plain)) == nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.FindByEmail(ctx, normalizeEmail(email))
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.FindByUsername(ctx, username)
}

func (s *CredentialStore) FindByActivationToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByActivationToken(ctx, token)
}

// UpdateProfile applies the self-service editable fields.
func (s *CredentialStore) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error) {
	if upd.Empty() {
		return s.repo.FindByID(ctx, id)
	}

	var changes ports.UserChanges
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if err := s.validateEmail(email); err != nil {
			return nil, err
		}
		changes.Email = &email
	}
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if !domain.ValidUsername(username) {
			return nil, fmt.Errorf("%w: username may contain only letters, digits and @/./+/-/_ characters", domain.ErrValidation)
		}
		changes.Username = &username
	}
	if upd.FirstName != nil || upd.LastName != nil {
		var first, last string
		if upd.FirstName != nil {
			first = *upd.FirstName
		}
		if upd.LastName != nil {
			last = *upd.LastName
		}
		if err := s.validateNames(&first, &last); err != nil {
			return nil, err
		}
		if upd.FirstName != nil {
			changes.FirstName = &first
		}
		if upd.LastName != nil {
			changes.LastName = &last
		}
	}

	return s.repo.Update(ctx, id, changes)
}

// Activate marks the account active and rotates its activation token. The
// write only applies while the row still carries user.ActivationToken;
// otherwise the token was consumed concurrently and domain.ErrInvalidToken
// is returned.
func (s *CredentialStore) Activate(ctx context.Context, user *domain.User) (*domain.User, error) {
	active := true
	return s.consumeToken(ctx, user, ports.UserChanges{IsActive: &active})
}

// SetPassword validates and stores a new password, rotating the activation
// token so the reset link that led here cannot be used again. Like Activate
// it is guarded on user.ActivationToken.
func (s *CredentialStore) SetPassword(ctx context.Context, user *domain.User, password string) (*domain.User, error) {
	if err := domain.ValidatePassword(password, user.Email, user.FirstName, user.LastName); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)
	return s.consumeToken(ctx, user, ports.UserChanges{PasswordHash: &hashed})
}

// consumeToken applies changes together with a fresh activation token, on
// the condition that the stored token is still user.ActivationToken.
func (s *CredentialStore) consumeToken(ctx context.Context, user *domain.User, changes ports.UserChanges) (*domain.User, error) {
	token, err := newActivationToken()
	if err != nil {
		return nil, err
	}
	current := user.ActivationToken
	changes.ActivationToken = &token
	changes.IfActivationToken = &current

	updated, err := s.repo.Update(ctx, user.ID, changes)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	return updated, err
}

func (s *CredentialStore) SetAvatar(ctx context.Context, id, path string) (*domain.User, error) {
	return s.repo.Update(ctx, id, ports.UserChanges{Avatar: &path})
}

// SoftDelete retains the record but marks it DELETED and inactive. Deleting
// an already deleted account is a no-op.
func (s *CredentialStore) SoftDelete(ctx context.Context, id string) error {
	status := domain.StatusDeleted
	inactive := false
	_, err := s.repo.Update(ctx, id, ports.UserChanges{Status: &status, IsActive: &inactive})
	return err
}

func (s *CredentialStore) validateEmail(email string) error {
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return fmt.Errorf("%w: enter a valid email address", domain.ErrValidation)
	}
	return nil
}

func (s *CredentialStore) validateNames(first, last *string) error {
	*first = strings.TrimSpace(*first)
	*last = strings.TrimSpace(*last)
	if err := s.validate.Var(*first, fmt.Sprintf("max=%d", maxNameLength)); err != nil {
		return fmt.Errorf("%w: first_name is too long", domain.ErrValidation)
	}
	if err := s.validate.Var(*last, fmt.Sprintf("max=%d", maxNameLength)); err != nil {
		return fmt.Errorf("%w: last_name is too long", domain.ErrValidation)
	}
	return nil
}

// normalizeEmail trims the address and lower-cases its domain part.
func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + strings.ToLower(email[at:])
}

func newActivationToken() (string, error) {
	token, err := gonanoid.Generate(activationTokenAlphabet, activationTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate activation token: %w", err)
	}
	return token, nil
}
