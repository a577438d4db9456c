package ports

import (
	"context"

	"github.com/99minutos/accounts/internal/core/domain"
)

// UserRepository defines persistence operations for user records.
// Implementations must enforce unique email and username through the store
// itself and report violations as domain.ErrDuplicateEmail or
// domain.ErrDuplicateUsername.
type UserRepository interface {
	// Create inserts user and returns it with the store-assigned ID.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByActivationToken(ctx context.Context, token string) (*domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// Update atomically applies changes to a single row and bumps modified_at.
	// When changes.IfActivationToken is set and the row no longer carries that
	// token, nothing is written and domain.ErrUserNotFound is returned.
	Update(ctx context.Context, id string, changes UserChanges) (*domain.User, error)
}

// UserChanges is a sparse single-row update. Nil fields are left untouched.
type UserChanges struct {
	Email           *string
	Username        *string
	FirstName       *string
	LastName        *string
	PasswordHash    *string
	Avatar          *string
	IsActive        *bool
	Status          *domain.AccountStatus
	ActivationToken *string

	// IfActivationToken guards the update on the current activation token.
	IfActivationToken *string
}
