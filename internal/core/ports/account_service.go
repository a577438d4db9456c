package ports

import (
	"context"
	"io"

	"github.com/99minutos/accounts/internal/core/domain"
)

// RegisterInput carries the self-registration form.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// TokenPair is the credential set handed out on login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID   string
	Username string
}

// PublicUser is the externally visible projection of a user. It is rendered
// in API responses and embedded as the `user` claim of access tokens.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar"`
}

// AvatarUpload is a raw image submitted for the caller's avatar.
type AvatarUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// AccountService defines the account use cases exposed over HTTP.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Activate(ctx context.Context, token string) (*domain.User, error)
	ResendActivation(ctx context.Context, email string) error

	Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, principal Principal, refreshToken string) error

	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error

	GetProfile(ctx context.Context, username string) (*domain.User, error)
	CurrentUser(ctx context.Context, principal Principal) (*domain.User, error)
	UpdateProfile(ctx context.Context, principal Principal, username string, update domain.ProfileUpdate) (*domain.User, error)
	DeleteAccount(ctx context.Context, principal Principal, username string) error
	ReplaceAvatar(ctx context.Context, principal Principal, upload AvatarUpload) (*domain.User, error)

	Present(user *domain.User) PublicUser
}

// TokenAuthenticator validates bearer access tokens.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*Principal, error)
}
