package handler

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/api/middleware"
	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

// stubAccountService implements ports.AccountService. Embedding the
// interface makes every method not overridden by a func field panic.
type stubAccountService struct {
	ports.AccountService

	registerFn      func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	activateFn      func(ctx context.Context, token string) (*domain.User, error)
	loginFn         func(ctx context.Context, email, password string) (*domain.User, *ports.TokenPair, error)
	refreshFn       func(ctx context.Context, refresh string) (string, error)
	logoutFn        func(ctx context.Context, p ports.Principal, refresh string) error
	resetFn         func(ctx context.Context, email string) error
	confirmFn       func(ctx context.Context, token, password string) error
	getProfileFn    func(ctx context.Context, username string) (*domain.User, error)
	updateProfileFn func(ctx context.Context, p ports.Principal, username string, u domain.ProfileUpdate) (*domain.User, error)
	deleteFn        func(ctx context.Context, p ports.Principal, username string) error
	avatarFn        func(ctx context.Context, p ports.Principal, up ports.AvatarUpload) (*domain.User, error)
}

func (s *stubAccountService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAccountService) Activate(ctx context.Context, token string) (*domain.User, error) {
	return s.activateFn(ctx, token)
}

func (s *stubAccountService) Login(ctx context.Context, email, password string) (*domain.User, *ports.TokenPair, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAccountService) Refresh(ctx context.Context, refresh string) (string, error) {
	return s.refreshFn(ctx, refresh)
}

func (s *stubAccountService) Logout(ctx context.Context, p ports.Principal, refresh string) error {
	return s.logoutFn(ctx, p, refresh)
}

func (s *stubAccountService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.resetFn(ctx, email)
}

func (s *stubAccountService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return s.confirmFn(ctx, token, password)
}

func (s *stubAccountService) GetProfile(ctx context.Context, username string) (*domain.User, error) {
	return s.getProfileFn(ctx, username)
}

func (s *stubAccountService) CurrentUser(_ context.Context, p ports.Principal) (*domain.User, error) {
	return &domain.User{ID: p.UserID, Username: p.Username, IsActive: true}, nil
}

func (s *stubAccountService) UpdateProfile(ctx context.Context, p ports.Principal, username string, u domain.ProfileUpdate) (*domain.User, error) {
	return s.updateProfileFn(ctx, p, username, u)
}

func (s *stubAccountService) DeleteAccount(ctx context.Context, p ports.Principal, username string) error {
	return s.deleteFn(ctx, p, username)
}

func (s *stubAccountService) ReplaceAvatar(ctx context.Context, p ports.Principal, up ports.AvatarUpload) (*domain.User, error) {
	return s.avatarFn(ctx, p, up)
}

func (s *stubAccountService) Present(u *domain.User) ports.PublicUser {
	return ports.PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Avatar: u.Avatar}
}

type stubAuthenticator struct{}

// Authenticate accepts "token-<id>" as the access token of user <id>.
func (stubAuthenticator) Authenticate(_ context.Context, token string) (*ports.Principal, error) {
	id, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return nil, errors.New("bad token")
	}
	return &ports.Principal{UserID: id, Username: id}, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// asUser runs h behind the Auth middleware as user id.
func asUser(c echo.Context, id string, h echo.HandlerFunc) error {
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer token-"+id)
	return middleware.Auth(stubAuthenticator{})(h)(c)
}
