package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		registerFn: func(_ context.Context, in ports.RegisterInput) (*domain.User, error) {
			if in.Email != "jane.doe@x.com" || in.FirstName != "Jane" || in.Password != "Str0ngP@ss!" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: "u1", Username: "janedoe", Email: in.Email, FirstName: in.FirstName}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/register",
		`{"email":"jane.doe@x.com","first_name":"Jane","last_name":"Doe","password":"Str0ngP@ss!"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ports.PublicUser
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Username != "janedoe" || resp.ID != "u1" {
		t.Fatalf("unexpected user payload: %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks password material: %s", rec.Body.String())
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{})

	c, _ := jsonContext(e, http.MethodPost, "/register", "not-json")
	err := h.Register(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestAuthHandler_Register_MissingFields(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{})

	c, _ := jsonContext(e, http.MethodPost, "/register", `{"email":"not-an-email"}`)
	err := h.Register(c)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthHandler_Register_MailFailurePropagates(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		registerFn: func(context.Context, ports.RegisterInput) (*domain.User, error) {
			return &domain.User{ID: "u1"}, domain.ErrTransportFailure
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/register", `{"email":"a@x.com","password":"Str0ngP@ss!"}`)
	if err := h.Register(c); !errors.Is(err, domain.ErrTransportFailure) {
		t.Fatalf("expected ErrTransportFailure, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		loginFn: func(_ context.Context, email, password string) (*domain.User, *ports.TokenPair, error) {
			if email != "jane.doe@x.com" || password != "secret" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return &domain.User{ID: "u1", Username: "janedoe"}, &ports.TokenPair{Access: "a", Refresh: "r"}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/login", `{"email":"jane.doe@x.com","password":"secret"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Access != "a" || resp.Refresh != "r" || resp.User.Username != "janedoe" {
		t.Fatalf("unexpected login payload: %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		loginFn: func(context.Context, string, string) (*domain.User, *ports.TokenPair, error) {
			return nil, nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/login", `{"email":"a@x.com","password":"bad"}`)
	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		refreshFn: func(_ context.Context, refresh string) (string, error) {
			if refresh != "r1" {
				return "", domain.ErrTokenInvalid
			}
			return "a2", nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/refresh", `{"refresh":"r1"}`)
	if err := h.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp refreshResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Access != "a2" {
		t.Fatalf("expected access a2, got %+v", resp)
	}

	c, _ = jsonContext(e, http.MethodPost, "/refresh", `{"refresh":"other"}`)
	if err := h.Refresh(c); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthHandler_Logout_OtherUsersToken(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		logoutFn: func(_ context.Context, p ports.Principal, refresh string) error {
			if p.UserID != "u1" || refresh != "r-of-u2" {
				t.Fatalf("unexpected args: %+v %s", p, refresh)
			}
			return domain.ErrInvalidOperation
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/logout", `{"refresh":"r-of-u2"}`)
	err := asUser(c, "u1", h.Logout)

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
}

func TestAuthHandler_Logout_RequiresAuth(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{})

	c, _ := jsonContext(e, http.MethodPost, "/logout", `{"refresh":"r"}`)
	err := h.Logout(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestAuthHandler_Activate(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		activateFn: func(_ context.Context, token string) (*domain.User, error) {
			if token != "good" {
				return nil, domain.ErrInvalidToken
			}
			return &domain.User{IsActive: true}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodGet, "/activate?token=good", "")
	if err := h.Activate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodGet, "/activate?token=bad", "")
	if err := h.Activate(c); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	c, _ = jsonContext(e, http.MethodGet, "/activate", "")
	var he *echo.HTTPError
	if err := h.Activate(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing token, got %v", err)
	}
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	e := newEcho()
	var requested string
	stub := &stubAccountService{
		resetFn: func(_ context.Context, email string) error {
			requested = email
			return nil
		},
		confirmFn: func(_ context.Context, token, password string) error {
			if token != "t" || password != "N3w-S3cret!x" {
				t.Fatalf("unexpected args: %s %s", token, password)
			}
			return nil
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/recover-password", `{"email":"jane.doe@x.com"}`)
	if err := h.RecoverPassword(c); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if requested != "jane.doe@x.com" {
		t.Fatalf("expected reset for jane.doe@x.com, got %q", requested)
	}

	c, _ = jsonContext(e, http.MethodPost, "/password-reset-confirm", `{"token":"t","password":"N3w-S3cret!x"}`)
	if err := h.ConfirmPasswordReset(c); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	c, _ = jsonContext(e, http.MethodPost, "/password-reset-confirm", `{"token":"t"}`)
	if err := h.ConfirmPasswordReset(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing password, got %v", err)
	}
}
