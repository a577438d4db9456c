package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

// AuthHandler serves registration, activation, sessions and password reset.
type AuthHandler struct {
	accounts ports.AccountService
}

func NewAuthHandler(accounts ports.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type registerRequest struct {
	Email     string `json:"email"      validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name"  validate:"max=150"`
	Password  string `json:"password"   validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Access  string           `json:"access"`
	Refresh string           `json:"refresh"`
	User    ports.PublicUser `json:"user"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// bindValid binds the request body into req and validates it.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}

// Register creates a pending account and mails its activation link.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      200   {object}  ports.PublicUser
// @Failure      400   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.accounts.Present(user))
}

// Activate consumes the emailed activation token.
//
// @Summary      Activate an account
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Activation token"
// @Success      200    {object}  statusResponse
// @Failure      400    {object}  errorResponse
// @Router       /activate [get]
func (h *AuthHandler) Activate(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}
	if _, err := h.accounts.Activate(c.Request().Context(), token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOK)
}

// ResendActivation mails a new activation link to a pending account.
//
// @Summary      Resend the activation email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /resend-activation [post]
func (h *AuthHandler) ResendActivation(c echo.Context) error {
	var req emailRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.accounts.ResendActivation(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOK)
}

// Login authenticates a user and returns an access/refresh token pair.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	user, pair, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    h.accounts.Present(user),
	})
}

// Refresh exchanges a refresh token for a new access token.
//
// @Summary      Refresh the access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  refreshResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	access, err := h.accounts.Refresh(c.Request().Context(), req.Refresh)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, refreshResponse{Access: access})
}

// Logout revokes the caller's refresh token.
//
// @Summary      Logout
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      refreshRequest  true  "Refresh token to revoke"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req refreshRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	if err := h.accounts.Logout(c.Request().Context(), principal, req.Refresh); err != nil {
		return withStatus(err, domain.ErrInvalidOperation, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, statusOK)
}

// RecoverPassword mails a password-reset link.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /recover-password [post]
func (h *AuthHandler) RecoverPassword(c echo.Context) error {
	var req emailRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.accounts.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOK)
}

// ConfirmPasswordReset sets a new password using an emailed reset token.
//
// @Summary      Confirm a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      passwordResetConfirmRequest  true  "Reset token and new password"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  errorResponse
// @Router       /password-reset-confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req passwordResetConfirmRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.accounts.ConfirmPasswordReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOK)
}
