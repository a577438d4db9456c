package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

// AccountHandler serves profile reads and self-service account changes.
type AccountHandler struct {
	accounts ports.AccountService
}

func NewAccountHandler(accounts ports.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type updateProfileRequest struct {
	Email     *string `json:"email"      validate:"omitempty,email,max=254"`
	Username  *string `json:"username"   validate:"omitempty,max=150"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name"  validate:"omitempty,max=150"`
}

// GetProfile returns the public profile of username.
//
// @Summary      Get a user profile
// @Tags         users
// @Produce      json
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  ports.PublicUser
// @Failure      404       {object}  errorResponse
// @Router       /user/{username} [get]
func (h *AccountHandler) GetProfile(c echo.Context) error {
	user, err := h.accounts.GetProfile(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.accounts.Present(user))
}

// UpdateProfile edits the caller's own profile. Editing another user's
// profile answers 401 whatever the payload holds.
//
// @Summary      Update own profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string                true  "Username"
// @Param        body      body      updateProfileRequest  true  "Fields to change"
// @Success      200       {object}  ports.PublicUser
// @Failure      400       {object}  errorResponse
// @Failure      401       {object}  errorResponse
// @Failure      404       {object}  errorResponse
// @Router       /user/{username} [post]
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	caller, err := h.accounts.CurrentUser(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	if caller.Username != c.Param("username") {
		return withStatus(domain.ErrForbidden, domain.ErrForbidden, http.StatusUnauthorized)
	}

	var req updateProfileRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.UpdateProfile(c.Request().Context(), principal, c.Param("username"), domain.ProfileUpdate{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return withStatus(err, domain.ErrForbidden, http.StatusUnauthorized)
	}
	return c.JSON(http.StatusOK, h.accounts.Present(user))
}

// DeleteAccount soft-deletes the caller's own account. Deleting another
// user's account answers 400.
//
// @Summary      Delete own account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  statusResponse
// @Failure      400       {object}  errorResponse
// @Failure      401       {object}  errorResponse
// @Router       /user/{username} [delete]
func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.accounts.DeleteAccount(c.Request().Context(), principal, c.Param("username")); err != nil {
		return withStatus(err, domain.ErrForbidden, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, statusOK)
}

// Current returns the authenticated user.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.PublicUser
// @Failure      401  {object}  errorResponse
// @Router       /current [get]
func (h *AccountHandler) Current(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.CurrentUser(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.accounts.Present(user))
}

// UploadAvatar replaces the caller's avatar with the multipart "avatar" file.
//
// @Summary      Upload avatar
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        avatar  formData  file  true  "Image file"
// @Success      201     {object}  ports.PublicUser
// @Failure      400     {object}  errorResponse
// @Failure      401     {object}  errorResponse
// @Router       /avatar [post]
func (h *AccountHandler) UploadAvatar(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("avatar")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "avatar file is required")
	}
	file, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "avatar file is unreadable")
	}
	defer file.Close()

	user, err := h.accounts.ReplaceAvatar(c.Request().Context(), principal, ports.AvatarUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  file,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, h.accounts.Present(user))
}
