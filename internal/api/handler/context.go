package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/api/middleware"
	"github.com/99minutos/accounts/internal/core/ports"
)

// ctxPrincipal extracts the principal injected by the Auth middleware. Its
// absence means the route was mounted without authentication.
func ctxPrincipal(c echo.Context) (ports.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return ports.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return p, nil
}

// StatusError carries a route-specific HTTP status for an error whose kind
// would otherwise map to a different code.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// withStatus overrides the response status of err when it matches target.
func withStatus(err, target error, code int) error {
	if err != nil && errors.Is(err, target) {
		return &StatusError{Code: code, Err: err}
	}
	return err
}

type statusResponse struct {
	Status string `json:"status"`
}

var statusOK = statusResponse{Status: "OK"}
