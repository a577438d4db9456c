package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/api/handler"
	"github.com/99minutos/accounts/internal/api/middleware"
	"github.com/99minutos/accounts/internal/core/ports"
)

// Dependencies holds everything the HTTP layer needs from the composition root.
type Dependencies struct {
	Accounts      ports.AccountService
	Authenticator ports.TokenAuthenticator
	Checks        []handler.DependencyCheck
	Log           zerolog.Logger

	// MediaRoot, when set, is served under /media for filesystem-backed avatars.
	MediaRoot string
	// BodyLimit caps request bodies, e.g. "8M".
	BodyLimit string

	// Registry receives the HTTP request metrics and backs /metrics.
	// Defaults to the global Prometheus registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "accounts",
		Registerer: registerer,
	}))
	if deps.BodyLimit != "" {
		e.Use(echomiddleware.BodyLimit(deps.BodyLimit))
	}

	authHandler := handler.NewAuthHandler(deps.Accounts)
	accountHandler := handler.NewAccountHandler(deps.Accounts)
	requireAuth := middleware.Auth(deps.Authenticator)
	optionalAuth := middleware.OptionalAuth(deps.Authenticator)

	// --- Registration, activation and sessions ---
	e.POST("/register", authHandler.Register)
	e.GET("/activate", authHandler.Activate)
	e.POST("/resend-activation", authHandler.ResendActivation)
	e.POST("/login", authHandler.Login)
	e.POST("/refresh", authHandler.Refresh)
	e.POST("/logout", authHandler.Logout, requireAuth)
	e.POST("/recover-password", authHandler.RecoverPassword)
	e.POST("/password-reset-confirm", authHandler.ConfirmPasswordReset)

	// --- Profiles ---
	e.GET("/user/:username", accountHandler.GetProfile, optionalAuth)
	e.POST("/user/:username", accountHandler.UpdateProfile, requireAuth)
	e.DELETE("/user/:username", accountHandler.DeleteAccount, requireAuth)
	e.GET("/current", accountHandler.Current, requireAuth)
	e.POST("/avatar", accountHandler.UploadAvatar, requireAuth)

	if deps.MediaRoot != "" {
		e.Static("/media", deps.MediaRoot)
	}

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks...)

	e.GET("/health", healthHandler.Liveness)            // liveness
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))

	return e
}

// requestLogger writes one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			switch {
			case v.Status >= 500:
				ev = log.Error().Err(v.Error)
			case v.Error != nil:
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
