package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/api/handler"
	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

// profileOnly serves GetProfile; every other use case is unreachable in
// these tests.
type profileOnly struct {
	ports.AccountService
}

func (profileOnly) GetProfile(_ context.Context, username string) (*domain.User, error) {
	if username != "janedoe" {
		return nil, domain.ErrUserNotFound
	}
	return &domain.User{ID: "u1", Username: "janedoe"}, nil
}

func (profileOnly) Present(u *domain.User) ports.PublicUser {
	return ports.PublicUser{ID: u.ID, Username: u.Username}
}

type rejectAll struct{}

func (rejectAll) Authenticate(context.Context, string) (*ports.Principal, error) {
	return nil, errors.New("rejected")
}

func newTestRouter() http.Handler {
	return NewRouter(Dependencies{
		Accounts:      profileOnly{},
		Authenticator: rejectAll{},
		Checks: []handler.DependencyCheck{
			{Name: "redis", Check: func(context.Context) error { return nil }},
		},
		Log:      zerolog.Nop(),
		Registry: prometheus.NewRegistry(),
	})
}

func serve(h http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Routes(t *testing.T) {
	h := newTestRouter()

	tests := []struct {
		name   string
		method string
		target string
		auth   string
		code   int
	}{
		{"liveness", http.MethodGet, "/health", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"profile anonymous", http.MethodGet, "/user/janedoe", "", http.StatusOK},
		{"profile missing", http.MethodGet, "/user/ghost", "", http.StatusNotFound},
		{"profile bad token", http.MethodGet, "/user/janedoe", "Bearer nope", http.StatusUnauthorized},
		{"current requires auth", http.MethodGet, "/current", "", http.StatusUnauthorized},
		{"avatar requires auth", http.MethodPost, "/avatar", "", http.StatusUnauthorized},
		{"delete requires auth", http.MethodDelete, "/user/janedoe", "", http.StatusUnauthorized},
		{"activate without token", http.MethodGet, "/activate", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, tt.target, tt.auth)
			if rec.Code != tt.code {
				t.Fatalf("%s %s: expected %d, got %d (%s)", tt.method, tt.target, tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter()
	_ = serve(h, http.MethodGet, "/health", "")

	rec := serve(h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "accounts_requests_total") {
		t.Fatal("expected echo request metrics to be exported")
	}
}
