package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
	"github.com/99minutos/accounts/internal/pkg/metrics"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 10 * 24 * time.Hour
)

// sessionClaims is the payload of both access and refresh tokens. The user
// snapshot travels in the refresh token so a refresh can mint an access token
// without a store round-trip.
type sessionClaims struct {
	TokenType string            `json:"token_type"`
	User      *ports.PublicUser `json:"user,omitempty"`
	jwt.RegisteredClaims
}

// SessionConfig carries the signing secret and token lifetimes.
type SessionConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionIssuer authenticates credentials and issues, refreshes and revokes
// token pairs.
type SessionIssuer struct {
	users      *CredentialStore
	blacklist  ports.TokenBlacklist
	presenter  *UserPresenter
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewSessionIssuer(users *CredentialStore, blacklist ports.TokenBlacklist, presenter *UserPresenter, cfg SessionConfig, log zerolog.Logger) *SessionIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &SessionIssuer{
		users:      users,
		blacklist:  blacklist,
		presenter:  presenter,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		log:        log,
		now:        time.Now,
	}
}

// Login checks credentials and returns the user together with a new token
// pair. Unknown email, wrong password and deleted accounts are all reported
// as domain.ErrInvalidCredentials.
func (s *SessionIssuer) Login(ctx context.Context, email, password string) (*domain.User, *ports.TokenPair, error) {
	if email == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if user != nil && user.Status == domain.StatusDeleted {
		user = nil
	}

	if !s.users.VerifyPassword(user, password) {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("inactive").Inc()
		return nil, nil, domain.ErrInactiveAccount
	}

	pair, err := s.issuePair(user)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return user, pair, nil
}

// Refresh exchanges a valid, non-revoked refresh token for a new access token.
func (s *SessionIssuer) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			metrics.TokenRefreshTotal.WithLabelValues("expired").Inc()
		} else {
			metrics.TokenRefreshTotal.WithLabelValues("invalid").Inc()
		}
		return "", err
	}

	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		metrics.TokenRefreshTotal.WithLabelValues("blacklisted").Inc()
		return "", domain.ErrTokenBlacklisted
	}

	access, err := s.sign(tokenTypeAccess, claims.Subject, claims.User, s.accessTTL)
	if err != nil {
		return "", err
	}
	metrics.TokenRefreshTotal.WithLabelValues("issued").Inc()
	return access, nil
}

// Revoke blacklists refreshToken for the rest of its lifetime. When ownerID is
// set the token must belong to that user, otherwise domain.ErrInvalidOperation
// is returned. Revoking an expired or already revoked token is a no-op.
func (s *SessionIssuer) Revoke(ctx context.Context, refreshToken, ownerID string) error {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if errors.Is(err, domain.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if ownerID != "" && claims.Subject != ownerID {
		return domain.ErrInvalidOperation
	}

	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.blacklist.Add(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	metrics.TokensRevokedTotal.Inc()
	s.log.Debug().Str("jti", claims.ID).Str("user_id", claims.Subject).Msg("refresh token revoked")
	return nil
}

// Authenticate validates a bearer access token and returns its principal.
// Refresh tokens are rejected.
func (s *SessionIssuer) Authenticate(_ context.Context, accessToken string) (*ports.Principal, error) {
	claims, err := s.parse(accessToken, tokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	p := &ports.Principal{UserID: claims.Subject}
	if claims.User != nil {
		p.Username = claims.User.Username
	}
	return p, nil
}

func (s *SessionIssuer) issuePair(user *domain.User) (*ports.TokenPair, error) {
	snapshot := s.presenter.Present(user)
	access, err := s.sign(tokenTypeAccess, user.ID, &snapshot, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(tokenTypeRefresh, user.ID, &snapshot, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &ports.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *SessionIssuer) sign(tokenType, subject string, user *ports.PublicUser, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("session token: empty signing secret")
	}
	now := s.now()
	claims := sessionClaims{
		TokenType: tokenType,
		User:      user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("session token: sign: %w", err)
	}
	return signed, nil
}

// parse verifies token and checks it is of the wanted type. Expired tokens
// yield domain.ErrTokenExpired, everything else domain.ErrTokenInvalid.
func (s *SessionIssuer) parse(token, wantType string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if claims.TokenType != wantType || claims.Subject == "" || claims.ID == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
