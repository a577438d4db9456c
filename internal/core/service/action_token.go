package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/accounts/internal/core/domain"
)

// TokenPurpose binds an action token to the flow that consumes it, so an
// activation link cannot be replayed as a password-reset link.
type TokenPurpose string

const (
	PurposeActivation    TokenPurpose = "activation"
	PurposePasswordReset TokenPurpose = "password_reset"
)

type actionClaims struct {
	UserID  string       `json:"user_id"`
	Purpose TokenPurpose `json:"purpose"`
	Nonce   string       `json:"nonce"`
	jwt.RegisteredClaims
}

// ActionTokenCodec issues and decodes signed, time-bound action tokens.
type ActionTokenCodec struct {
	secret []byte
	now    func() time.Time
}

func NewActionTokenCodec(secret string) *ActionTokenCodec {
	return &ActionTokenCodec{secret: []byte(secret), now: time.Now}
}

// Issue returns a token for subjectID valid for ttl from now. nonce is the
// value the consumer checks against its stored single-use token.
func (c *ActionTokenCodec) Issue(subjectID string, purpose TokenPurpose, nonce string, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("action token: empty signing secret")
	}
	now := c.now()
	claims := actionClaims{
		UserID:  subjectID,
		Purpose: purpose,
		Nonce:   nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("action token: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies token and returns its subject and nonce. It fails with
// domain.ErrTokenExpired, domain.ErrTokenSignature or domain.ErrTokenMalformed.
func (c *ActionTokenCodec) Decode(token string, purpose TokenPurpose) (subjectID, nonce string, err error) {
	claims := &actionClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", "", domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", "", domain.ErrTokenSignature
	default:
		return "", "", fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}

	if claims.UserID == "" || claims.Purpose != purpose {
		return "", "", domain.ErrTokenMalformed
	}
	return claims.UserID, claims.Nonce, nil
}
