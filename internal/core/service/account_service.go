package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
	"github.com/99minutos/accounts/internal/pkg/metrics"
)

const (
	avatarMaxDimension  = 512
	avatarNameLength    = 12
	avatarNameAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	avatarPathPrefix    = "avatar/"
	defaultAvatarMaxLen = 5 << 20
)

// AccountServiceConfig holds the tunables of the account use cases.
type AccountServiceConfig struct {
	// AvatarMaxBytes caps the size of an uploaded avatar before decoding.
	AvatarMaxBytes int64
}

// AccountService implements ports.AccountService by orchestrating the
// credential store, session issuer, action-token codec and notifier.
type AccountService struct {
	store     *CredentialStore
	sessions  *SessionIssuer
	codec     *ActionTokenCodec
	notifier  *Notifier
	blobs     ports.BlobStore
	presenter *UserPresenter
	cfg       AccountServiceConfig
	log       zerolog.Logger
}

func NewAccountService(
	store *CredentialStore,
	sessions *SessionIssuer,
	codec *ActionTokenCodec,
	notifier *Notifier,
	blobs ports.BlobStore,
	presenter *UserPresenter,
	cfg AccountServiceConfig,
	log zerolog.Logger,
) *AccountService {
	if cfg.AvatarMaxBytes <= 0 {
		cfg.AvatarMaxBytes = defaultAvatarMaxLen
	}
	return &AccountService{
		store:     store,
		sessions:  sessions,
		codec:     codec,
		notifier:  notifier,
		blobs:     blobs,
		presenter: presenter,
		cfg:       cfg,
		log:       log,
	}
}

// Register creates a pending account and, once the row is committed, mails
// the activation link. A delivery failure is returned but the account stays.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	user, err := s.store.Create(ctx, in.Email, in.FirstName, in.LastName, in.Password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	s.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")

	if err := s.notifier.SendActivation(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

func registrationResult(err error) string {
	switch domain.KindOf(err) {
	case domain.KindConflict:
		return "conflict"
	case domain.KindValidation:
		return "invalid"
	default:
		return "error"
	}
}

// Activate consumes an activation token. Every failure, including reuse of a
// consumed link, is reported as domain.ErrInvalidToken.
func (s *AccountService) Activate(ctx context.Context, token string) (*domain.User, error) {
	user, err := s.activate(ctx, token)
	if err != nil {
		metrics.ActivationsTotal.WithLabelValues("invalid_token").Inc()
		return nil, err
	}
	metrics.ActivationsTotal.WithLabelValues("activated").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("account activated")
	return user, nil
}

func (s *AccountService) activate(ctx context.Context, token string) (*domain.User, error) {
	userID, nonce, err := s.codec.Decode(token, PurposeActivation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	user, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if nonce == "" || nonce != user.ActivationToken || !user.State().CanTransitionTo(domain.StateActive) {
		return nil, domain.ErrInvalidToken
	}
	return s.store.Activate(ctx, user)
}

// ResendActivation mails a fresh activation link to a pending account.
func (s *AccountService) ResendActivation(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	switch user.State() {
	case domain.StateDeleted:
		return domain.ErrUserNotFound
	case domain.StateActive:
		return fmt.Errorf("%w: account is already active", domain.ErrValidation)
	}
	return s.notifier.SendActivation(ctx, user)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, *ports.TokenPair, error) {
	return s.sessions.Login(ctx, email, password)
}

func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

// Logout revokes the caller's refresh token. Tokens of other users are
// rejected with domain.ErrInvalidOperation.
func (s *AccountService) Logout(ctx context.Context, principal ports.Principal, refreshToken string) error {
	if _, err := s.principalUser(ctx, principal); err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, refreshToken, principal.UserID); err != nil {
		return err
	}
	s.log.Info().Str("user_id", principal.UserID).Msg("user logged out")
	return nil
}

// RequestPasswordReset mails a reset link. Unknown emails are reported as
// domain.ErrUserNotFound; pending accounts are silently skipped.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.State() == domain.StateDeleted {
		return domain.ErrUserNotFound
	}
	return s.notifier.SendPasswordReset(ctx, user)
}

// ConfirmPasswordReset consumes a reset token and stores the new password.
// Token failures are reported as domain.ErrInvalidToken; a weak password as
// domain.ErrWeakPassword.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	userID, nonce, err := s.codec.Decode(token, PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	user, err := s.store.FindByActivationToken(ctx, nonce)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if user.ID != userID || user.State() != domain.StateActive {
		return domain.ErrInvalidToken
	}
	if _, err := s.store.SetPassword(ctx, user, password); err != nil {
		return err
	}
	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

// GetProfile is the public profile read. Deleted accounts are not found.
func (s *AccountService) GetProfile(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.State() == domain.StateDeleted {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *AccountService) CurrentUser(ctx context.Context, principal ports.Principal) (*domain.User, error) {
	return s.principalUser(ctx, principal)
}

func (s *AccountService) UpdateProfile(ctx context.Context, principal ports.Principal, username string, update domain.ProfileUpdate) (*domain.User, error) {
	owner, err := s.owner(ctx, principal, username)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateProfile(ctx, owner.ID, update)
}

func (s *AccountService) DeleteAccount(ctx context.Context, principal ports.Principal, username string) error {
	owner, err := s.owner(ctx, principal, username)
	if err != nil {
		return err
	}
	if err := s.store.SoftDelete(ctx, owner.ID); err != nil {
		return err
	}
	s.log.Info().Str("user_id", owner.ID).Msg("account deleted")
	return nil
}

// ReplaceAvatar decodes the upload, fits it within the avatar bounds, stores
// it and points the user at the new blob. The previous blob is removed on a
// best-effort basis.
func (s *AccountService) ReplaceAvatar(ctx context.Context, principal ports.Principal, upload ports.AvatarUpload) (*domain.User, error) {
	user, err := s.principalUser(ctx, principal)
	if err != nil {
		return nil, err
	}
	if upload.Content == nil {
		return nil, fmt.Errorf("%w: avatar file is required", domain.ErrValidation)
	}
	if upload.Size > s.cfg.AvatarMaxBytes {
		return nil, fmt.Errorf("%w: avatar exceeds %d bytes", domain.ErrValidation, s.cfg.AvatarMaxBytes)
	}

	img, err := imaging.Decode(io.LimitReader(upload.Content, s.cfg.AvatarMaxBytes+1), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: upload a valid image", domain.ErrValidation)
	}
	if b := img.Bounds(); b.Dx() > avatarMaxDimension || b.Dy() > avatarMaxDimension {
		img = imaging.Fit(img, avatarMaxDimension, avatarMaxDimension, imaging.Lanczos)
	}

	format, ext := avatarFormat(upload.Filename)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}

	suffix, err := gonanoid.Generate(avatarNameAlphabet, avatarNameLength)
	if err != nil {
		return nil, fmt.Errorf("generate avatar name: %w", err)
	}
	path := avatarPathPrefix + user.ID + "-" + suffix + ext
	if err := s.blobs.Put(ctx, path, &buf, int64(buf.Len()), contentType(format)); err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}

	updated, err := s.store.SetAvatar(ctx, user.ID, path)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, path); delErr != nil {
			s.log.Warn().Err(delErr).Str("path", path).Msg("failed to remove orphaned avatar")
		}
		return nil, err
	}

	if user.Avatar != "" && user.Avatar != path {
		if err := s.blobs.Delete(ctx, user.Avatar); err != nil {
			s.log.Warn().Err(err).Str("path", user.Avatar).Msg("failed to remove previous avatar")
		}
	}
	return updated, nil
}

func (s *AccountService) Present(user *domain.User) ports.PublicUser {
	return s.presenter.Present(user)
}

// principalUser loads the caller's record. Accounts that are no longer
// active lose access even while their access token is still valid.
func (s *AccountService) principalUser(ctx context.Context, principal ports.Principal) (*domain.User, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := s.store.FindByID(ctx, principal.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if user.State() != domain.StateActive {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

// owner returns the caller's record if it is the one named by username.
func (s *AccountService) owner(ctx context.Context, principal ports.Principal, username string) (*domain.User, error) {
	user, err := s.principalUser(ctx, principal)
	if err != nil {
		return nil, err
	}
	if user.Username != username {
		return nil, domain.ErrForbidden
	}
	return user, nil
}

func avatarFormat(filename string) (imaging.Format, string) {
	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		return imaging.JPEG, ".jpg"
	}
	switch format {
	case imaging.PNG:
		return format, ".png"
	case imaging.GIF:
		return format, ".gif"
	case imaging.BMP:
		return format, ".bmp"
	case imaging.TIFF:
		return format, ".tiff"
	default:
		return imaging.JPEG, ".jpg"
	}
}

func contentType(format imaging.Format) string {
	return "image/" + strings.ToLower(format.String())
}
