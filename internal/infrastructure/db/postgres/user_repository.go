package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

const (
	constraintUniqueEmail    = "uniq_users_email"
	constraintUniqueUsername = "uniq_users_username"

	uniqueViolation = "23505"
)

type userRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email           string    `gorm:"size:254;not null;uniqueIndex:uniq_users_email"`
	Username        string    `gorm:"size:150;not null;uniqueIndex:uniq_users_username"`
	FirstName       string    `gorm:"size:150;not null;default:''"`
	LastName        string    `gorm:"size:150;not null;default:''"`
	PasswordHash    string    `gorm:"size:128;not null"`
	Avatar          string    `gorm:"size:255;not null;default:''"`
	IsActive        bool      `gorm:"not null;default:false"`
	Status          string    `gorm:"size:16;not null;default:'ACTIVE'"`
	ActivationToken string    `gorm:"size:128;not null;index:idx_users_activation_token"`
	CreatedAt       time.Time `gorm:"not null"`
	ModifiedAt      time.Time `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

func (r userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:              r.ID.String(),
		Email:           r.Email,
		Username:        r.Username,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		PasswordHash:    r.PasswordHash,
		Avatar:          r.Avatar,
		IsActive:        r.IsActive,
		Status:          domain.AccountStatus(r.Status),
		ActivationToken: r.ActivationToken,
		CreatedAt:       r.CreatedAt.UTC(),
		ModifiedAt:      r.ModifiedAt.UTC(),
	}
}

// UserRepository persists users in Postgres through gorm. Uniqueness of email
// and username is enforced by the table's unique indexes, see Migrate.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec := userRecord{
		ID:              uuid.New(),
		Email:           user.Email,
		Username:        user.Username,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		PasswordHash:    user.PasswordHash,
		Avatar:          user.Avatar,
		IsActive:        user.IsActive,
		Status:          string(user.Status),
		ActivationToken: user.ActivationToken,
		CreatedAt:       user.CreatedAt,
		ModifiedAt:      user.ModifiedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, mapWriteError("insert user", err)
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, "id = ?", uid)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *UserRepository) FindByActivationToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, "activation_token = ?", token)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&userRecord{}).Where("username = ?", username).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count username: %w", err)
	}
	return n > 0, nil
}

// Update applies changes in one UPDATE ... RETURNING statement. modified_at
// is set to GREATEST(modified_at, now) so it never moves backwards.
func (r *UserRepository) Update(ctx context.Context, id string, changes ports.UserChanges) (*domain.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	values := map[string]any{
		"modified_at": gorm.Expr("GREATEST(modified_at, ?)", time.Now().UTC()),
	}
	if changes.Email != nil {
		values["email"] = *changes.Email
	}
	if changes.Username != nil {
		values["username"] = *changes.Username
	}
	if changes.FirstName != nil {
		values["first_name"] = *changes.FirstName
	}
	if changes.LastName != nil {
		values["last_name"] = *changes.LastName
	}
	if changes.PasswordHash != nil {
		values["password_hash"] = *changes.PasswordHash
	}
	if changes.Avatar != nil {
		values["avatar"] = *changes.Avatar
	}
	if changes.IsActive != nil {
		values["is_active"] = *changes.IsActive
	}
	if changes.Status != nil {
		values["status"] = string(*changes.Status)
	}
	if changes.ActivationToken != nil {
		values["activation_token"] = *changes.ActivationToken
	}

	var recs []userRecord
	q := r.db.WithContext(ctx).
		Model(&recs).
		Clauses(clause.Returning{}).
		Where("id = ?", uid)
	if changes.IfActivationToken != nil {
		q = q.Where("activation_token = ?", *changes.IfActivationToken)
	}

	res := q.Updates(values)
	if res.Error != nil {
		return nil, mapWriteError("update user", res.Error)
	}
	if res.RowsAffected == 0 || len(recs) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return recs[0].toDomain(), nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec userRecord
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return rec.toDomain(), nil
}

// mapWriteError translates unique violations into domain errors by the name
// of the constraint that rejected the write.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintUniqueEmail:
			return domain.ErrDuplicateEmail
		case constraintUniqueUsername:
			return domain.ErrDuplicateUsername
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
