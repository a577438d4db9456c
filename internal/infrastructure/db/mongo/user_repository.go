package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

const (
	collectionUsers = "users"

	indexUniqueEmail     = "uniq_email"
	indexUniqueUsername  = "uniq_username"
	indexActivationToken = "idx_activation_token"
)

// UserRepository persists users in MongoDB. Uniqueness of email and username
// is enforced by the collection's unique indexes, see EnsureIndexes.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type userDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Email           string             `bson:"email"`
	Username        string             `bson:"username"`
	FirstName       string             `bson:"first_name"`
	LastName        string             `bson:"last_name"`
	PasswordHash    string             `bson:"password_hash"`
	Avatar          string             `bson:"avatar,omitempty"`
	IsActive        bool               `bson:"is_active"`
	Status          string             `bson:"status"`
	ActivationToken string             `bson:"activation_token"`
	CreatedAt       time.Time          `bson:"created_at"`
	ModifiedAt      time.Time          `bson:"modified_at"`
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		Email:           u.Email,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		PasswordHash:    u.PasswordHash,
		Avatar:          u.Avatar,
		IsActive:        u.IsActive,
		Status:          string(u.Status),
		ActivationToken: u.ActivationToken,
		CreatedAt:       u.CreatedAt,
		ModifiedAt:      u.ModifiedAt,
	}
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:              d.ID.Hex(),
		Email:           d.Email,
		Username:        d.Username,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		PasswordHash:    d.PasswordHash,
		Avatar:          d.Avatar,
		IsActive:        d.IsActive,
		Status:          domain.AccountStatus(d.Status),
		ActivationToken: d.ActivationToken,
		CreatedAt:       d.CreatedAt.UTC(),
		ModifiedAt:      d.ModifiedAt.UTC(),
	}
}

// Create inserts a new user document.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toDocument(user)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, mapWriteError("insert user", err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("insert user: unexpected id type %T", res.InsertedID)
	}
	doc.ID = id
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) FindByActivationToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"activation_token": token})
}

// UsernameExists reports whether any document, deleted ones included, holds username.
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count username: %w", err)
	}
	return n > 0, nil
}

// Update applies changes with a single findOneAndUpdate. modified_at only
// moves forward ($max) so concurrent writers cannot rewind it.
func (r *UserRepository) Update(ctx context.Context, id string, changes ports.UserChanges) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{}
	if changes.Email != nil {
		set["email"] = *changes.Email
	}
	if changes.Username != nil {
		set["username"] = *changes.Username
	}
	if changes.FirstName != nil {
		set["first_name"] = *changes.FirstName
	}
	if changes.LastName != nil {
		set["last_name"] = *changes.LastName
	}
	if changes.PasswordHash != nil {
		set["password_hash"] = *changes.PasswordHash
	}
	if changes.Avatar != nil {
		set["avatar"] = *changes.Avatar
	}
	if changes.IsActive != nil {
		set["is_active"] = *changes.IsActive
	}
	if changes.Status != nil {
		set["status"] = string(*changes.Status)
	}
	if changes.ActivationToken != nil {
		set["activation_token"] = *changes.ActivationToken
	}

	update := bson.M{"$max": bson.M{"modified_at": time.Now().UTC()}}
	if len(set) > 0 {
		update["$set"] = set
	}

	filter := bson.M{"_id": oid}
	if changes.IfActivationToken != nil {
		filter["activation_token"] = *changes.IfActivationToken
	}

	var doc userDocument
	err = r.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapWriteError("update user", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// EnsureIndexes creates the unique and lookup indexes on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(indexUniqueEmail).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName(indexUniqueUsername).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "activation_token", Value: 1}},
			Options: options.Index().SetName(indexActivationToken),
		},
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// mapWriteError translates duplicate-key violations into domain errors by
// the name of the index that rejected the write.
func mapWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, indexUniqueEmail):
			return domain.ErrDuplicateEmail
		case strings.Contains(msg, indexUniqueUsername):
			return domain.ErrDuplicateUsername
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
