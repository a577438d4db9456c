package service

import (
	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

// UserPresenter builds the public projection of a user, resolving the avatar
// path into an absolute URL through the blob store.
type UserPresenter struct {
	blobs ports.BlobStore
}

func NewUserPresenter(blobs ports.BlobStore) *UserPresenter {
	return &UserPresenter{blobs: blobs}
}

func (p *UserPresenter) Present(user *domain.User) ports.PublicUser {
	out := ports.PublicUser{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
	if user.Avatar != "" && p.blobs != nil {
		out.Avatar = p.blobs.URL(user.Avatar)
	}
	return out
}
