package user

import (
	"context"

	"music_backend/internal/shared"

	"github.com/google/uuid"
)

// Directory serves user lookups to packages that sit below the user service,
// such as session refresh.
type Directory struct {
	repo Repository
}

var _ shared.UserProvider = (*Directory)(nil)

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) GetUserByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	dbUser, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToShared(dbUser), nil
}
