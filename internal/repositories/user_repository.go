package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateAccount(ctx context.Context, id, fullname, email string, updatedAt time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id string, avatar models.MediaRef, updatedAt time.Time) error
	UpdateCoverImage(ctx context.Context, id string, cover models.MediaRef, updatedAt time.Time) error
}
