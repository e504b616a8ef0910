package handlers

import (
	"context"

	"github.com/vidtube/backend/internal/accounts"
	"github.com/vidtube/backend/internal/models"
)

// AccountService captures the session lifecycle operations behind the user
// endpoints.
type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (models.PublicUser, error)
	Login(ctx context.Context, in accounts.LoginInput) (accounts.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (models.PublicUser, error)
	UpdateAccount(ctx context.Context, userID, fullname, email string) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID string, file *models.MediaUpload) (models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID string, file *models.MediaUpload) (models.PublicUser, error)
}

// ChannelService resolves channel profiles for a viewer.
type ChannelService interface {
	Profile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}

// HistoryService resolves a user's watch history.
type HistoryService interface {
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
