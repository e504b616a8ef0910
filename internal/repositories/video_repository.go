package repositories

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// VideoRepository exposes data access for videos and the watch history that
// references them.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	RecordView(ctx context.Context, userID, videoID string, watchedAt time.Time) error
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}
