// Package videos resolves the videos a user has watched.
package videos

import (
	"context"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// HistoryStore loads watch history entries in stored order.
type HistoryStore interface {
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// HistoryService serves a user's watch history.
type HistoryService struct {
	Videos HistoryStore
}

// WatchHistory returns the user's watched videos in the order they were
// recorded. A user who has watched nothing gets an empty, non-nil slice.
func (s *HistoryService) WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	ctx, span := logging.StartSpan(ctx, "videos.watch_history")
	defer span.End()

	if userID == "" {
		return nil, apperr.Unauthorized("authentication required", nil)
	}

	history, err := s.Videos.WatchHistory(ctx, userID)
	if err != nil {
		span.Fail(err)
		return nil, apperr.Internal("failed to load watch history", err)
	}
	if history == nil {
		history = []models.WatchHistoryEntry{}
	}

	span.SetAttrs("entries", len(history))
	return history, nil
}
