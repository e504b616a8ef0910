package repositories

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

// SubscriptionRepository manages subscriber -> channel edges and the channel
// views aggregated over them.
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription models.Subscription) error
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}
