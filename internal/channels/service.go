// Package channels serves the public profile of a channel.
package channels

import (
	"context"
	"errors"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// ProfileStore aggregates channel profiles.
type ProfileStore interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}

// Service resolves channel profiles on behalf of a viewer.
type Service struct {
	Profiles ProfileStore
}

// Profile returns the channel with the given username as seen by viewerID.
// An empty viewerID is an anonymous viewer, who is never subscribed.
func (s *Service) Profile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "channels.profile")
	defer span.End()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, apperr.Validation("username is missing", "username")
	}

	profile, err := s.Profiles.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		span.Fail(err)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperr.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperr.Internal("failed to load channel profile", err)
	}

	span.SetAttrs("subscribers", profile.SubscribersCount)
	return profile, nil
}
