package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/accounts"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/channels"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/sessions"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/videos"
)

// pingPool is the database handle the service needs at runtime.
type pingPool interface {
	db.Pool
	handlers.Pinger
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup releases connections the dependencies own.
func buildDependencies(ctx context.Context, pool pingPool, cfg config.Config) (handlers.Dependencies, func(), error) {
	tokens, err := auth.NewTokenService(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure tokens: %w", err)
	}

	store, cleanup, err := buildSessionStore(ctx, pool, cfg.Sessions)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	media, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		cleanup()
		return handlers.Dependencies{}, nil, fmt.Errorf("configure media storage: %w", err)
	}

	manager := auth.NewManager(tokens, store)

	return handlers.Dependencies{
		Accounts: &accounts.Service{
			Users:      repositories.NewPostgresUserRepository(pool),
			Media:      media,
			Sessions:   manager,
			BcryptCost: cfg.Auth.BcryptCost,
		},
		Channels:       &channels.Service{Profiles: repositories.NewPostgresSubscriptionRepository(pool)},
		History:        &videos.HistoryService{Videos: repositories.NewPostgresVideoRepository(pool)},
		Tokens:         manager,
		DB:             pool,
		Cookies:        cfg.Cookies,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Debug:          !cfg.IsProduction(),
	}, cleanup, nil
}

func buildSessionStore(ctx context.Context, pool db.Pool, cfg config.SessionConfig) (auth.SessionStore, func(), error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		client, err := sessions.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				slog.Default().Warn("close redis client", "error", err)
			}
		}
		return sessions.NewRedisStore(client), cleanup, nil
	case config.SessionBackendPostgres, "":
		return repositories.NewPostgresSessionStore(pool), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
