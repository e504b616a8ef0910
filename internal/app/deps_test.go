package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/sessions"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func (fakePool) Ping(context.Context) error { return nil }

func testConfig() config.Config {
	return config.Config{
		Environment: "development",
		Auth: config.AuthConfig{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
			BcryptCost:    4,
		},
		Sessions:    config.SessionConfig{Backend: config.SessionBackendPostgres},
		ObjectStore: config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
	}
}

func TestBuildDependencies(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer cleanup()

	if deps.Accounts == nil || deps.Channels == nil || deps.History == nil {
		t.Fatal("expected services to be configured")
	}
	if deps.Tokens == nil {
		t.Fatal("expected token verifier to be configured")
	}
	if deps.DB == nil {
		t.Fatal("expected database pinger to be configured")
	}
	if !deps.Debug {
		t.Fatal("expected debug responses outside production")
	}
}

func TestBuildDependenciesRejectsInvalidTokens(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.RefreshSecret = ""

	if _, _, err := buildDependencies(context.Background(), fakePool{}, cfg); err == nil {
		t.Fatal("expected error for missing refresh secret")
	}
}

func TestBuildSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := []struct {
		name    string
		cfg     config.SessionConfig
		wantErr bool
		check   func(t *testing.T, store any)
	}{
		{
			name: "postgres",
			cfg:  config.SessionConfig{Backend: config.SessionBackendPostgres},
			check: func(t *testing.T, store any) {
				if _, ok := store.(*repositories.PostgresSessionStore); !ok {
					t.Fatalf("expected postgres store, got %T", store)
				}
			},
		},
		{
			name: "redis",
			cfg:  config.SessionConfig{Backend: config.SessionBackendRedis, RedisAddr: mr.Addr()},
			check: func(t *testing.T, store any) {
				if _, ok := store.(*sessions.RedisStore); !ok {
					t.Fatalf("expected redis store, got %T", store)
				}
			},
		},
		{name: "redisUnreachable", cfg: config.SessionConfig{Backend: config.SessionBackendRedis, RedisAddr: "127.0.0.1:1"}, wantErr: true},
		{name: "unknown", cfg: config.SessionConfig{Backend: "memcached"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, cleanup, err := buildSessionStore(context.Background(), fakePool{}, tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer cleanup()
			tc.check(t, store)
		})
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"WARN":  "WARN",
		"":      "INFO",
		"loud":  "INFO",
	}
	for input, want := range cases {
		if got := parseLevel(input).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}
