// Package sessions holds SessionStore implementations that live outside the
// primary database.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/auth"
)

const sessionKeyPrefix = "vidtube:session:"

// swapScript replaces the stored hash only while it still equals ARGV[1].
var swapScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current ~= ARGV[1] then
    return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisStore keeps refresh sessions in Redis, one key per user. Keys
// expire together with the refresh token they describe.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisStore constructs a session store on top of an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

func (s *RedisStore) ttl(expiresAt time.Time) (time.Duration, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		return 0, fmt.Errorf("session already expired at %s", expiresAt.UTC().Format(time.RFC3339))
	}
	return ttl, nil
}

// Save stores the session, replacing any session the user already had.
func (s *RedisStore) Save(ctx context.Context, session auth.Session) error {
	ttl, err := s.ttl(session.ExpiresAt)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(session.UserID), session.TokenHash, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Find loads the session held by a user. ExpiresAt is derived from the key's
// remaining lifetime.
func (s *RedisStore) Find(ctx context.Context, userID string) (auth.Session, error) {
	key := sessionKey(userID)

	pipe := s.client.TxPipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("get session: %w", err)
	}

	session := auth.Session{
		UserID:    userID,
		TokenHash: getCmd.Val(),
	}
	if ttl := ttlCmd.Val(); ttl > 0 {
		session.ExpiresAt = s.now().Add(ttl).UTC()
	}
	return session, nil
}

// Swap atomically replaces the user's session while the stored hash still
// equals previousHash.
func (s *RedisStore) Swap(ctx context.Context, previousHash string, next auth.Session) error {
	ttl, err := s.ttl(next.ExpiresAt)
	if err != nil {
		return err
	}

	swapped, err := swapScript.Run(ctx, s.client,
		[]string{sessionKey(next.UserID)},
		previousHash, next.TokenHash, strconv.FormatInt(ttl.Milliseconds(), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("swap session: %w", err)
	}
	if swapped == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// Delete removes the session held by a user.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	removed, err := s.client.Del(ctx, sessionKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

var _ auth.SessionStore = (*RedisStore)(nil)
