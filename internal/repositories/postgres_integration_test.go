package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	migrator := db.NewMigrator(pool, filepath.Join("..", "..", "migrations"), nil)
	if err := migrator.Up(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	if err := repo.Create(ctx, newTestUser("alice-two", "alice@example.com")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate email to conflict got %v", err)
	}
	if err := repo.Create(ctx, newTestUser("alice", "other@example.com")); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate username to conflict got %v", err)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Username != "alice" || byID.PasswordHash != "hash" || byID.Avatar.Key != "avatars/alice.png" {
		t.Fatalf("unexpected user %+v", byID)
	}

	if _, err := repo.FindByLogin(ctx, "", "alice@example.com"); err != nil {
		t.Fatalf("find by email login: %v", err)
	}
	if _, err := repo.FindByLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("find by username login: %v", err)
	}
	if _, err := repo.FindByLogin(ctx, "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected empty login to miss got %v", err)
	}
	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}

	later := time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond)
	if err := repo.UpdatePassword(ctx, user.ID, "new-hash", later); err != nil {
		t.Fatalf("update password: %v", err)
	}

	updated, err := repo.UpdateAccount(ctx, user.ID, "Alice Updated", "alice.updated@example.com", later)
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.PasswordHash != "new-hash" || updated.Fullname != "Alice Updated" || updated.Email != "alice.updated@example.com" {
		t.Fatalf("unexpected updated user %+v", updated)
	}

	avatar := models.MediaRef{Key: "avatars/new.png", URL: "http://media/avatars/new.png"}
	if err := repo.UpdateAvatar(ctx, user.ID, avatar, later); err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	cover := models.MediaRef{Key: "covers/new.png", URL: "http://media/covers/new.png"}
	if err := repo.UpdateCoverImage(ctx, user.ID, cover, later); err != nil {
		t.Fatalf("update cover: %v", err)
	}

	reloaded, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Avatar != avatar || reloaded.CoverImage != cover {
		t.Fatalf("expected media refs to be swapped, got %+v", reloaded)
	}

	if err := repo.UpdatePassword(ctx, uuid.NewString(), "x", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown user got %v", err)
	}

	bob := createTestUser(t, repo, "bob")
	if _, err := repo.UpdateAccount(ctx, bob.ID, "Bob", "alice.updated@example.com", later); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected email conflict got %v", err)
	}
}

func TestPostgresSessionStore_SaveSwapAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	user := createTestUser(t, users, "sessions")
	store := NewPostgresSessionStore(testPool)

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	if err := store.Save(ctx, auth.Session{UserID: user.ID, TokenHash: "hash-1", ExpiresAt: expires}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, auth.Session{UserID: user.ID, TokenHash: "hash-2", ExpiresAt: expires}); err != nil {
		t.Fatalf("save replacement: %v", err)
	}

	found, err := store.Find(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.TokenHash != "hash-2" || !found.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session %+v", found)
	}

	if err := store.Swap(ctx, "hash-1", auth.Session{UserID: user.ID, TokenHash: "hash-3", ExpiresAt: expires}); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected stale swap to fail got %v", err)
	}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			next := auth.Session{UserID: user.ID, TokenHash: fmt.Sprintf("next-%d", i), ExpiresAt: expires}
			if err := store.Swap(ctx, "hash-2", next); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one swap to win, got %d", successes)
	}

	if err := store.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, user.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected second delete to miss got %v", err)
	}
	if _, err := store.Find(ctx, user.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected find to miss got %v", err)
	}
}

func TestPostgresSessionStore_SwapRejectsExpiredSession(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "expired")
	store := NewPostgresSessionStore(testPool)

	past := time.Now().UTC().Add(-time.Minute)
	if err := store.Save(ctx, auth.Session{UserID: user.ID, TokenHash: "hash", ExpiresAt: past}); err != nil {
		t.Fatalf("save: %v", err)
	}
	next := auth.Session{UserID: user.ID, TokenHash: "next", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Swap(ctx, "hash", next); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be rejected got %v", err)
	}
}

func TestPostgresSubscriptionRepository_ChannelProfile(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	subs := NewPostgresSubscriptionRepository(testPool)

	channel := createTestUser(t, users, "channel")
	viewer := createTestUser(t, users, "viewer")
	other := createTestUser(t, users, "other")

	subscribe := func(subscriber, target models.User) {
		t.Helper()
		if err := subs.Create(ctx, models.Subscription{
			ID:           uuid.NewString(),
			SubscriberID: subscriber.ID,
			ChannelID:    target.ID,
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	subscribe(viewer, channel)
	subscribe(other, channel)
	subscribe(other, channel)
	subscribe(channel, viewer)

	profile, err := subs.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("channel profile: %v", err)
	}
	if profile.ID != channel.ID || profile.Username != "channel" || profile.Avatar != channel.Avatar.URL {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.SubscribersCount != 3 {
		t.Fatalf("expected duplicate edges to be counted, got %d subscribers", profile.SubscribersCount)
	}
	if profile.ChannelsSubscribedTo != 1 {
		t.Fatalf("expected 1 channel subscribed to, got %d", profile.ChannelsSubscribedTo)
	}
	if !profile.IsSubscribed {
		t.Fatal("expected viewer to be subscribed")
	}

	anonymous, err := subs.ChannelProfile(ctx, "channel", "")
	if err != nil {
		t.Fatalf("anonymous profile: %v", err)
	}
	if anonymous.IsSubscribed {
		t.Fatal("expected anonymous viewer not to be subscribed")
	}

	self, err := subs.ChannelProfile(ctx, "channel", channel.ID)
	if err != nil {
		t.Fatalf("self profile: %v", err)
	}
	if self.IsSubscribed {
		t.Fatal("expected channel not to be subscribed to itself")
	}

	empty, err := subs.ChannelProfile(ctx, "other", viewer.ID)
	if err != nil {
		t.Fatalf("other profile: %v", err)
	}
	if empty.SubscribersCount != 0 || empty.ChannelsSubscribedTo != 2 || empty.IsSubscribed {
		t.Fatalf("unexpected profile %+v", empty)
	}

	if _, err := subs.ChannelProfile(ctx, "missing", viewer.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}

	if err := subs.Create(ctx, models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: uuid.NewString(),
		ChannelID:    channel.ID,
		CreatedAt:    time.Now().UTC(),
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown subscriber to be rejected got %v", err)
	}
}

func TestPostgresVideoRepository_WatchHistory(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)

	viewer := createTestUser(t, users, "watcher")
	creator := createTestUser(t, users, "creator")

	first := createTestVideo(t, videos, creator, "First")
	second := createTestVideo(t, videos, creator, "Second")

	empty, err := videos.WatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("empty history: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil history, got %#v", empty)
	}

	now := time.Now().UTC()
	for _, id := range []string{second.ID, first.ID, second.ID} {
		if err := videos.RecordView(ctx, viewer.ID, id, now); err != nil {
			t.Fatalf("record view: %v", err)
		}
	}

	history, err := videos.WatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries got %d", len(history))
	}

	wantOrder := []string{"Second", "First", "Second"}
	for i, entry := range history {
		if entry.Title != wantOrder[i] {
			t.Fatalf("entry %d: expected %q got %q", i, wantOrder[i], entry.Title)
		}
		if entry.Owner.Username != "creator" || entry.Owner.Fullname != creator.Fullname || entry.Owner.Avatar != creator.Avatar.URL {
			t.Fatalf("unexpected owner projection %+v", entry.Owner)
		}
		if entry.DurationSeconds != 12.5 || !entry.IsPublished {
			t.Fatalf("unexpected video fields %+v", entry.Video)
		}
	}

	if err := videos.RecordView(ctx, viewer.ID, uuid.NewString(), now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown video to be rejected got %v", err)
	}

	invalid := models.Video{ID: uuid.NewString(), OwnerID: creator.ID, Title: "bad", DurationSeconds: -1}
	if err := videos.Create(ctx, invalid); err == nil {
		t.Fatal("expected negative duration to be rejected")
	}
}

func TestPostgresVideoRepository_ConcurrentRecordView(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)

	viewer := createTestUser(t, users, "binger")
	creator := createTestUser(t, users, "maker")
	video := createTestVideo(t, videos, creator, "Loop")

	const views = 4
	errs := make(chan error, views)
	var wg sync.WaitGroup
	for i := 0; i < views; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- videos.RecordView(ctx, viewer.ID, video.ID, time.Now().UTC())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("record view: %v", err)
		}
	}

	history, err := videos.WatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if len(history) != views {
		t.Fatalf("expected %d entries got %d", views, len(history))
	}
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_history, subscriptions, videos, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func newTestUser(username, email string) models.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return models.User{
		ID:           uuid.NewString(),
		Fullname:     "Test " + username,
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		Avatar: models.MediaRef{
			Key: "avatars/" + username + ".png",
			URL: "http://media/avatars/" + username + ".png",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := newTestUser(username, username+"@example.com")
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func createTestVideo(t *testing.T, repo *PostgresVideoRepository, owner models.User, title string) models.Video {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	video := models.Video{
		ID:              uuid.NewString(),
		OwnerID:         owner.ID,
		VideoFile:       "http://media/videos/" + title + ".mp4",
		Thumbnail:       "http://media/thumbs/" + title + ".png",
		Title:           title,
		Description:     title + " description",
		DurationSeconds: 12.5,
		Views:           0,
		IsPublished:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := repo.Create(context.Background(), video); err != nil {
		t.Fatalf("create video %s: %v", title, err)
	}
	return video
}
