package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

const userColumns = `id, fullname, username, email, password_hash,
        avatar_key, avatar_url, cover_image_key, cover_image_url, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, user.ID, user.Fullname, user.Username, user.Email, user.PasswordHash,
		user.Avatar.Key, user.Avatar.URL, user.CoverImage.Key, user.CoverImage.URL,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return mapWriteError("insert user", err)
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "select user by id", `WHERE id = $1`, id)
}

// FindByLogin fetches the user matching either the username or the email.
// Empty arguments never match.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	return r.findOne(ctx, "select user by login", `
        WHERE (username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')
        ORDER BY created_at
        LIMIT 1`, username, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, op, where string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, args...)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash without touching other fields.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return r.exec(ctx, "update user password", `
        UPDATE users
        SET password_hash = $2, updated_at = $3
        WHERE id = $1
    `, id, passwordHash, updatedAt)
}

// UpdateAccount replaces the fullname and email of a user and returns the
// updated record.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullname, email string, updatedAt time.Time) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE users
        SET fullname = $2, email = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+userColumns, id, fullname, email, updatedAt)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, mapWriteError("update user account", err)
	}

	return user, nil
}

// UpdateAvatar swaps the avatar reference of a user.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id string, avatar models.MediaRef, updatedAt time.Time) error {
	return r.exec(ctx, "update user avatar", `
        UPDATE users
        SET avatar_key = $2, avatar_url = $3, updated_at = $4
        WHERE id = $1
    `, id, avatar.Key, avatar.URL, updatedAt)
}

// UpdateCoverImage swaps the cover image reference of a user.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id string, cover models.MediaRef, updatedAt time.Time) error {
	return r.exec(ctx, "update user cover image", `
        UPDATE users
        SET cover_image_key = $2, cover_image_url = $3, updated_at = $4
        WHERE id = $1
    `, id, cover.Key, cover.URL, updatedAt)
}

func (r *PostgresUserRepository) exec(ctx context.Context, op, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(op, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Fullname, &user.Username, &user.Email, &user.PasswordHash,
		&user.Avatar.Key, &user.Avatar.URL, &user.CoverImage.Key, &user.CoverImage.URL,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos
// and watch history.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	if video.DurationSeconds < 0 || video.Views < 0 {
		return fmt.Errorf("insert video: duration and views must not be negative")
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, video_file_url, thumbnail_url, title, description,
                            duration_seconds, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, video.ID, video.OwnerID, video.VideoFile, video.Thumbnail, video.Title, video.Description,
		video.DurationSeconds, video.Views, video.IsPublished, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		return mapWriteError("insert video", err)
	}

	return nil
}

// recordViewAttempts bounds how often RecordView retries after losing the race
// for the next history position to a concurrent view of the same user.
const recordViewAttempts = 8

// RecordView appends a video to the end of a user's watch history. Positions
// are allocated as MAX(position)+1, so concurrent views of one user can
// collide on the primary key; the losing insert is retried.
func (r *PostgresVideoRepository) RecordView(ctx context.Context, userID, videoID string, watchedAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	for attempt := 1; ; attempt++ {
		_, err = conn.Exec(ctx, `
            INSERT INTO watch_history (user_id, position, video_id, watched_at)
            SELECT $1, COALESCE(MAX(position), 0) + 1, $2, $3
            FROM watch_history
            WHERE user_id = $1
        `, userID, videoID, watchedAt)
		if err == nil {
			return nil
		}
		if !isPositionRace(err) || attempt == recordViewAttempts || ctx.Err() != nil {
			return mapWriteError("append watch history", err)
		}
	}
}

func isPositionRace(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation || pgErr.Code == pgSerializationFailure
}

// WatchHistory returns the videos a user has watched, oldest first, each
// joined with the public projection of its owner.
func (r *PostgresVideoRepository) WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.video_file_url, v.thumbnail_url, v.title, v.description,
               v.duration_seconds, v.views, v.is_published, v.created_at, v.updated_at,
               o.fullname, o.username, o.avatar_url
        FROM watch_history wh
        JOIN videos v ON v.id = wh.video_id
        JOIN users o ON o.id = v.owner_id
        WHERE wh.user_id = $1
        ORDER BY wh.position ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("select watch history: %w", err)
	}
	defer rows.Close()

	history := make([]models.WatchHistoryEntry, 0)
	for rows.Next() {
		var entry models.WatchHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.OwnerID, &entry.VideoFile, &entry.Thumbnail, &entry.Title,
			&entry.Description, &entry.DurationSeconds, &entry.Views, &entry.IsPublished,
			&entry.CreatedAt, &entry.UpdatedAt,
			&entry.Owner.Fullname, &entry.Owner.Username, &entry.Owner.Avatar); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entry.UpdatedAt = entry.UpdatedAt.UTC()
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return history, nil
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for
// subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Create stores a subscription edge. Duplicate edges are accepted.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, subscription models.Subscription) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, subscription.ID, subscription.SubscriberID, subscription.ChannelID, subscription.CreatedAt)
	if err != nil {
		return mapWriteError("insert subscription", err)
	}

	return nil
}

// ChannelProfile aggregates the public profile of the channel with the given
// username. An empty viewerID never counts as subscribed.
func (r *PostgresSubscriptionRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var viewer *string
	if viewerID != "" {
		viewer = &viewerID
	}

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.fullname, u.username, u.email, u.avatar_url, u.cover_image_url,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
               (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
               EXISTS (
                   SELECT 1 FROM subscriptions s
                   WHERE s.channel_id = u.id AND s.subscriber_id = $2::UUID
               )
        FROM users u
        WHERE u.username = $1
    `, username, viewer)

	var profile models.ChannelProfile
	if err := row.Scan(&profile.ID, &profile.Fullname, &profile.Username, &profile.Email,
		&profile.Avatar, &profile.CoverImage, &profile.SubscribersCount,
		&profile.ChannelsSubscribedTo, &profile.IsSubscribed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("select channel profile: %w", err)
	}

	return profile, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
