// Package accounts implements the session lifecycle of VidTube users:
// registration, login, token refresh, logout and profile maintenance.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
)

const mediaCleanupTimeout = 10 * time.Second

// UserStore is the persistence the service needs for user records.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateAccount(ctx context.Context, id, fullname, email string, updatedAt time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id string, avatar models.MediaRef, updatedAt time.Time) error
	UpdateCoverImage(ctx context.Context, id string, cover models.MediaRef, updatedAt time.Time) error
}

// MediaStore uploads and removes user media.
type MediaStore interface {
	Upload(ctx context.Context, folder string, file models.MediaUpload) (models.MediaRef, error)
	Delete(ctx context.Context, key string) error
}

// SessionManager issues, rotates and revokes refresh sessions.
type SessionManager interface {
	Issue(ctx context.Context, user models.User) (models.SessionTokens, error)
	VerifyRefresh(token string) (*auth.Claims, error)
	Rotate(ctx context.Context, user models.User, presented string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
}

// Service coordinates users, media and sessions.
type Service struct {
	Users      UserStore
	Media      MediaStore
	Sessions   SessionManager
	BcryptCost int
	NowFunc    func() time.Time
	NewID      func() string
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Fullname   string
	Username   string
	Email      string
	Password   string
	Avatar     *models.MediaUpload
	CoverImage *models.MediaUpload
}

// LoginInput identifies a user by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User   models.PublicUser    `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) bcryptCost() int {
	if s.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return s.BcryptCost
}

// Register creates a new account. Media is uploaded only after the input has
// been validated and checked for conflicts; if the user record cannot be
// created every uploaded object is deleted again before the error returns.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.register")
	defer span.End()
	logger := logging.FromContext(ctx)

	in.Fullname = strings.TrimSpace(in.Fullname)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if missing := missingFields(map[string]string{
		"fullname": in.Fullname,
		"username": in.Username,
		"email":    in.Email,
		"password": strings.TrimSpace(in.Password),
	}); len(missing) > 0 {
		return models.PublicUser{}, apperr.Validation("all fields are required", missing...)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return models.PublicUser{}, apperr.Validation("invalid email address", "email")
	}
	if in.Avatar == nil || in.Avatar.Body == nil {
		return models.PublicUser{}, apperr.Validation("avatar file is required", "avatar")
	}

	if _, err := s.Users.FindByLogin(ctx, in.Username, in.Email); err == nil {
		logger.Warn("register existing account", "username", in.Username, "email", in.Email)
		return models.PublicUser{}, apperr.Conflict("user with this username or email already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.PublicUser{}, apperr.Internal("unable to verify existing accounts", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost())
	if err != nil {
		return models.PublicUser{}, apperr.Internal("failed to secure password", err)
	}

	var uploaded []string
	committed := false
	defer func() {
		if committed || len(uploaded) == 0 {
			return
		}
		s.discardMedia(ctx, uploaded...)
	}()

	avatar, err := s.Media.Upload(ctx, storage.FolderAvatars, *in.Avatar)
	if err != nil {
		return models.PublicUser{}, apperr.UploadFailure("failed to upload avatar", err)
	}
	uploaded = append(uploaded, avatar.Key)

	var cover models.MediaRef
	if in.CoverImage != nil && in.CoverImage.Body != nil {
		cover, err = s.Media.Upload(ctx, storage.FolderCovers, *in.CoverImage)
		if err != nil {
			return models.PublicUser{}, apperr.UploadFailure("failed to upload cover image", err)
		}
		uploaded = append(uploaded, cover.Key)
	}

	now := s.now()
	record := models.User{
		ID:           s.newID(),
		Fullname:     in.Fullname,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hashed),
		Avatar:       avatar,
		CoverImage:   cover,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Users.Create(ctx, record); err != nil {
		span.Fail(err)
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicUser{}, apperr.Conflict("user with this username or email already exists")
		}
		return models.PublicUser{}, apperr.CreationFailure("something went wrong while registering, uploaded media was removed", err)
	}
	committed = true

	logger.Info("user registered", "userId", record.ID)
	return record.Public(), nil
}

// Login verifies credentials and opens a new session, replacing any session
// the user already had.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.login")
	defer span.End()
	logger := logging.FromContext(ctx)

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" && email == "" {
		return LoginResult{}, apperr.Validation("username or email is required", "username", "email")
	}
	if in.Password == "" {
		return LoginResult{}, apperr.Validation("password is required", "password")
	}

	user, err := s.Users.FindByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return LoginResult{}, apperr.NotFound("user does not exist")
		}
		return LoginResult{}, apperr.Internal("unable to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		return LoginResult{}, apperr.Unauthorized("invalid user credentials", nil)
	}

	tokens, err := s.Sessions.Issue(ctx, user)
	if err != nil {
		return LoginResult{}, apperr.Internal("failed to create session", err)
	}

	logger.Info("user logged in", "userId", user.ID)
	return LoginResult{User: user.Public(), Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair. A token can be exchanged
// once; presenting it again fails.
func (s *Service) Refresh(ctx context.Context, presented string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.refresh")
	defer span.End()
	logger := logging.FromContext(ctx)

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return models.SessionTokens{}, apperr.Unauthorized("refresh token is required", nil)
	}

	claims, err := s.Sessions.VerifyRefresh(presented)
	if err != nil {
		return models.SessionTokens{}, apperr.Unauthorized("invalid refresh token", err)
	}

	user, err := s.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.Unauthorized("invalid refresh token", err)
		}
		return models.SessionTokens{}, apperr.Internal("unable to look up user", err)
	}

	tokens, err := s.Sessions.Rotate(ctx, user, presented)
	if err != nil {
		span.Fail(err)
		if errors.Is(err, auth.ErrSessionNotFound) {
			logger.Warn("refresh token rejected", "userId", user.ID)
			return models.SessionTokens{}, apperr.Unauthorized("refresh token is expired or used", err)
		}
		return models.SessionTokens{}, apperr.Internal("failed to rotate session", err)
	}

	return tokens, nil
}

// Logout revokes the user's session. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, userID string) error {
	ctx, span := logging.StartSpan(ctx, "accounts.logout")
	defer span.End()

	if err := s.Sessions.Revoke(ctx, userID); err != nil {
		return apperr.Internal("failed to end session", err)
	}
	logging.FromContext(ctx).Info("user logged out", "userId", userID)
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	ctx, span := logging.StartSpan(ctx, "accounts.change_password")
	defer span.End()

	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperr.Validation("old and new password are required", "oldPassword", "newPassword")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperr.Unauthorized("invalid old password", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost())
	if err != nil {
		return apperr.Internal("failed to secure password", err)
	}

	if err := s.Users.UpdatePassword(ctx, user.ID, string(hashed), s.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("failed to update password", err)
	}

	logging.FromContext(ctx).Info("password changed", "userId", user.ID)
	return nil
}

// CurrentUser returns the sanitized record of the authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID string) (models.PublicUser, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

// UpdateAccount replaces the fullname and email of the user.
func (s *Service) UpdateAccount(ctx context.Context, userID, fullname, email string) (models.PublicUser, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.update_account")
	defer span.End()

	fullname = strings.TrimSpace(fullname)
	email = strings.ToLower(strings.TrimSpace(email))
	if missing := missingFields(map[string]string{"fullname": fullname, "email": email}); len(missing) > 0 {
		return models.PublicUser{}, apperr.Validation("fullname and email are required", missing...)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.PublicUser{}, apperr.Validation("invalid email address", "email")
	}

	user, err := s.Users.UpdateAccount(ctx, userID, fullname, email, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			return models.PublicUser{}, apperr.Conflict("email is already in use")
		case errors.Is(err, repositories.ErrNotFound):
			return models.PublicUser{}, apperr.NotFound("user not found")
		}
		return models.PublicUser{}, apperr.Internal("failed to update account", err)
	}

	return user.Public(), nil
}

// UpdateAvatar uploads a new avatar and swaps it in for the current one.
func (s *Service) UpdateAvatar(ctx context.Context, userID string, file *models.MediaUpload) (models.PublicUser, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.update_avatar")
	defer span.End()

	return s.replaceMedia(ctx, userID, file, mediaSlot{
		field:   "avatar",
		folder:  storage.FolderAvatars,
		current: func(u *models.User) *models.MediaRef { return &u.Avatar },
		persist: s.Users.UpdateAvatar,
	})
}

// UpdateCoverImage uploads a new cover image and swaps it in for the current one.
func (s *Service) UpdateCoverImage(ctx context.Context, userID string, file *models.MediaUpload) (models.PublicUser, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.update_cover_image")
	defer span.End()

	return s.replaceMedia(ctx, userID, file, mediaSlot{
		field:   "coverImage",
		folder:  storage.FolderCovers,
		current: func(u *models.User) *models.MediaRef { return &u.CoverImage },
		persist: s.Users.UpdateCoverImage,
	})
}

type mediaSlot struct {
	field   string
	folder  string
	current func(*models.User) *models.MediaRef
	persist func(ctx context.Context, id string, ref models.MediaRef, updatedAt time.Time) error
}

// replaceMedia uploads first and swaps the stored reference second. The old
// object is deleted only after the swap; if the swap fails the new object is.
func (s *Service) replaceMedia(ctx context.Context, userID string, file *models.MediaUpload, slot mediaSlot) (models.PublicUser, error) {
	if file == nil || file.Body == nil {
		return models.PublicUser{}, apperr.Validation(slot.field+" file is required", slot.field)
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return models.PublicUser{}, err
	}

	ref, err := s.Media.Upload(ctx, slot.folder, *file)
	if err != nil {
		return models.PublicUser{}, apperr.UploadFailure("failed to upload "+slot.field, err)
	}

	now := s.now()
	if err := slot.persist(ctx, user.ID, ref, now); err != nil {
		s.discardMedia(ctx, ref.Key)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.PublicUser{}, apperr.NotFound("user not found")
		}
		return models.PublicUser{}, apperr.Internal("failed to update "+slot.field, err)
	}

	previous := *slot.current(&user)
	*slot.current(&user) = ref
	user.UpdatedAt = now

	if previous.Key != "" && previous.Key != ref.Key {
		s.discardMedia(ctx, previous.Key)
	}

	return user.Public(), nil
}

func (s *Service) findUser(ctx context.Context, userID string) (models.User, error) {
	if userID == "" {
		return models.User{}, apperr.Unauthorized("authentication required", nil)
	}
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperr.NotFound("user not found")
		}
		return models.User{}, apperr.Internal("unable to look up user", err)
	}
	return user, nil
}

// discardMedia deletes objects on a context detached from the caller so a
// cancelled request still cleans up. Failures are logged and dropped.
func (s *Service) discardMedia(ctx context.Context, keys ...string) {
	logger := logging.FromContext(ctx)

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mediaCleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.Media.Delete(cleanupCtx, key); err != nil {
			logger.Warn("failed to delete media", slog.String("key", key), slog.Any("error", err))
			continue
		}
		logger.Info("deleted media", slog.String("key", key))
	}
}

func missingFields(fields map[string]string) []string {
	order := []string{"fullname", "username", "email", "password"}
	var missing []string
	for _, name := range order {
		if value, ok := fields[name]; ok && value == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
