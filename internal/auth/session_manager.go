package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the user has no active session, or the
	// presented refresh token is not the one currently stored for them.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore persists the current refresh session of each user. A user has
// at most one session; every write replaces the whole record.
type SessionStore interface {
	// Save unconditionally replaces the user's session.
	Save(ctx context.Context, session Session) error
	// Find loads the user's session.
	Find(ctx context.Context, userID string) (Session, error)
	// Swap replaces the user's session with next only if the stored token hash
	// equals previousHash. It returns ErrSessionNotFound otherwise.
	Swap(ctx context.Context, previousHash string, next Session) error
	// Delete removes the user's session.
	Delete(ctx context.Context, userID string) error
}

// Session is the server-side record of the refresh token issued to a user.
// Only a hash of the token is kept.
type Session struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}

// Manager couples token issuance with session persistence.
type Manager struct {
	tokens *TokenService
	store  SessionStore
}

// NewManager constructs a Manager issuing tokens with the provided service and
// persisting refresh sessions in store.
func NewManager(tokens *TokenService, store SessionStore) *Manager {
	if tokens == nil {
		panic("auth: token service must not be nil")
	}
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{tokens: tokens, store: store}
}

// Issue signs a new token pair for the user and records the refresh token as
// the user's only valid one, replacing any previous session.
func (m *Manager) Issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	tokens, err := m.tokens.IssuePair(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.Save(ctx, Session{
		UserID:    user.ID,
		TokenHash: HashToken(tokens.RefreshToken),
		ExpiresAt: tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// VerifyAccess validates an access token.
func (m *Manager) VerifyAccess(token string) (*Claims, error) {
	return m.tokens.VerifyAccess(token)
}

// VerifyRefresh validates the signature and expiry of a refresh token. It
// does not consult the session store.
func (m *Manager) VerifyRefresh(token string) (*Claims, error) {
	return m.tokens.VerifyRefresh(token)
}

// Rotate exchanges the presented refresh token for a new pair. The swap is
// conditional on presented still being the stored token, so a token can be
// rotated at most once even under concurrent calls.
func (m *Manager) Rotate(ctx context.Context, user models.User, presented string) (models.SessionTokens, error) {
	if presented == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	tokens, err := m.tokens.IssuePair(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	next := Session{
		UserID:    user.ID,
		TokenHash: HashToken(tokens.RefreshToken),
		ExpiresAt: tokens.RefreshExpiresAt,
	}
	if err := m.store.Swap(ctx, HashToken(presented), next); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Revoke removes the user's session. Revoking a user without a session is
// not an error.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := m.store.Delete(ctx, userID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// HashToken returns the hex-encoded SHA-256 digest stored in place of a
// refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
