package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/models"
)

// CookieHelper writes and clears the session cookies.
type CookieHelper struct {
	config config.CookieConfig
	now    func() time.Time
}

// NewCookieHelper creates a cookie helper with the given configuration.
func NewCookieHelper(cfg config.CookieConfig) *CookieHelper {
	return &CookieHelper{config: cfg, now: time.Now}
}

// SetSessionCookies stores both tokens as HttpOnly cookies that expire with
// the tokens themselves.
func (h *CookieHelper) SetSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	now := h.now()
	h.setCookie(w, auth.AccessTokenCookie, tokens.AccessToken, maxAge(tokens.AccessExpiresAt, now))
	h.setCookie(w, auth.RefreshTokenCookie, tokens.RefreshToken, maxAge(tokens.RefreshExpiresAt, now))
}

// ClearSessionCookies instructs the client to drop both session cookies.
func (h *CookieHelper) ClearSessionCookies(w http.ResponseWriter) {
	h.setCookie(w, auth.AccessTokenCookie, "", -1)
	h.setCookie(w, auth.RefreshTokenCookie, "", -1)
}

// RefreshToken returns the refresh token cookie value, if any.
func (h *CookieHelper) RefreshToken(r *http.Request) string {
	cookie, err := r.Cookie(auth.RefreshTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *CookieHelper) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	path := h.config.Path
	if path == "" {
		path = "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.config.Domain,
		MaxAge:   maxAge,
		Secure:   h.config.Secure,
		HttpOnly: true,
		SameSite: h.config.SameSite,
	})
}

func maxAge(expiresAt, now time.Time) int {
	seconds := int(expiresAt.Sub(now).Seconds())
	if seconds <= 0 {
		return -1
	}
	return seconds
}
