package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// Authenticate rejects requests that do not carry a valid access token and
// stores the verified claims on the request context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(verifier, true)
}

// OptionalAuthenticate attaches the caller's claims when a valid access token
// is present and otherwise lets the request through anonymously.
func OptionalAuthenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(verifier, false)
}

func authenticate(verifier TokenVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" {
				if required {
					writeUnauthorized(w, r, "unauthorized request")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.VerifyAccess(token)
			if err != nil {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				message := "invalid access token"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "access token expired"
				}
				logging.FromContext(r.Context()).Warn("access token rejected", "error", err)
				writeUnauthorized(w, r, message)
				return
			}

			ctx := auth.WithClaims(r.Context(), claims)
			ctx = logging.WithUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken extracts the access token from the session cookie or, failing
// that, from a bearer Authorization header.
func AccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(auth.AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type unauthorizedResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	Success    bool     `json:"success"`
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(unauthorizedResponse{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Errors:     []string{},
	}); err != nil {
		logging.FromContext(r.Context()).Error("encode response body", "error", err)
	}
}
