package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/vidtube/backend/internal/accounts"
	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

const defaultMaxUploadBytes = 10 << 20

// UserHandler implements the /api/v1/users endpoints.
type UserHandler struct {
	Accounts       AccountService
	Cookies        *CookieHelper
	MaxUploadBytes int64
	Debug          bool
}

// Register handles POST /api/v1/users/register.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()

	if err := h.parseMultipart(w, r); err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatar, closeAvatar, err := formFile(r, "avatar")
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}
	defer closeAvatar()

	cover, closeCover, err := formFile(r, "coverImage")
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}
	defer closeCover()

	user, err := h.Accounts.Register(ctx, accounts.RegisterInput{
		Fullname:   r.FormValue("fullname"),
		Username:   r.FormValue("username"),
		Email:      r.FormValue("email"),
		Password:   r.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	respondData(ctx, w, http.StatusCreated, user, "user registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	result, err := h.Accounts.Login(ctx, accounts.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	h.Cookies.SetSessionCookies(w, result.Tokens)
	respondData(ctx, w, http.StatusOK, result, "user logged in successfully")
}

// Refresh handles POST /api/v1/users/refresh-token. The refresh token is read
// from its cookie first and from the JSON body otherwise.
func (h UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()

	token := h.Cookies.RefreshToken(r)
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req, true); err != nil {
			respondError(ctx, w, err, h.Debug)
			return
		}
		token = req.RefreshToken
	}

	tokens, err := h.Accounts.Refresh(ctx, token)
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	h.Cookies.SetSessionCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, tokens, "access token refreshed")
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()

	if err := h.Accounts.Logout(ctx, auth.UserIDFromContext(ctx)); err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	h.Cookies.ClearSessionCookies(w)
	respondData(ctx, w, http.StatusOK, struct{}{}, "user logged out successfully")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()

	var req changePasswordRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	if err := h.Accounts.ChangePassword(ctx, auth.UserIDFromContext(ctx), req.OldPassword, req.NewPassword); err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	respondData(ctx, w, http.StatusOK, struct{}{}, "password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx := r.Context()

	user, err := h.Accounts.CurrentUser(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	respondData(ctx, w, http.StatusOK, user, "current user details")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, http.MethodPatch)
		return
	}

	ctx := r.Context()

	var req updateAccountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	user, err := h.Accounts.UpdateAccount(ctx, auth.UserIDFromContext(ctx), req.Fullname, req.Email)
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	respondData(ctx, w, http.StatusOK, user, "account details updated")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "avatar", h.Accounts.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "coverImage", h.Accounts.UpdateCoverImage)
}

type mediaUpdater func(ctx context.Context, userID string, file *models.MediaUpload) (models.PublicUser, error)

func (h UserHandler) updateMedia(w http.ResponseWriter, r *http.Request, field string, update mediaUpdater) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, http.MethodPatch)
		return
	}

	ctx := r.Context()

	if err := h.parseMultipart(w, r); err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, closeFile, err := formFile(r, field)
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}
	defer closeFile()

	user, err := update(ctx, auth.UserIDFromContext(ctx), file)
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	respondData(ctx, w, http.StatusOK, user, field+" updated successfully")
}

func (h UserHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		logging.FromContext(r.Context()).Warn("invalid multipart payload", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("upload exceeds the maximum allowed size")
		}
		return apperr.Validation("invalid multipart form")
	}
	return nil
}

// formFile returns the named upload, or nil when the form has no such file.
// The returned close function is always safe to call.
func formFile(r *http.Request, field string) (*models.MediaUpload, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, apperr.Validation("invalid "+field+" file", field)
	}

	return mediaUpload(file, header), func() { _ = file.Close() }, nil
}

func mediaUpload(file multipart.File, header *multipart.FileHeader) *models.MediaUpload {
	return &models.MediaUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

// decodeJSON decodes the request body into dst. With allowEmpty an empty
// body leaves dst untouched.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return apperr.Validation("request body is required")
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		logging.FromContext(r.Context()).Warn("invalid json payload", "error", err)
		return apperr.Validation("invalid request body")
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}
