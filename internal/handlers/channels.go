package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/auth"
)

// ChannelHandler serves channel profiles and watch history.
type ChannelHandler struct {
	Channels ChannelService
	History  HistoryService
	Debug    bool
}

// Profile handles GET /api/v1/users/c/{username}. Authentication is optional;
// anonymous viewers are never reported as subscribed.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx := r.Context()

	profile, err := h.Channels.Profile(ctx, r.PathValue("username"), auth.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	respondData(ctx, w, http.StatusOK, profile, "channel profile fetched successfully")
}

// WatchHistory handles GET /api/v1/users/history.
func (h ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx := r.Context()

	history, err := h.History.WatchHistory(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err, h.Debug)
		return
	}

	respondData(ctx, w, http.StatusOK, history, "watch history fetched successfully")
}
