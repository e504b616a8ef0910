package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/middleware"
)

const usersPrefix = "/api/v1/users"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts       AccountService
	Channels       ChannelService
	History        HistoryService
	Tokens         middleware.TokenVerifier
	DB             Pinger
	Cookies        config.CookieConfig
	MaxUploadBytes int64
	Debug          bool
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	users := UserHandler{
		Accounts:       deps.Accounts,
		Cookies:        NewCookieHelper(deps.Cookies),
		MaxUploadBytes: deps.MaxUploadBytes,
		Debug:          deps.Debug,
	}
	channels := ChannelHandler{Channels: deps.Channels, History: deps.History, Debug: deps.Debug}

	required := middleware.Authenticate(deps.Tokens)
	optional := middleware.OptionalAuthenticate(deps.Tokens)

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc(usersPrefix+"/register", users.Register)
	mux.HandleFunc(usersPrefix+"/login", users.Login)
	mux.HandleFunc(usersPrefix+"/refresh-token", users.Refresh)
	mux.Handle(usersPrefix+"/logout", required(http.HandlerFunc(users.Logout)))
	mux.Handle(usersPrefix+"/change-password", required(http.HandlerFunc(users.ChangePassword)))
	mux.Handle(usersPrefix+"/current-user", required(http.HandlerFunc(users.CurrentUser)))
	mux.Handle(usersPrefix+"/update-account", required(http.HandlerFunc(users.UpdateAccount)))
	mux.Handle(usersPrefix+"/avatar", required(http.HandlerFunc(users.UpdateAvatar)))
	mux.Handle(usersPrefix+"/cover-image", required(http.HandlerFunc(users.UpdateCoverImage)))
	mux.Handle(usersPrefix+"/c/{username}", optional(http.HandlerFunc(channels.Profile)))
	mux.Handle(usersPrefix+"/history", required(http.HandlerFunc(channels.WatchHistory)))
}
