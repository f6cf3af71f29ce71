// Package api exposes the sync core over HTTP: a JSON command surface and
// websocket subscription streams, both behind the auth gateway.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/api/handlers"
	"chatsync/pkg/auth"
	"chatsync/pkg/config"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
	"chatsync/pkg/utils"
)

// NewRouter builds the full handler chain: telemetry, rate-limit gateway,
// uid enforcement, then the route table.
func NewRouter(cfg *config.Config, deps handlers.Deps) http.Handler {
	handlers.Configure(deps)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireUID)

	v1.HandleFunc("/channels/direct", handlers.CreateDirectChannel).Methods(http.MethodPost)
	v1.HandleFunc("/channels/group", handlers.CreateGroupChannel).Methods(http.MethodPost)
	v1.HandleFunc("/channels/{id}", handlers.GetChannel).Methods(http.MethodGet)
	v1.HandleFunc("/channels/{id}", handlers.RenameChannel).Methods(http.MethodPut)
	v1.HandleFunc("/channels/{id}/members", handlers.AddMembers).Methods(http.MethodPost)
	v1.HandleFunc("/channels/{id}/members/{uid}", handlers.RemoveMember).Methods(http.MethodDelete)

	v1.HandleFunc("/channels/{id}/messages", handlers.SendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/channels/{id}/messages", handlers.PageMessages).Methods(http.MethodGet)
	v1.HandleFunc("/channels/{id}/messages/tail", handlers.TailMessages).Methods(http.MethodGet)
	v1.HandleFunc("/channels/{id}/subscribe", handlers.SubscribeChannel).Methods(http.MethodGet)

	v1.HandleFunc("/messages/{id}/reactions", handlers.SetReaction).Methods(http.MethodPut)
	v1.HandleFunc("/messages/{id}/reactions", handlers.ClearReaction).Methods(http.MethodDelete)

	v1.HandleFunc("/users/{uid}", handlers.PutUser).Methods(http.MethodPut)
	v1.HandleFunc("/users/{uid}", handlers.GetUser).Methods(http.MethodGet)
	v1.HandleFunc("/users/{uid}/channels", handlers.ListUserChannels).Methods(http.MethodGet)
	v1.HandleFunc("/users/{uid}/channels/subscribe", handlers.SubscribeUserChannels).Methods(http.MethodGet)

	return telemetry.Middleware(auth.Gateway(auth.SecConfig{
		RPS:   cfg.Security.RateLimit.RPS,
		Burst: cfg.Security.RateLimit.Burst,
	}, r))
}

func healthz(w http.ResponseWriter, r *http.Request) {
	if !store.Ready() {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
