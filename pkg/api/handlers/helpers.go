// Package handlers implements the JSON and websocket endpoints of the sync
// core. Every handler runs behind RequireUID, so auth.UID is always set.
package handlers

import (
	"errors"
	"net/http"

	"chatsync/pkg/errs"
	"chatsync/pkg/tail"
	"chatsync/pkg/utils"
)

// Deps carries the live-fanout dispatchers the subscribe endpoints stream
// from. Configured once at startup by api.NewRouter.
type Deps struct {
	Tail        *tail.Dispatcher
	ChannelList *tail.ChannelListDispatcher
}

var deps Deps

// Configure installs the handler dependencies.
func Configure(d Deps) { deps = d }

// writeErr maps the error taxonomy onto HTTP statuses. Validation errors
// are the caller's problem; transient storage errors invite a retry.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrChannelNotFound),
		errors.Is(err, errs.ErrUserNotFound),
		errors.Is(err, errs.ErrMessageNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrNotMember), errors.Is(err, errs.ErrNotAdmin):
		utils.JSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrNoPartner),
		errors.Is(err, errs.ErrNotGroupChannel),
		errors.Is(err, errs.ErrTooManyParticipants):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrTimeout):
		utils.JSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, errs.ErrStorageUnavailable):
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
