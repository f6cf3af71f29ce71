package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/auth"
	"chatsync/pkg/errs"
	"chatsync/pkg/reactions"
	"chatsync/pkg/store"
	"chatsync/pkg/utils"
)

// memberMessage loads a message and enforces that the caller is a member
// of its channel.
func memberMessage(r *http.Request, messageID string) error {
	m, err := store.GetMessage(messageID)
	if err != nil {
		return err
	}
	ch, err := store.GetChannel(m.Channel)
	if err != nil {
		return err
	}
	if !ch.IsMember(auth.UID(r.Context())) {
		return errs.ErrNotMember
	}
	return nil
}

// SetReaction sets the caller's reaction on a message. A user holds at
// most one reaction per message; setting a different emoji swaps it.
func SetReaction(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
		utils.JSONError(w, http.StatusBadRequest, "emoji required")
		return
	}
	if err := memberMessage(r, messageID); err != nil {
		writeErr(w, err)
		return
	}
	if err := reactions.SetReaction(r.Context(), messageID, auth.UID(r.Context()), req.Emoji); err != nil {
		writeErr(w, err)
		return
	}
	m, err := store.GetMessage(messageID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// ClearReaction removes the caller's reaction, if any.
func ClearReaction(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	if err := memberMessage(r, messageID); err != nil {
		writeErr(w, err)
		return
	}
	if err := reactions.ClearReaction(r.Context(), messageID, auth.UID(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	m, err := store.GetMessage(messageID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}
