package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chatsync/pkg/auth"
	"chatsync/pkg/errs"
	"chatsync/pkg/models"
	"chatsync/pkg/pagination"
	"chatsync/pkg/store"
	"chatsync/pkg/utils"
	"chatsync/pkg/validation"
)

// memberChannel loads a channel and enforces that the caller is a member.
func memberChannel(r *http.Request, channelID string) (models.Channel, error) {
	ch, err := store.GetChannel(channelID)
	if err != nil {
		return models.Channel{}, err
	}
	if !ch.IsMember(auth.UID(r.Context())) {
		return models.Channel{}, errs.ErrNotMember
	}
	return ch, nil
}

// SendMessage appends a message to a channel. The optional
// X-Idempotency-Key header makes client retries safe: replays return the
// originally stored message.
func SendMessage(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	if _, err := memberChannel(r, channelID); err != nil {
		writeErr(w, err)
		return
	}
	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m.OwnerUID = auth.UID(r.Context())
	if m.Type == "" {
		m.Type = models.MessageText
	}
	if err := validation.ValidateMessage(m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	stored, err := store.AppendMessage(r.Context(), channelID, m, r.Header.Get("X-Idempotency-Key"))
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, stored)
}

// PageMessages walks a channel's history backwards with opaque cursors.
func PageMessages(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	if _, err := memberChannel(r, channelID); err != nil {
		writeErr(w, err)
		return
	}
	size := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		size = n
	}
	page, err := pagination.PageBackward(channelID, r.URL.Query().Get("cursor"), size)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, page)
}

// TailMessages returns messages strictly after the given id, oldest first.
// Clients catch up after reconnect by passing the last id they saw.
func TailMessages(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	if _, err := memberChannel(r, channelID); err != nil {
		writeErr(w, err)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := store.ReadTail(channelID, r.URL.Query().Get("after"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"messages": msgs})
}
