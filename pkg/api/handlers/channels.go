package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/auth"
	"chatsync/pkg/directory"
	"chatsync/pkg/store"
	"chatsync/pkg/utils"
)

// CreateDirectChannel returns the direct channel shared with the partner
// uid, creating it on first use. Repeated calls from either side converge
// on the same channel.
func CreateDirectChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Partner string `json:"partner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ch, err := directory.CreateDirectChannel(r.Context(), auth.UID(r.Context()), req.Partner)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, ch)
}

// CreateGroupChannel creates a group channel with the caller as admin.
func CreateGroupChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ch, err := directory.CreateGroupChannel(r.Context(), auth.UID(r.Context()), req.Members, req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, ch)
}

// GetChannel returns channel metadata; members only.
func GetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := memberChannel(r, mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, ch)
}

// RenameChannel changes a channel's name; admins only.
func RenameChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		utils.JSONError(w, http.StatusBadRequest, "name required")
		return
	}
	ch, err := directory.RenameChannel(r.Context(), mux.Vars(r)["id"], auth.UID(r.Context()), req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, ch)
}

// AddMembers adds uids to a group channel; admins only.
func AddMembers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Members) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "members required")
		return
	}
	ch, err := directory.AddMembers(r.Context(), mux.Vars(r)["id"], auth.UID(r.Context()), req.Members)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, ch)
}

// RemoveMember removes a member from a channel. Members may remove
// themselves (leave); anything else is rejected.
func RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uid := auth.UID(r.Context())
	if vars["uid"] != uid {
		utils.JSONError(w, http.StatusForbidden, "members can only remove themselves")
		return
	}
	ch, err := directory.LeaveChannel(r.Context(), vars["id"], uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, ch)
}

// ListUserChannels returns the caller's channels; callers may only list
// their own.
func ListUserChannels(w http.ResponseWriter, r *http.Request) {
	uid := auth.UID(r.Context())
	if mux.Vars(r)["uid"] != uid {
		utils.JSONError(w, http.StatusForbidden, "cannot list another user's channels")
		return
	}
	chs, err := store.ListUserChannels(uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"channels": chs})
}
