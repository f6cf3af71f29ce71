package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/auth"
	"chatsync/pkg/models"
	"chatsync/pkg/store"
	"chatsync/pkg/utils"
	"chatsync/pkg/validation"
)

// PutUser saves the caller's profile record. Profiles belong to their uid;
// writing another user's profile is rejected.
func PutUser(w http.ResponseWriter, r *http.Request) {
	uid := auth.UID(r.Context())
	if mux.Vars(r)["uid"] != uid {
		utils.JSONError(w, http.StatusForbidden, "cannot modify another user's profile")
		return
	}
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u.UID = uid
	if err := validation.ValidateUser(u); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := store.SaveUser(r.Context(), u); err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

// GetUser returns a user's profile record.
func GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := store.GetUser(mux.Vars(r)["uid"])
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}
