package models

// User is a profile record. UID is immutable and assigned by the external
// authentication provider; username and bio are mutable by the owner only.
type User struct {
	UID             string `json:"uid"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Bio             string `json:"bio,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}
