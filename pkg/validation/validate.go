// Package validation checks inbound messages and channel requests before
// they reach the store. Validation failures surface immediately and are
// never retried.
package validation

import (
	"fmt"

	"chatsync/pkg/models"
)

// MaxTextLen bounds message text; matches typical mobile client limits.
const MaxTextLen = 8 * 1024

// ValidateMessage checks a user-supplied message before append. Admin
// messages are synthesized internally and never accepted from clients.
func ValidateMessage(m models.Message) error {
	switch m.Type {
	case models.MessageText:
		if m.Text == "" {
			return fmt.Errorf("text message requires text")
		}
	case models.MessagePhoto:
		if m.Media == nil || m.Media.ThumbnailURL == "" {
			return fmt.Errorf("photo message requires thumbnail_url")
		}
	case models.MessageVideo:
		if m.Media == nil || m.Media.VideoURL == "" {
			return fmt.Errorf("video message requires video_url")
		}
	case models.MessageAudio:
		if m.Media == nil || m.Media.AudioURL == "" {
			return fmt.Errorf("audio message requires audio_url")
		}
	case models.MessageAdmin:
		return fmt.Errorf("admin messages cannot be sent by clients")
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if len(m.Text) > MaxTextLen {
		return fmt.Errorf("message text exceeds %d bytes", MaxTextLen)
	}
	if m.OwnerUID == "" {
		return fmt.Errorf("message requires owner uid")
	}
	return nil
}

// ValidateUser checks a profile record before save.
func ValidateUser(u models.User) error {
	if u.UID == "" {
		return fmt.Errorf("user requires uid")
	}
	if u.Username == "" {
		return fmt.Errorf("user requires username")
	}
	return nil
}
