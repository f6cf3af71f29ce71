package models

// Message types. Admin messages record structural channel events rather
// than user content.
const (
	MessageText  = "text"
	MessagePhoto = "photo"
	MessageVideo = "video"
	MessageAudio = "audio"
	MessageAdmin = "admin"
)

// Admin message subtypes.
const (
	AdminChannelCreation    = "channelCreation"
	AdminMemberAdded        = "memberAdded"
	AdminMemberLeft         = "memberLeft"
	AdminChannelNameChanged = "channelNameChanged"
)

// Media holds blob-store metadata for photo/video/audio messages. The core
// never touches media bytes; an external blob store hands out URLs.
type Media struct {
	ThumbnailURL    string  `json:"thumbnail_url,omitempty"`
	ThumbnailWidth  int     `json:"thumbnail_width,omitempty"`
	ThumbnailHeight int     `json:"thumbnail_height,omitempty"`
	VideoURL        string  `json:"video_url,omitempty"`
	AudioURL        string  `json:"audio_url,omitempty"`
	AudioDuration   float64 `json:"audio_duration,omitempty"`
}

// Message is one entry in a channel's append-only log. Content is immutable
// once appended; only Reactions/UserReactions change, and only through the
// reaction aggregator.
type Message struct {
	ID       string `json:"id"`
	Channel  string `json:"channel"`
	OwnerUID string `json:"owner_uid"`
	Type     string `json:"type"`
	// AdminType is set only when Type == "admin".
	AdminType string `json:"admin_type,omitempty"`
	Text      string `json:"text,omitempty"`
	// TS is the server-assigned append timestamp (ns).
	TS    int64  `json:"ts"`
	Media *Media `json:"media,omitempty"`
	// Reactions maps emoji -> count; UserReactions maps uid -> emoji.
	// Invariant: sum of Reactions values == len(UserReactions).
	Reactions     map[string]int    `json:"reactions,omitempty"`
	UserReactions map[string]string `json:"user_reactions,omitempty"`
}

// IsMedia reports whether the message type carries media metadata.
func (m *Message) IsMedia() bool {
	switch m.Type {
	case MessagePhoto, MessageVideo, MessageAudio:
		return true
	}
	return false
}

// Preview returns the short text used as a channel's last-message preview.
func (m *Message) Preview() string {
	switch m.Type {
	case MessageText, MessageAdmin:
		return m.Text
	case MessagePhoto:
		return "Photo"
	case MessageVideo:
		return "Video"
	case MessageAudio:
		return "Voice message"
	}
	return m.Text
}
