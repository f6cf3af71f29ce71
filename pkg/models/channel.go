package models

// MaxGroupParticipants is the number of membership slots beyond the creator
// a group channel may hold.
const MaxGroupParticipants = 12

// Channel kinds. A direct channel is pinned to its unordered user pair:
// exactly two members, forever, so the pair index stays truthful.
const (
	ChannelDirect = "direct"
	ChannelGroup  = "group"
)

// Channel is a conversation context, direct or group. MembersCount always
// equals len(MemberUIDs).
type Channel struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind,omitempty"`
	Name         string   `json:"name,omitempty"`
	CreatedBy    string   `json:"created_by"`
	CreationTS   int64    `json:"creation_ts"`
	MemberUIDs   []string `json:"member_uids"`
	AdminUIDs    []string `json:"admin_uids"`
	MembersCount int      `json:"members_count"`

	// Last-message preview, denormalized for channel listings.
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageType string `json:"last_message_type,omitempty"`
	LastMessageTS   int64  `json:"last_message_ts,omitempty"`

	// FirstMessageID anchors the "reached the beginning" check for backward
	// pagination; it is the id of the synthetic creation message. LastMessageID
	// is the newest appended id, used by tail catch-up.
	FirstMessageID string `json:"first_message_id,omitempty"`
	LastMessageID  string `json:"last_message_id,omitempty"`
}

// IsGroupChat reports whether the channel has more than two members.
func (c *Channel) IsGroupChat() bool { return c.MembersCount > 2 }

// IsDirect reports whether the channel is a 1:1 channel.
func (c *Channel) IsDirect() bool { return c.Kind == ChannelDirect }

// IsMember reports whether uid belongs to the channel.
func (c *Channel) IsMember(uid string) bool {
	for _, m := range c.MemberUIDs {
		if m == uid {
			return true
		}
	}
	return false
}

// IsAdmin reports whether uid administers the channel.
func (c *Channel) IsAdmin(uid string) bool {
	for _, a := range c.AdminUIDs {
		if a == uid {
			return true
		}
	}
	return false
}
