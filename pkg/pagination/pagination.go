package pagination

import (
	"fmt"

	"chatsync/pkg/models"
	"chatsync/pkg/store"
)

// DefaultPageSize bounds page sizes the same way the HTTP layer does.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// PageBackward returns one page of a channel's history, newest page first.
// An empty cursor yields the most recent pageSize messages; passing the
// returned NextCursor walks strictly older, non-overlapping pages. The
// cursor's boundary message is always excluded, so repeated calls yield
// every message exactly once.
//
// IsBeginning is decided against the channel's recorded first-message id
// (cached on the channel record at creation), not by rescanning the log. A
// cursor whose boundary message no longer exists degrades to the nearest
// older window and sets CursorAdjusted.
func PageBackward(channelID, cursorToken string, pageSize int) (models.PageResponse, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	beforeID := ""
	if cursorToken != "" {
		c, err := Decode(cursorToken)
		if err != nil {
			return models.PageResponse{}, err
		}
		if c.Channel != channelID {
			return models.PageResponse{}, fmt.Errorf("cursor does not belong to channel %s", channelID)
		}
		beforeID = c.MessageID
	}

	ch, err := store.GetChannel(channelID)
	if err != nil {
		return models.PageResponse{}, err
	}

	msgs, adjusted, err := store.ReadPageBefore(channelID, beforeID, pageSize)
	if err != nil {
		return models.PageResponse{}, err
	}

	resp := models.PageResponse{Messages: msgs, CursorAdjusted: adjusted}
	if len(msgs) == 0 {
		resp.IsBeginning = true
		return resp, nil
	}
	oldest := msgs[0].ID
	resp.IsBeginning = ch.FirstMessageID != "" && oldest <= ch.FirstMessageID
	if !resp.IsBeginning {
		token, err := Encode(Cursor{Channel: channelID, MessageID: oldest})
		if err != nil {
			return models.PageResponse{}, err
		}
		resp.NextCursor = token
	}
	return resp, nil
}
