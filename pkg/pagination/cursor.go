// Package pagination gives chat clients stable "load older messages"
// semantics over a channel's log: opaque cursors, non-overlapping pages,
// and a cheap "reached the beginning" check.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks a pagination boundary inside one channel's log. It is
// opaque to clients and valid only for its channel.
type Cursor struct {
	Channel string `json:"channel"`
	// MessageID is the oldest message id of the page the cursor was minted
	// from; the next page is strictly older and excludes it.
	MessageID string `json:"message_id"`
}

// Encode renders the cursor as an opaque token.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses an opaque token back into a Cursor.
func Decode(token string) (Cursor, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	return c, nil
}
