package models

// PageRequest carries cursor pagination parameters for backward history
// reads.
type PageRequest struct {
	Cursor   string `json:"cursor,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// PageResponse describes one backward page of a channel's log.
type PageResponse struct {
	Messages []Message `json:"messages"`
	// NextCursor points at the oldest message of this page; passing it back
	// returns the page immediately older. Empty when IsBeginning is true.
	NextCursor  string `json:"next_cursor,omitempty"`
	IsBeginning bool   `json:"is_beginning"`
	// CursorAdjusted is set when the supplied cursor referenced a deleted or
	// unknown message and the window was moved to the nearest valid boundary.
	CursorAdjusted bool `json:"cursor_adjusted,omitempty"`
}
