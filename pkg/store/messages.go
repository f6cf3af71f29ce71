package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/errs"
	"chatsync/pkg/ids"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/telemetry"
)

// AppendMessage appends a message to a channel's log. It assigns a
// time-ordered id and server timestamp, writes durably, updates the
// channel's last-message preview, and only then triggers live fanout, so
// dispatch happens-after the append is visible to reads.
//
// A non-empty idemKey makes retries safe: the first append under a given
// (channel, key) wins and later attempts return the stored message.
func AppendMessage(ctx context.Context, channelID string, m models.Message, idemKey string) (models.Message, error) {
	if db == nil {
		return models.Message{}, notReady()
	}
	unlock := LockChannel(channelID)
	defer unlock()

	ch, err := GetChannel(channelID)
	if err != nil {
		return models.Message{}, err
	}

	if idemKey != "" {
		if v, err := getKey(IdemKey(channelID, idemKey)); err == nil {
			var prev models.Message
			if json.Unmarshal(v, &prev) == nil {
				logger.Debug("append_idempotent_hit", "channel", channelID, "key", idemKey, "id", prev.ID)
				return prev, nil
			}
		}
	}

	m.Channel = channelID
	if m.ID == "" {
		m.ID = ids.NewMessageID()
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}

	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := setSync(ctx, MessageKey(channelID, m.ID), data); err != nil {
		return models.Message{}, err
	}
	// message id -> channel index, used by reaction lookups
	if err := setSync(ctx, MessageIdxKey(m.ID), []byte(channelID)); err != nil {
		return models.Message{}, err
	}
	if idemKey != "" {
		if err := setSync(ctx, IdemKey(channelID, idemKey), data); err != nil {
			return models.Message{}, err
		}
	}

	// update channel preview + boundaries
	ch.LastMessage = m.Preview()
	ch.LastMessageType = m.Type
	ch.LastMessageTS = m.TS
	ch.LastMessageID = m.ID
	if ch.FirstMessageID == "" {
		ch.FirstMessageID = m.ID
	}
	if err := putChannel(ctx, ch); err != nil {
		return models.Message{}, err
	}

	telemetry.MessagesAppended.Inc()
	logger.Info("message_appended", "channel", channelID, "id", m.ID, "type", m.Type)

	if appendHook != nil {
		appendHook(channelID, data)
	}
	if channelHook != nil {
		if b, err := json.Marshal(ch); err == nil {
			channelHook(b, ch.MemberUIDs)
		}
	}
	return m, nil
}

// GetMessage returns one message by id, resolving its channel through the
// message index.
func GetMessage(messageID string) (models.Message, error) {
	chID, err := getKey(MessageIdxKey(messageID))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.Message{}, errs.ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	v, err := getKey(MessageKey(string(chID), messageID))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.Message{}, errs.ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return models.Message{}, fmt.Errorf("invalid message JSON: %w", err)
	}
	return m, nil
}

// PutMessage overwrites a stored message in place. Only the reaction
// aggregator uses it; message content is immutable otherwise. Callers must
// hold the message lock.
func PutMessage(ctx context.Context, m models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return setSync(ctx, MessageKey(m.Channel, m.ID), data)
}

// ReadRange returns at most limit messages of a channel in ascending id
// order, starting at fromID (inclusive) and stopping at toID (inclusive)
// when set. A fromID that no longer exists degrades to the nearest valid
// window; the second return reports that adjustment.
func ReadRange(channelID, fromID, toID string, limit int) ([]models.Message, bool, error) {
	if db == nil {
		return nil, false, notReady()
	}
	if _, err := GetChannel(channelID); err != nil {
		return nil, false, err
	}
	adjusted := false
	if fromID != "" {
		if _, err := getKey(MessageKey(channelID, fromID)); errors.Is(err, pebble.ErrNotFound) {
			adjusted = true
		}
	}
	iter, err := db.NewIter(prefixBounds(MessagePrefix(channelID)))
	if err != nil {
		return nil, false, err
	}
	defer iter.Close()

	start := []byte(MessagePrefix(channelID))
	if fromID != "" {
		start = []byte(MessageKey(channelID, fromID))
	}
	var stop []byte
	if toID != "" {
		stop = []byte(MessageKey(channelID, toID))
	}

	var out []models.Message
	for valid := iter.SeekGE(start); valid; valid = iter.Next() {
		if stop != nil && string(iter.Key()) > string(stop) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, adjusted, fmt.Errorf("invalid message JSON: %w", err)
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, adjusted, iter.Error()
}

// ReadTail returns up to limit messages with id strictly greater than
// afterID, in ascending order. It is idempotent by id: re-reading with the
// last delivered id never skips or duplicates, even racing live dispatch.
func ReadTail(channelID, afterID string, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, notReady()
	}
	if _, err := GetChannel(channelID); err != nil {
		return nil, err
	}
	iter, err := db.NewIter(prefixBounds(MessagePrefix(channelID)))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	start := []byte(MessagePrefix(channelID))
	if afterID != "" {
		start = []byte(MessageKey(channelID, afterID))
	}
	var out []models.Message
	for valid := iter.SeekGE(start); valid; valid = iter.Next() {
		if afterID != "" && string(iter.Key()) == MessageKey(channelID, afterID) {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid message JSON: %w", err)
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// ReadPageBefore returns up to limit messages strictly older than beforeID
// in ascending order. An empty beforeID reads the newest page. The second
// return reports whether a non-empty beforeID no longer existed.
func ReadPageBefore(channelID, beforeID string, limit int) ([]models.Message, bool, error) {
	if db == nil {
		return nil, false, notReady()
	}
	if _, err := GetChannel(channelID); err != nil {
		return nil, false, err
	}
	adjusted := false
	if beforeID != "" {
		if _, err := getKey(MessageKey(channelID, beforeID)); errors.Is(err, pebble.ErrNotFound) {
			adjusted = true
		}
	}
	iter, err := db.NewIter(prefixBounds(MessagePrefix(channelID)))
	if err != nil {
		return nil, false, err
	}
	defer iter.Close()

	var valid bool
	if beforeID == "" {
		valid = iter.Last()
	} else {
		valid = iter.SeekLT([]byte(MessageKey(channelID, beforeID)))
	}
	var rev []models.Message
	for ; valid; valid = iter.Prev() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, adjusted, fmt.Errorf("invalid message JSON: %w", err)
		}
		rev = append(rev, m)
		if limit > 0 && len(rev) >= limit {
			break
		}
	}
	// reverse into ascending order
	out := make([]models.Message, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out, adjusted, iter.Error()
}
