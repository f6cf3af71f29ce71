package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/errs"
	"chatsync/pkg/models"
)

// GetChannel returns channel metadata or ErrChannelNotFound.
func GetChannel(channelID string) (models.Channel, error) {
	v, err := getKey(ChannelMetaKey(channelID))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.Channel{}, errs.ErrChannelNotFound
	}
	if err != nil {
		return models.Channel{}, err
	}
	var ch models.Channel
	if err := json.Unmarshal(v, &ch); err != nil {
		return models.Channel{}, fmt.Errorf("invalid channel JSON: %w", err)
	}
	return ch, nil
}

// putChannel writes channel metadata. Callers must hold the channel lock.
func putChannel(ctx context.Context, ch models.Channel) error {
	ch.MembersCount = len(ch.MemberUIDs)
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to marshal channel: %w", err)
	}
	return setSync(ctx, ChannelMetaKey(ch.ID), data)
}

// SaveChannel writes channel metadata under the channel lock and notifies
// channel-list subscribers.
func SaveChannel(ctx context.Context, ch models.Channel) error {
	unlock := LockChannel(ch.ID)
	defer unlock()
	if err := putChannel(ctx, ch); err != nil {
		return err
	}
	if channelHook != nil {
		ch.MembersCount = len(ch.MemberUIDs)
		if b, err := json.Marshal(ch); err == nil {
			channelHook(b, ch.MemberUIDs)
		}
	}
	return nil
}

// MutateChannel loads a channel, applies fn under the channel lock, and
// persists the result. fn may return an error to abort.
func MutateChannel(ctx context.Context, channelID string, fn func(*models.Channel) error) (models.Channel, error) {
	unlock := LockChannel(channelID)
	defer unlock()
	ch, err := GetChannel(channelID)
	if err != nil {
		return models.Channel{}, err
	}
	if err := fn(&ch); err != nil {
		return models.Channel{}, err
	}
	if err := putChannel(ctx, ch); err != nil {
		return models.Channel{}, err
	}
	if channelHook != nil {
		ch.MembersCount = len(ch.MemberUIDs)
		if b, err := json.Marshal(ch); err == nil {
			channelHook(b, ch.MemberUIDs)
		}
	}
	return ch, nil
}

// AddUserChannel records channel membership in the per-user index.
func AddUserChannel(ctx context.Context, uid, channelID string) error {
	return setSync(ctx, UserChannelKey(uid, channelID), []byte("1"))
}

// RemoveUserChannel deletes a membership entry from the per-user index.
func RemoveUserChannel(ctx context.Context, uid, channelID string) error {
	return DeleteKey(ctx, UserChannelKey(uid, channelID))
}

// ListUserChannels returns the channels a user belongs to, deduplicated by
// channel id.
func ListUserChannels(uid string) ([]models.Channel, error) {
	keys, err := ListKeys(UserChannelPrefix(uid))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(keys))
	out := make([]models.Channel, 0, len(keys))
	prefix := UserChannelPrefix(uid)
	for _, k := range keys {
		channelID := strings.TrimPrefix(k, prefix)
		if channelID == "" || seen[channelID] {
			continue
		}
		seen[channelID] = true
		ch, err := GetChannel(channelID)
		if errors.Is(err, errs.ErrChannelNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// GetDirectChannelID resolves the direct channel for a user pair, in either
// key direction. Returns "" when none exists.
func GetDirectChannelID(a, b string) (string, error) {
	v, err := getKey(DirectKey(a, b))
	if errors.Is(err, pebble.ErrNotFound) {
		v, err = getKey(DirectKey(b, a))
		if errors.Is(err, pebble.ErrNotFound) {
			return "", nil
		}
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// PutDirectChannelID writes both directions of the direct-channel index.
// Callers must hold the pair lock.
func PutDirectChannelID(ctx context.Context, a, b, channelID string) error {
	if err := setSync(ctx, DirectKey(a, b), []byte(channelID)); err != nil {
		return err
	}
	return setSync(ctx, DirectKey(b, a), []byte(channelID))
}
