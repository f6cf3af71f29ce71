// Package reactions maintains per-message emoji reaction counts with an
// exactly-one-reaction-per-user invariant:
// sum(Reactions values) == len(UserReactions) at all times.
package reactions

import (
	"context"

	"chatsync/pkg/logger"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// SetReaction records uid's reaction on a message. An existing different
// reaction is swapped atomically under the message lock, so counts are
// never transiently double-counted; repeating the same emoji is a no-op.
func SetReaction(ctx context.Context, messageID, uid, emoji string) error {
	unlock := store.LockMessage(messageID)
	defer unlock()

	m, err := store.GetMessage(messageID)
	if err != nil {
		return err
	}
	if m.UserReactions == nil {
		m.UserReactions = map[string]string{}
	}
	if m.Reactions == nil {
		m.Reactions = map[string]int{}
	}
	prev, had := m.UserReactions[uid]
	if had && prev == emoji {
		return nil
	}
	if had {
		decrement(m.Reactions, prev)
	}
	m.UserReactions[uid] = emoji
	m.Reactions[emoji]++

	if err := store.PutMessage(ctx, m); err != nil {
		return err
	}
	telemetry.ReactionsMutated.Inc()
	logger.Debug("reaction_set", "message", messageID, "uid", uid, "emoji", emoji)
	return nil
}

// ClearReaction removes uid's reaction from a message; no-op when absent.
func ClearReaction(ctx context.Context, messageID, uid string) error {
	unlock := store.LockMessage(messageID)
	defer unlock()

	m, err := store.GetMessage(messageID)
	if err != nil {
		return err
	}
	prev, had := m.UserReactions[uid]
	if !had {
		return nil
	}
	delete(m.UserReactions, uid)
	decrement(m.Reactions, prev)

	if err := store.PutMessage(ctx, m); err != nil {
		return err
	}
	telemetry.ReactionsMutated.Inc()
	logger.Debug("reaction_cleared", "message", messageID, "uid", uid)
	return nil
}

// decrement lowers an emoji count and removes the entry at zero so counts
// never go negative or linger empty.
func decrement(counts map[string]int, emoji string) {
	if counts == nil {
		return
	}
	if counts[emoji] <= 1 {
		delete(counts, emoji)
		return
	}
	counts[emoji]--
}
