// Package directory creates channels and guards the uniqueness of direct
// (1:1) channels, keeping the per-user channel index and the symmetric
// direct-channel index in step with channel metadata.
package directory

import (
	"context"
	"time"

	"chatsync/pkg/errs"
	"chatsync/pkg/ids"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/store"
	"chatsync/pkg/telemetry"
)

// CreateDirectChannel returns the direct channel for the unordered pair
// (a, b), creating it on first use. Concurrent creation from both sides
// resolves to a single winner: the check-then-create runs under the pair
// lock, so the loser simply observes and returns the winner's channel.
func CreateDirectChannel(ctx context.Context, a, b string) (models.Channel, error) {
	if a == "" || b == "" || a == b {
		return models.Channel{}, errs.ErrNoPartner
	}
	unlock := store.LockPair(a, b)
	defer unlock()

	if id, err := store.GetDirectChannelID(a, b); err != nil {
		return models.Channel{}, err
	} else if id != "" {
		return store.GetChannel(id)
	}

	ch := models.Channel{
		ID:         ids.NewChannelID(),
		Kind:       models.ChannelDirect,
		CreatedBy:  a,
		CreationTS: time.Now().UTC().UnixNano(),
		MemberUIDs: []string{a, b},
		AdminUIDs:  []string{a},
	}
	if err := createChannel(ctx, ch); err != nil {
		return models.Channel{}, err
	}
	if err := store.PutDirectChannelID(ctx, a, b, ch.ID); err != nil {
		return models.Channel{}, err
	}
	telemetry.ChannelsCreated.WithLabelValues("direct").Inc()
	logger.Info("direct_channel_created", "channel", ch.ID, "a", a, "b", b)
	return store.GetChannel(ch.ID)
}

// CreateGroupChannel creates a group channel with the creator plus
// memberUIDs. The member list must be non-empty and may not exceed
// MaxGroupParticipants slots beyond the creator.
func CreateGroupChannel(ctx context.Context, creator string, memberUIDs []string, name string) (models.Channel, error) {
	members := dedup(memberUIDs, creator)
	if len(members) == 0 {
		return models.Channel{}, errs.ErrNoPartner
	}
	if len(members) > models.MaxGroupParticipants {
		return models.Channel{}, errs.ErrTooManyParticipants
	}
	ch := models.Channel{
		ID:         ids.NewChannelID(),
		Kind:       models.ChannelGroup,
		Name:       name,
		CreatedBy:  creator,
		CreationTS: time.Now().UTC().UnixNano(),
		MemberUIDs: append([]string{creator}, members...),
		AdminUIDs:  []string{creator},
	}
	if err := createChannel(ctx, ch); err != nil {
		return models.Channel{}, err
	}
	telemetry.ChannelsCreated.WithLabelValues("group").Inc()
	logger.Info("group_channel_created", "channel", ch.ID, "creator", creator, "members", len(ch.MemberUIDs))
	return store.GetChannel(ch.ID)
}

// createChannel persists metadata, indexes every member, and appends the
// synthetic creation message that anchors the first-message boundary for
// backward pagination.
func createChannel(ctx context.Context, ch models.Channel) error {
	if err := store.SaveChannel(ctx, ch); err != nil {
		return err
	}
	for _, uid := range ch.MemberUIDs {
		if err := store.AddUserChannel(ctx, uid, ch.ID); err != nil {
			return err
		}
	}
	_, err := store.AppendMessage(ctx, ch.ID, models.Message{
		OwnerUID:  ch.CreatedBy,
		Type:      models.MessageAdmin,
		AdminType: models.AdminChannelCreation,
		Text:      "channel created",
	}, "")
	return err
}

// AddMembers adds uids to a group channel; membership mutation is
// admin-gated. Direct channels are pinned to their user pair and reject
// membership changes outright.
func AddMembers(ctx context.Context, channelID, actor string, uids []string) (models.Channel, error) {
	var added []string
	_, err := store.MutateChannel(ctx, channelID, func(c *models.Channel) error {
		if c.IsDirect() {
			return errs.ErrNotGroupChannel
		}
		if !c.IsAdmin(actor) {
			return errs.ErrNotAdmin
		}
		for _, uid := range uids {
			if uid == "" || c.IsMember(uid) {
				continue
			}
			if len(c.MemberUIDs) >= models.MaxGroupParticipants+1 {
				return errs.ErrTooManyParticipants
			}
			c.MemberUIDs = append(c.MemberUIDs, uid)
			added = append(added, uid)
		}
		return nil
	})
	if err != nil {
		return models.Channel{}, err
	}
	if len(added) == 0 {
		// every requested uid was already a member; nothing to announce
		return store.GetChannel(channelID)
	}
	for _, uid := range added {
		if err := store.AddUserChannel(ctx, uid, channelID); err != nil {
			return models.Channel{}, err
		}
	}
	_, err = store.AppendMessage(ctx, channelID, models.Message{
		OwnerUID:  actor,
		Type:      models.MessageAdmin,
		AdminType: models.AdminMemberAdded,
		Text:      "members added",
	}, "")
	if err != nil {
		return models.Channel{}, err
	}
	return store.GetChannel(channelID)
}

// LeaveChannel removes uid from a group channel and appends the matching
// admin message.
func LeaveChannel(ctx context.Context, channelID, uid string) (models.Channel, error) {
	_, err := store.MutateChannel(ctx, channelID, func(c *models.Channel) error {
		if c.IsDirect() {
			return errs.ErrNotGroupChannel
		}
		if !c.IsMember(uid) {
			return errs.ErrNotMember
		}
		c.MemberUIDs = remove(c.MemberUIDs, uid)
		c.AdminUIDs = remove(c.AdminUIDs, uid)
		return nil
	})
	if err != nil {
		return models.Channel{}, err
	}
	if err := store.RemoveUserChannel(ctx, uid, channelID); err != nil {
		return models.Channel{}, err
	}
	_, err = store.AppendMessage(ctx, channelID, models.Message{
		OwnerUID:  uid,
		Type:      models.MessageAdmin,
		AdminType: models.AdminMemberLeft,
		Text:      "member left",
	}, "")
	if err != nil {
		return models.Channel{}, err
	}
	return store.GetChannel(channelID)
}

// RenameChannel changes a group channel's name (admin-gated) and appends
// the channelNameChanged admin message.
func RenameChannel(ctx context.Context, channelID, actor, name string) (models.Channel, error) {
	_, err := store.MutateChannel(ctx, channelID, func(c *models.Channel) error {
		if c.IsDirect() {
			return errs.ErrNotGroupChannel
		}
		if !c.IsAdmin(actor) {
			return errs.ErrNotAdmin
		}
		c.Name = name
		return nil
	})
	if err != nil {
		return models.Channel{}, err
	}
	_, err = store.AppendMessage(ctx, channelID, models.Message{
		OwnerUID:  actor,
		Type:      models.MessageAdmin,
		AdminType: models.AdminChannelNameChanged,
		Text:      name,
	}, "")
	if err != nil {
		return models.Channel{}, err
	}
	return store.GetChannel(channelID)
}

// dedup drops empty entries, duplicates, and the creator itself.
func dedup(uids []string, creator string) []string {
	seen := map[string]bool{creator: true, "": true}
	out := make([]string, 0, len(uids))
	for _, u := range uids {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func remove(list []string, uid string) []string {
	out := list[:0]
	for _, u := range list {
		if u != uid {
			out = append(out, u)
		}
	}
	return out
}
