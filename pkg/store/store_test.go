package store

import (
	"context"
	"errors"
	"testing"

	"chatsync/pkg/errs"
	"chatsync/pkg/models"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() {
		SetAppendHook(nil)
		SetChannelEventHook(nil)
		if err := Close(); err != nil {
			t.Fatalf("close pebble: %v", err)
		}
	})
}

func mkChannel(t *testing.T, id string, members ...string) {
	t.Helper()
	ch := models.Channel{ID: id, CreatedBy: members[0], MemberUIDs: members, AdminUIDs: members[:1]}
	if err := SaveChannel(context.Background(), ch); err != nil {
		t.Fatalf("save channel: %v", err)
	}
}

func appendText(t *testing.T, channel, uid, text string) models.Message {
	t.Helper()
	m, err := AppendMessage(context.Background(), channel, models.Message{
		OwnerUID: uid, Type: models.MessageText, Text: text,
	}, "")
	if err != nil {
		t.Fatalf("append %q: %v", text, err)
	}
	return m
}

func TestAppendAssignsOrderedIDs(t *testing.T) {
	openTestStore(t)
	mkChannel(t, "c1", "alice", "bob")

	var prev string
	for i := 0; i < 20; i++ {
		m := appendText(t, "c1", "alice", "hello")
		if m.ID <= prev {
			t.Fatalf("ids not ascending: %q after %q", m.ID, prev)
		}
		prev = m.ID
	}

	msgs, _, err := ReadRange("c1", "", "", 0)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if len(msgs) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			t.Fatalf("read order broken at %d", i)
		}
	}
}

func TestAppendRequiresChannel(t *testing.T) {
	openTestStore(t)
	_, err := AppendMessage(context.Background(), "nope", models.Message{
		OwnerUID: "alice", Type: models.MessageText, Text: "x",
	}, "")
	if !errors.Is(err, errs.ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestAppendIdempotencyKey(t *testing.T) {
	openTestStore(t)
	mkChannel(t, "c1", "alice")

	first, err := AppendMessage(context.Background(), "c1", models.Message{
		OwnerUID: "alice", Type: models.MessageText, Text: "once",
	}, "key-1")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	retry, err := AppendMessage(context.Background(), "c1", models.Message{
		OwnerUID: "alice", Type: models.MessageText, Text: "once",
	}, "key-1")
	if err != nil {
		t.Fatalf("retry append: %v", err)
	}
	if retry.ID != first.ID {
		t.Fatalf("retry produced a new message: %q vs %q", retry.ID, first.ID)
	}
	msgs, _, err := ReadRange("c1", "", "", 0)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(msgs))
	}
}

func TestAppendUpdatesChannelPreview(t *testing.T) {
	openTestStore(t)
	mkChannel(t, "c1", "alice", "bob")

	first := appendText(t, "c1", "alice", "first")
	last := appendText(t, "c1", "bob", "last")

	ch, err := GetChannel("c1")
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if ch.LastMessage != "last" || ch.LastMessageID != last.ID {
		t.Fatalf("preview not updated: %+v", ch)
	}
	if ch.FirstMessageID != first.ID {
		t.Fatalf("first message id = %q, want %q", ch.FirstMessageID, first.ID)
	}
}

func TestReadTailIsIdempotentByID(t *testing.T) {
	openTestStore(t)
	mkChannel(t, "c1", "alice")

	var all []models.Message
	for i := 0; i < 10; i++ {
		all = append(all, appendText(t, "c1", "alice", "m"))
	}

	tail, err := ReadTail("c1", all[4].ID, 0)
	if err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if len(tail) != 5 {
		t.Fatalf("expected 5 tail messages, got %d", len(tail))
	}
	if tail[0].ID != all[5].ID {
		t.Fatalf("tail starts at %q, want %q", tail[0].ID, all[5].ID)
	}

	// same call again yields the same window
	again, err := ReadTail("c1", all[4].ID, 0)
	if err != nil {
		t.Fatalf("read tail again: %v", err)
	}
	if len(again) != len(tail) {
		t.Fatalf("tail not stable: %d vs %d", len(again), len(tail))
	}
}

func TestReadPageBefore(t *testing.T) {
	openTestStore(t)
	mkChannel(t, "c1", "alice")

	var all []models.Message
	for i := 0; i < 7; i++ {
		all = append(all, appendText(t, "c1", "alice", "m"))
	}

	page, adjusted, err := ReadPageBefore("c1", "", 3)
	if err != nil {
		t.Fatalf("newest page: %v", err)
	}
	if adjusted {
		t.Fatal("empty boundary should not adjust")
	}
	if len(page) != 3 || page[2].ID != all[6].ID || page[0].ID != all[4].ID {
		t.Fatalf("unexpected newest page: %+v", idsOf(page))
	}

	older, _, err := ReadPageBefore("c1", page[0].ID, 3)
	if err != nil {
		t.Fatalf("older page: %v", err)
	}
	if len(older) != 3 || older[2].ID != all[3].ID {
		t.Fatalf("unexpected older page: %+v", idsOf(older))
	}

	// a boundary id that was never stored still yields the nearest window
	_, adjusted, err = ReadPageBefore("c1", all[3].ID+"0", 3)
	if err != nil {
		t.Fatalf("adjusted page: %v", err)
	}
	if !adjusted {
		t.Fatal("expected adjusted flag for unknown boundary")
	}
}

func TestAppendHookOrdering(t *testing.T) {
	openTestStore(t)
	mkChannel(t, "c1", "alice")

	var got []string
	SetAppendHook(func(channelID string, payload []byte) {
		got = append(got, channelID)
	})

	appendText(t, "c1", "alice", "a")
	appendText(t, "c1", "alice", "b")
	if len(got) != 2 {
		t.Fatalf("hook fired %d times, want 2", len(got))
	}
}

func TestDirectChannelIndexBothDirections(t *testing.T) {
	openTestStore(t)
	if err := PutDirectChannelID(context.Background(), "alice", "bob", "c9"); err != nil {
		t.Fatalf("put direct: %v", err)
	}
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		id, err := GetDirectChannelID(pair[0], pair[1])
		if err != nil {
			t.Fatalf("get direct: %v", err)
		}
		if id != "c9" {
			t.Fatalf("direct id = %q, want c9", id)
		}
	}
}

func TestCompareAndSwap(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	ok, err := CompareAndSwap(ctx, "k1", nil, []byte("v1"))
	if err != nil || !ok {
		t.Fatalf("initial cas: ok=%v err=%v", ok, err)
	}
	ok, err = CompareAndSwap(ctx, "k1", nil, []byte("v2"))
	if err != nil || ok {
		t.Fatalf("cas against absent should fail: ok=%v err=%v", ok, err)
	}
	ok, err = CompareAndSwap(ctx, "k1", []byte("v1"), []byte("v2"))
	if err != nil || !ok {
		t.Fatalf("cas with matching old: ok=%v err=%v", ok, err)
	}
	v, err := GetKey("k1")
	if err != nil || string(v) != "v2" {
		t.Fatalf("value = %q err=%v", v, err)
	}
}

func TestListUserChannelsSkipsVanished(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	mkChannel(t, "c1", "alice")
	mkChannel(t, "c2", "alice")
	if err := AddUserChannel(ctx, "alice", "c1"); err != nil {
		t.Fatal(err)
	}
	if err := AddUserChannel(ctx, "alice", "c2"); err != nil {
		t.Fatal(err)
	}
	// duplicate relation entries must not duplicate results
	if err := AddUserChannel(ctx, "alice", "c2"); err != nil {
		t.Fatal(err)
	}
	if err := DeleteKey(ctx, ChannelMetaKey("c2")); err != nil {
		t.Fatal(err)
	}
	chs, err := ListUserChannels("alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chs) != 1 || chs[0].ID != "c1" {
		t.Fatalf("unexpected listing: %+v", chs)
	}
}

func idsOf(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
