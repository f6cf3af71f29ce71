package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/pkg/api/handlers"
	"chatsync/pkg/config"
	"chatsync/pkg/models"
	"chatsync/pkg/store"
	"chatsync/pkg/tail"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	dispatcher := tail.New(16, 16)
	channelList := tail.NewChannelList(16)
	store.SetAppendHook(dispatcher.PublishMessage)
	store.SetChannelEventHook(channelList.PublishChannel)

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	srv := httptest.NewServer(NewRouter(cfg, handlers.Deps{
		Tail:        dispatcher,
		ChannelList: channelList,
	}))
	t.Cleanup(func() {
		srv.Close()
		store.SetAppendHook(nil)
		store.SetChannelEventHook(nil)
		_ = store.Close()
	})
	return srv
}

func do(t *testing.T, srv *httptest.Server, uid, method, path string, body any, out any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "" {
		req.Header.Set("X-Uid", uid)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp
}

func TestRequireUID(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, "", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHealthzAndMetricsBypassAuth(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestDirectChannelFlow(t *testing.T) {
	srv := newTestServer(t)

	var ch models.Channel
	resp := do(t, srv, "alice", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, &ch)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if !ch.IsMember("alice") || !ch.IsMember("bob") {
		t.Fatalf("membership wrong: %v", ch.MemberUIDs)
	}

	// bob opening the same pair lands on the same channel
	var ch2 models.Channel
	do(t, srv, "bob", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "alice"}, &ch2)
	if ch2.ID != ch.ID {
		t.Fatalf("direct channel not deduplicated: %q vs %q", ch2.ID, ch.ID)
	}

	// alice sends, bob reads
	var sent models.Message
	resp = do(t, srv, "alice", http.MethodPost, "/v1/channels/"+ch.ID+"/messages",
		map[string]string{"type": "text", "text": "hello bob"}, &sent)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d", resp.StatusCode)
	}

	var page models.PageResponse
	do(t, srv, "bob", http.MethodGet, "/v1/channels/"+ch.ID+"/messages", nil, &page)
	if len(page.Messages) != 2 { // creation admin + text
		t.Fatalf("expected 2 messages, got %d", len(page.Messages))
	}
	if page.Messages[1].Text != "hello bob" {
		t.Fatalf("unexpected last message: %+v", page.Messages[1])
	}
	if !page.IsBeginning {
		t.Fatal("two messages should fit one page")
	}

	// outsiders are rejected
	resp = do(t, srv, "carol", http.MethodGet, "/v1/channels/"+ch.ID+"/messages", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want 403", resp.StatusCode)
	}

	// channel listing
	var listing struct {
		Channels []models.Channel `json:"channels"`
	}
	do(t, srv, "bob", http.MethodGet, "/v1/users/bob/channels", nil, &listing)
	if len(listing.Channels) != 1 || listing.Channels[0].ID != ch.ID {
		t.Fatalf("bob's listing wrong: %+v", listing.Channels)
	}
	resp = do(t, srv, "bob", http.MethodGet, "/v1/users/alice/channels", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-user listing status = %d, want 403", resp.StatusCode)
	}
}

func TestSendMessageIdempotencyHeader(t *testing.T) {
	srv := newTestServer(t)
	var ch models.Channel
	do(t, srv, "alice", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, &ch)

	send := func() models.Message {
		b, _ := json.Marshal(map[string]string{"type": "text", "text": "once"})
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/channels/"+ch.ID+"/messages", bytes.NewReader(b))
		req.Header.Set("X-Uid", "alice")
		req.Header.Set("X-Idempotency-Key", "retry-1")
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var m models.Message
		if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
			t.Fatal(err)
		}
		return m
	}
	first := send()
	second := send()
	if first.ID != second.ID {
		t.Fatalf("idempotent retry created a new message: %q vs %q", first.ID, second.ID)
	}
}

func TestPaginationOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	var ch models.Channel
	do(t, srv, "alice", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, &ch)
	for i := 0; i < 12; i++ {
		do(t, srv, "alice", http.MethodPost, "/v1/channels/"+ch.ID+"/messages",
			map[string]string{"type": "text", "text": fmt.Sprintf("m%d", i)}, nil)
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		path := "/v1/channels/" + ch.ID + "/messages?limit=5"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		var page models.PageResponse
		resp := do(t, srv, "bob", http.MethodGet, path, nil, &page)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("page status = %d", resp.StatusCode)
		}
		for _, m := range page.Messages {
			if seen[m.ID] {
				t.Fatalf("duplicate %q across pages", m.ID)
			}
			seen[m.ID] = true
		}
		if page.IsBeginning {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 13 { // 12 texts + creation admin
		t.Fatalf("walk saw %d messages, want 13", len(seen))
	}
}

func TestReactionsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	var ch models.Channel
	do(t, srv, "alice", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, &ch)
	var sent models.Message
	do(t, srv, "alice", http.MethodPost, "/v1/channels/"+ch.ID+"/messages",
		map[string]string{"type": "text", "text": "react to me"}, &sent)

	var m models.Message
	resp := do(t, srv, "bob", http.MethodPut, "/v1/messages/"+sent.ID+"/reactions",
		map[string]string{"emoji": "👍"}, &m)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status = %d", resp.StatusCode)
	}
	if m.Reactions["👍"] != 1 {
		t.Fatalf("reaction not recorded: %v", m.Reactions)
	}

	resp = do(t, srv, "carol", http.MethodPut, "/v1/messages/"+sent.ID+"/reactions",
		map[string]string{"emoji": "👍"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider reaction status = %d, want 403", resp.StatusCode)
	}

	// decode into a fresh value: Unmarshal merges into existing maps, so
	// reusing m would keep the stale count and mask the clear
	var cleared models.Message
	do(t, srv, "bob", http.MethodDelete, "/v1/messages/"+sent.ID+"/reactions", nil, &cleared)
	if len(cleared.Reactions) != 0 {
		t.Fatalf("reaction not cleared: %v", cleared.Reactions)
	}
}

func TestGroupMembershipOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	var ch models.Channel
	resp := do(t, srv, "alice", http.MethodPost, "/v1/channels/group",
		map[string]any{"name": "team", "members": []string{"bob", "carol"}}, &ch)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	// non-admin add is rejected
	resp = do(t, srv, "bob", http.MethodPost, "/v1/channels/"+ch.ID+"/members",
		map[string]any{"members": []string{"dave"}}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin add status = %d, want 403", resp.StatusCode)
	}

	do(t, srv, "alice", http.MethodPost, "/v1/channels/"+ch.ID+"/members",
		map[string]any{"members": []string{"dave"}}, &ch)
	if !ch.IsMember("dave") {
		t.Fatalf("dave not added: %v", ch.MemberUIDs)
	}

	// members can only remove themselves
	resp = do(t, srv, "bob", http.MethodDelete, "/v1/channels/"+ch.ID+"/members/carol", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("removing another member status = %d, want 403", resp.StatusCode)
	}
	do(t, srv, "carol", http.MethodDelete, "/v1/channels/"+ch.ID+"/members/carol", nil, &ch)
	if ch.IsMember("carol") {
		t.Fatalf("carol still a member: %v", ch.MemberUIDs)
	}

	// rename is admin-gated
	resp = do(t, srv, "bob", http.MethodPut, "/v1/channels/"+ch.ID, map[string]string{"name": "renamed"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin rename status = %d, want 403", resp.StatusCode)
	}
	do(t, srv, "alice", http.MethodPut, "/v1/channels/"+ch.ID, map[string]string{"name": "renamed"}, &ch)
	if ch.Name != "renamed" {
		t.Fatalf("name = %q", ch.Name)
	}
}

func TestUserProfileOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	var u models.User
	resp := do(t, srv, "alice", http.MethodPut, "/v1/users/alice",
		map[string]string{"username": "alice", "bio": "hello"}, &u)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	resp = do(t, srv, "alice", http.MethodPut, "/v1/users/bob", map[string]string{"username": "x"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-user put status = %d, want 403", resp.StatusCode)
	}
	var got models.User
	do(t, srv, "bob", http.MethodGet, "/v1/users/alice", nil, &got)
	if got.Username != "alice" {
		t.Fatalf("profile not stored: %+v", got)
	}
	resp = do(t, srv, "bob", http.MethodGet, "/v1/users/nobody", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing profile status = %d, want 404", resp.StatusCode)
	}
}

func wsDial(t *testing.T, srv *httptest.Server, uid, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	hdr := http.Header{"X-Uid": []string{uid}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("dial %s: %v (resp=%v)", path, err, resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var v T
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read ws: %v", err)
	}
	return v
}

func TestSubscribeChannelStream(t *testing.T) {
	srv := newTestServer(t)
	var ch models.Channel
	do(t, srv, "alice", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, &ch)
	var before models.Message
	do(t, srv, "alice", http.MethodPost, "/v1/channels/"+ch.ID+"/messages",
		map[string]string{"type": "text", "text": "before subscribe"}, &before)

	conn := wsDial(t, srv, "bob", "/v1/channels/"+ch.ID+"/subscribe?after="+ch.FirstMessageID)

	// catch-up: the message appended before subscribing arrives first
	got := readWS[models.Message](t, conn)
	if got.ID != before.ID {
		t.Fatalf("catch-up message = %q, want %q", got.ID, before.ID)
	}

	// live: a new append is streamed
	var live models.Message
	do(t, srv, "alice", http.MethodPost, "/v1/channels/"+ch.ID+"/messages",
		map[string]string{"type": "text", "text": "after subscribe"}, &live)
	got = readWS[models.Message](t, conn)
	if got.ID != live.ID || got.Text != "after subscribe" {
		t.Fatalf("live message = %+v, want %q", got, live.ID)
	}
}

func TestSubscribeChannelRejectsOutsider(t *testing.T) {
	srv := newTestServer(t)
	var ch models.Channel
	do(t, srv, "alice", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, &ch)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/channels/" + ch.ID + "/subscribe"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Uid": []string{"carol"}})
	if err == nil {
		t.Fatal("outsider subscribe should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 handshake, got %+v", resp)
	}
}

func TestSubscribeUserChannelsStream(t *testing.T) {
	srv := newTestServer(t)
	var ch models.Channel
	do(t, srv, "alice", http.MethodPost, "/v1/channels/direct", map[string]string{"partner": "bob"}, &ch)

	conn := wsDial(t, srv, "bob", "/v1/users/bob/channels/subscribe")

	// snapshot of the existing channel
	got := readWS[models.Channel](t, conn)
	if got.ID != ch.ID {
		t.Fatalf("snapshot channel = %q, want %q", got.ID, ch.ID)
	}

	// an append updates the last-message preview
	do(t, srv, "alice", http.MethodPost, "/v1/channels/"+ch.ID+"/messages",
		map[string]string{"type": "text", "text": "ping"}, nil)
	got = readWS[models.Channel](t, conn)
	if got.LastMessage != "ping" {
		t.Fatalf("update preview = %q, want ping", got.LastMessage)
	}
}
