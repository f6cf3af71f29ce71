package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chatsync/pkg/auth"
	"chatsync/pkg/logger"
	"chatsync/pkg/store"
	"chatsync/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the gateway upstream terminates untrusted origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SubscribeChannel streams a channel's messages over a websocket. The
// catch-up read and the live subscription are stitched by message id, so a
// client that reconnects with ?after=<last seen id> sees every message
// exactly once, in append order.
func SubscribeChannel(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	if _, err := memberChannel(r, channelID); err != nil {
		writeErr(w, err)
		return
	}
	after := r.URL.Query().Get("after")

	// Subscribe before the catch-up read: anything appended during the read
	// is buffered by the subscription and deduplicated below.
	sub := deps.Tail.Subscribe(channelID, after)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		logger.Warn("ws_upgrade_failed", "channel", channelID, "err", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go readUntilClosed(conn, func() { sub.Cancel(); close(done) })

	history, err := store.ReadTail(channelID, after, 0)
	if err != nil {
		logger.Warn("ws_catchup_failed", "channel", channelID, "err", err)
		sub.Cancel()
		return
	}
	lastSent := after
	for _, m := range history {
		if err := writeJSON(conn, m); err != nil {
			sub.Cancel()
			return
		}
		lastSent = m.ID
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case m, ok := <-sub.Ch():
			if !ok {
				// dropped for falling behind; client resubscribes with after=lastSent
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "fell behind"),
					time.Now().Add(writeWait))
				return
			}
			if m.ID <= lastSent {
				continue
			}
			if err := writeJSON(conn, m); err != nil {
				sub.Cancel()
				return
			}
			lastSent = m.ID
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				sub.Cancel()
				return
			}
		case <-done:
			return
		}
	}
}

// SubscribeUserChannels streams the caller's channel list: a snapshot of
// every current channel, then an updated record whenever membership or a
// last-message preview changes.
func SubscribeUserChannels(w http.ResponseWriter, r *http.Request) {
	uid := auth.UID(r.Context())
	if mux.Vars(r)["uid"] != uid {
		utils.JSONError(w, http.StatusForbidden, "cannot subscribe to another user's channels")
		return
	}

	sub := deps.ChannelList.Subscribe(uid)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		logger.Warn("ws_upgrade_failed", "uid", uid, "err", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go readUntilClosed(conn, func() { sub.Cancel(); close(done) })

	snapshot, err := store.ListUserChannels(uid)
	if err != nil {
		logger.Warn("ws_snapshot_failed", "uid", uid, "err", err)
		sub.Cancel()
		return
	}
	for _, ch := range snapshot {
		if err := writeJSON(conn, ch); err != nil {
			sub.Cancel()
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case ch, ok := <-sub.Ch():
			if !ok {
				return
			}
			if err := writeJSON(conn, ch); err != nil {
				sub.Cancel()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				sub.Cancel()
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readUntilClosed drains client frames (we expect none but pongs) and
// fires onClose when the peer goes away.
func readUntilClosed(conn *websocket.Conn, onClose func()) {
	defer onClose()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
