// Package tail pushes newly appended messages to live subscribers, in
// append order, with a bounded per-channel replay window. It is the fanout
// stage that runs after an append is durably visible in the store.
package tail

import (
	"encoding/json"
	"sync"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/telemetry"
)

// Dispatcher fans appended messages out to channel subscribers. Channels
// are fully independent; a slow subscriber only ever loses its own
// subscription.
type Dispatcher struct {
	mu    sync.RWMutex
	feeds map[string]*feed

	replayWindow int
	subBuffer    int
}

type feed struct {
	mu sync.Mutex
	// recent is the bounded replay window, ascending by id.
	recent []models.Message
	subs   map[*Subscription]bool
}

// Subscription is one consumer's live stream. Messages arrive on Ch in
// append order; the channel is closed when the subscriber is cancelled or
// dropped for falling behind.
type Subscription struct {
	ch      chan models.Message
	lastID  string
	d       *Dispatcher
	channel string
	once    sync.Once
}

// Ch returns the receive side of the subscription.
func (s *Subscription) Ch() <-chan models.Message { return s.ch }

// Cancel detaches the subscription. It is safe to call more than once and
// takes effect immediately; no further deliveries occur.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.d.drop(s.channel, s, false)
	})
}

// New builds a Dispatcher with the given replay window and per-subscriber
// buffer depth.
func New(replayWindow, subBuffer int) *Dispatcher {
	if replayWindow <= 0 {
		replayWindow = 256
	}
	if subBuffer <= 0 {
		subBuffer = 64
	}
	// the buffer must hold a full replay, or a fresh subscriber could be
	// dropped before reading anything
	if subBuffer < replayWindow {
		subBuffer = replayWindow
	}
	return &Dispatcher{
		feeds:        make(map[string]*feed),
		replayWindow: replayWindow,
		subBuffer:    subBuffer,
	}
}

func (d *Dispatcher) feedFor(channelID string) *feed {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.feeds[channelID]
	if !ok {
		f = &feed{subs: make(map[*Subscription]bool)}
		d.feeds[channelID] = f
	}
	return f
}

// Subscribe attaches a live consumer to a channel. Messages already in the
// replay window with id > afterID are delivered first, then new appends
// stream in order. Resubscribing with a later afterID never replays older
// messages.
func (d *Dispatcher) Subscribe(channelID, afterID string) *Subscription {
	f := d.feedFor(channelID)
	s := &Subscription{
		ch:      make(chan models.Message, d.subBuffer),
		lastID:  afterID,
		d:       d,
		channel: channelID,
	}
	f.mu.Lock()
	for _, m := range f.recent {
		if m.ID > afterID {
			s.ch <- m
			s.lastID = m.ID
		}
	}
	f.subs[s] = true
	f.mu.Unlock()
	telemetry.LiveSubscribers.Inc()
	logger.Debug("tail_subscribed", "channel", channelID, "after", afterID)
	return s
}

// PublishMessage delivers a freshly appended message to all subscribers of
// its channel. The store invokes this via the append hook while holding the
// channel lock, so per-channel delivery order matches append order.
func (d *Dispatcher) PublishMessage(channelID string, payload []byte) {
	var m models.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		logger.Error("tail_publish_bad_payload", "channel", channelID, "err", err)
		return
	}
	f := d.feedFor(channelID)
	f.mu.Lock()
	f.recent = append(f.recent, m)
	if len(f.recent) > d.replayWindow {
		f.recent = f.recent[len(f.recent)-d.replayWindow:]
	}
	for s := range f.subs {
		if m.ID <= s.lastID {
			continue
		}
		select {
		case s.ch <- m:
			s.lastID = m.ID
		default:
			// consumer fell behind the bounded buffer; disconnect it
			delete(f.subs, s)
			close(s.ch)
			telemetry.LiveSubscribers.Dec()
			telemetry.FanoutDropped.Inc()
			logger.Warn("tail_subscriber_dropped", "channel", channelID)
		}
	}
	f.mu.Unlock()
}

// drop removes a subscription from its feed.
func (d *Dispatcher) drop(channelID string, s *Subscription, closed bool) {
	f := d.feedFor(channelID)
	f.mu.Lock()
	if f.subs[s] {
		delete(f.subs, s)
		if !closed {
			close(s.ch)
		}
		telemetry.LiveSubscribers.Dec()
	}
	f.mu.Unlock()
}

// Subscribers reports the current subscriber count for a channel.
func (d *Dispatcher) Subscribers(channelID string) int {
	d.mu.RLock()
	f := d.feeds[channelID]
	d.mu.RUnlock()
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
