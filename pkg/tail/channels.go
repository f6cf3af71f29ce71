package tail

import (
	"encoding/json"
	"sync"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
)

// ChannelListDispatcher streams channel metadata updates (membership and
// last-message changes) to per-user subscribers, backing the user
// channel-list subscription.
type ChannelListDispatcher struct {
	mu        sync.Mutex
	subs      map[string]map[*ChannelListSub]bool // uid -> subs
	subBuffer int
}

// ChannelListSub is one user's channel-list stream.
type ChannelListSub struct {
	ch   chan models.Channel
	uid  string
	d    *ChannelListDispatcher
	once sync.Once
}

// Ch returns the receive side of the subscription.
func (s *ChannelListSub) Ch() <-chan models.Channel { return s.ch }

// Cancel detaches the subscription immediately.
func (s *ChannelListSub) Cancel() {
	s.once.Do(func() {
		s.d.mu.Lock()
		if set := s.d.subs[s.uid]; set != nil && set[s] {
			delete(set, s)
			close(s.ch)
		}
		s.d.mu.Unlock()
	})
}

// NewChannelList builds a ChannelListDispatcher.
func NewChannelList(subBuffer int) *ChannelListDispatcher {
	if subBuffer <= 0 {
		subBuffer = 64
	}
	return &ChannelListDispatcher{
		subs:      make(map[string]map[*ChannelListSub]bool),
		subBuffer: subBuffer,
	}
}

// Subscribe attaches a consumer to a user's channel-list feed.
func (d *ChannelListDispatcher) Subscribe(uid string) *ChannelListSub {
	s := &ChannelListSub{ch: make(chan models.Channel, d.subBuffer), uid: uid, d: d}
	d.mu.Lock()
	if d.subs[uid] == nil {
		d.subs[uid] = make(map[*ChannelListSub]bool)
	}
	d.subs[uid][s] = true
	d.mu.Unlock()
	return s
}

// PublishChannel delivers an updated channel record to every member's
// channel-list subscribers. The store invokes this via the channel event
// hook.
func (d *ChannelListDispatcher) PublishChannel(payload []byte, memberUIDs []string) {
	var ch models.Channel
	if err := json.Unmarshal(payload, &ch); err != nil {
		logger.Error("channel_list_bad_payload", "err", err)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, uid := range memberUIDs {
		for s := range d.subs[uid] {
			select {
			case s.ch <- ch:
			default:
				delete(d.subs[uid], s)
				close(s.ch)
				logger.Warn("channel_list_subscriber_dropped", "uid", uid)
			}
		}
	}
}
