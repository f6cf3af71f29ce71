package notify

import (
	"chatsync/pkg/logger"
	"chatsync/pkg/telemetry"
)

// Notifier is the external push-notification collaborator. Implementations
// deliver a new-message event to whatever transport the deployment uses.
type Notifier interface {
	Notify(channelID, messageID, ownerUID, preview string) error
}

// NopNotifier discards events; used when no push transport is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, string, string) error { return nil }

// RunWorkers drains the queue with n goroutines until stop is closed or the
// queue is closed. Item.Done() is guaranteed even when the notifier fails.
func RunWorkers(q *Queue, n int, notifier Notifier, stop <-chan struct{}) {
	if n <= 0 {
		n = 1
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	for i := 0; i < n; i++ {
		go func() {
			for {
				select {
				case it, ok := <-q.Out():
					if !ok {
						return
					}
					func(it *Item) {
						defer it.Done()
						ev := it.Event
						if err := notifier.Notify(ev.Channel, ev.ID, ev.OwnerUID, ev.Preview); err != nil {
							logger.Warn("notify_failed", "channel", ev.Channel, "id", ev.ID, "err", err)
							return
						}
						telemetry.NotifyDelivered.Inc()
					}(it)
				case <-stop:
					return
				}
			}
		}()
	}
}
