// Package app wires the sync core together: storage, fanout dispatchers,
// the notify queue, retention, and the HTTP server.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"chatsync/pkg/config"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/notify"
	"chatsync/pkg/store"
	"chatsync/pkg/tail"

	"chatsync/internal/retention"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg       *config.Config
	version   string
	commit    string
	buildDate string

	dispatcher  *tail.Dispatcher
	channelList *tail.ChannelListDispatcher
	queue       *notify.Queue
	notifyStop  chan struct{}

	retentionCancel context.CancelFunc

	srv *http.Server
}

// New initializes resources that do not require a running context: the
// store, the dispatchers, the notify queue, and the fanout hooks. Call Run
// to start retention and the HTTP server and block until shutdown.
func New(cfg *config.Config, version, commit, buildDate string) (*App, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	store.SetRetryPolicy(cfg.Storage.Retries, cfg.Storage.RetryBackoff)
	if err := store.Open(cfg.Storage.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Storage.DBPath, err)
	}

	a := &App{
		cfg:         cfg,
		version:     version,
		commit:      commit,
		buildDate:   buildDate,
		dispatcher:  tail.New(cfg.Tail.ReplayWindow, cfg.Tail.SubscriberBuffer),
		channelList: tail.NewChannelList(cfg.Tail.SubscriberBuffer),
		queue:       notify.NewQueue(cfg.Notify.QueueCapacity),
		notifyStop:  make(chan struct{}),
	}

	if n, err := cfg.MaxPooledPayloadBytes(); err == nil {
		notify.SetMaxPooledBuffer(n)
	} else {
		logger.Warn("notify_pool_cap_invalid", "err", err)
	}

	// Appends fan out to live subscribers first, then queue a push event.
	// Both run inside the channel lock, so per-channel order is append order.
	store.SetAppendHook(func(channelID string, payload []byte) {
		a.dispatcher.PublishMessage(channelID, payload)
		a.enqueueNotify(channelID, payload)
	})
	store.SetChannelEventHook(a.channelList.PublishChannel)

	return a, nil
}

// enqueueNotify hands a freshly appended message to the push queue. Admin
// messages are service chatter and never notified.
func (a *App) enqueueNotify(channelID string, payload []byte) {
	var m models.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	if m.Type == models.MessageAdmin {
		return
	}
	err := a.queue.TryEnqueue(&notify.Event{
		Channel:  channelID,
		ID:       m.ID,
		OwnerUID: m.OwnerUID,
		Preview:  m.Preview(),
		Payload:  payload,
	})
	if err != nil {
		logger.Warn("notify_enqueue_dropped", "channel", channelID, "id", m.ID)
	}
}

// Run starts the notify workers, retention, and the HTTP server, and
// blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	go notify.RunWorkers(a.queue, a.cfg.Notify.Workers, notify.NopNotifier{}, a.notifyStop)

	cancel, err := retention.Start(ctx, a.cfg.Retention)
	if err != nil {
		return err
	}
	a.retentionCancel = cancel

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// shutdown stops the HTTP server before any of the sinks it feeds: once
// no request can append, the queue and dispatchers can drain safely.
func (a *App) shutdown() {
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = a.srv.Shutdown(ctx)
	}
	if a.retentionCancel != nil {
		a.retentionCancel()
	}
	close(a.notifyStop)
	a.queue.CloseAndDrain()
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "err", err)
	}
	logger.Info("shutdown_complete", "notify_dropped", a.queue.Dropped())
}
