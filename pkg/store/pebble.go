package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/errs"
	"chatsync/pkg/logger"
)

var (
	db *pebble.DB

	// retry policy for transient storage failures, set from config at Open.
	retryCount   = 3
	retryBackoff = 50 * time.Millisecond
)

// appendHook is invoked after a message append is durably visible; the app
// wires the live tail dispatcher here at startup.
var appendHook func(channelID string, payload []byte)

// channelHook is invoked after channel metadata changes (creation,
// membership, last-message updates); the app wires the channel-list
// dispatcher here.
var channelHook func(payload []byte, memberUIDs []string)

// SetAppendHook installs the post-append fanout callback.
func SetAppendHook(fn func(channelID string, payload []byte)) { appendHook = fn }

// SetChannelEventHook installs the channel-change fanout callback.
func SetChannelEventHook(fn func(payload []byte, memberUIDs []string)) { channelHook = fn }

// SetRetryPolicy configures internal retries for transient storage errors.
func SetRetryPolicy(retries int, backoff time.Duration) {
	if retries >= 0 {
		retryCount = retries
	}
	if backoff > 0 {
		retryBackoff = backoff
	}
}

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "err", err)
		return err
	}
	registerStats()
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool { return db != nil }

// notReady is the error returned when operations run before Open.
func notReady() error {
	return fmt.Errorf("%w: pebble not opened; call store.Open first", errs.ErrStorageUnavailable)
}

// setSync writes a key durably, retrying transient failures with bounded
// exponential backoff. Context expiry maps to ErrTimeout.
func setSync(ctx context.Context, key string, value []byte) error {
	if db == nil {
		return notReady()
	}
	backoff := retryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = db.Set([]byte(key), value, pebble.Sync)
		if err == nil {
			return nil
		}
		if attempt >= retryCount {
			break
		}
		logger.Warn("store_set_retry", "key", key, "attempt", attempt, "err", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errs.ErrTimeout, ctx.Err())
		}
		backoff *= 2
	}
	logger.Error("store_set_failed", "key", key, "err", err)
	return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
}

// getKey returns the raw value for the given key; pebble.ErrNotFound is
// passed through for callers to translate.
func getKey(key string) ([]byte, error) {
	if db == nil {
		return nil, notReady()
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// GetKey returns the raw value for the given key. Missing keys map to
// ErrMessageNotFound-agnostic pebble.ErrNotFound; use the typed accessors
// where possible.
func GetKey(key string) ([]byte, error) { return getKey(key) }

// SaveKey stores an arbitrary key/value pair durably. Callers should choose
// a safe namespace.
func SaveKey(ctx context.Context, key string, value []byte) error {
	return setSync(ctx, key, value)
}

// DeleteKey removes a key durably.
func DeleteKey(ctx context.Context, key string) error {
	if db == nil {
		return notReady()
	}
	if err := db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	return nil
}

// CompareAndSwap writes value only if the current value of key equals old.
// A nil old asserts the key is absent. It returns false when the
// precondition fails. The swap runs under the key's entity lock.
func CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	if db == nil {
		return false, notReady()
	}
	unlock := lockKey(key)
	defer unlock()
	cur, err := getKey(key)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		if old != nil {
			return false, nil
		}
	case err != nil:
		return false, err
	default:
		if old == nil || string(cur) != string(old) {
			return false, nil
		}
	}
	if err := setSync(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

// ListKeys returns all keys that start with the given prefix.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, notReady()
	}
	iter, err := db.NewIter(prefixBounds(prefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}

// prefixBounds builds iterator bounds covering exactly one key prefix.
func prefixBounds(prefix string) *pebble.IterOptions {
	if prefix == "" {
		return &pebble.IterOptions{}
	}
	lower := []byte(prefix)
	upper := append([]byte(nil), lower...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			upper = upper[:i+1]
			return &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
		}
	}
	return &pebble.IterOptions{LowerBound: lower}
}
