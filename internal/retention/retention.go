// Package retention expires append idempotency records on a cron schedule.
// Records only need to outlive client retry loops, so the sweep is cheap:
// scan the idem prefix, decode the stored message timestamp, and delete
// anything older than the configured TTL.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatsync/pkg/config"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/store"
)

// Start launches the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "*/10 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "idempotency_ttl", cfg.IdempotencyTTL)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, cfg.IdempotencyTTL)
	return cancel, nil
}

// runScheduler computes the next tick for the configured cron expression
// with gronx and sleeps until that time, then sweeps.
func runScheduler(ctx context.Context, cronExpr string, ttl time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if n, err := SweepIdempotency(ctx, ttl); err != nil {
				logger.Error("retention_run_error", "error", err)
			} else if n > 0 {
				logger.Info("retention_run_complete", "expired", n)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// SweepIdempotency deletes idempotency records whose message timestamp is
// older than ttl. It returns the number of records removed.
func SweepIdempotency(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	keys, err := store.ListKeys(store.IdemPrefix)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-ttl).UnixNano()
	removed := 0
	for _, k := range keys {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}
		v, err := store.GetKey(k)
		if err != nil {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(v, &m); err != nil || m.TS >= cutoff {
			continue
		}
		if err := store.DeleteKey(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
