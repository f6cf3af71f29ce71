package app

import (
	"fmt"
	"os"

	"chatsync/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the configuration
// before starting long-running services. Keep checks light and focused so
// callers can surface user-friendly errors.
func validateConfig(cfg *config.Config) error {
	if cfg.Storage.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, CHATSYNC_DB_PATH env, or storage.db_path in config")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if cfg.Tail.ReplayWindow < 0 || cfg.Tail.SubscriberBuffer < 0 {
		return fmt.Errorf("tail.replay_window and tail.subscriber_buffer must be non-negative")
	}
	if cfg.Notify.QueueCapacity < 0 {
		return fmt.Errorf("notify.queue_capacity must be non-negative")
	}
	if _, err := cfg.MaxPooledPayloadBytes(); err != nil {
		return err
	}
	return nil
}
