package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial: device must be set")
	}
	if cfg.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial: baud_rate must be positive, got %d", cfg.Serial.BaudRate)
	}

	if cfg.Link.SendIntervalMs <= 0 {
		return fmt.Errorf("link: send_interval_ms must be positive, got %d", cfg.Link.SendIntervalMs)
	}
	if cfg.Link.StaleTimeoutMs <= 0 {
		return fmt.Errorf("link: stale_timeout_ms must be positive, got %d", cfg.Link.StaleTimeoutMs)
	}
	if cfg.Link.GraceWindowMs < 0 {
		return fmt.Errorf("link: grace_window_ms must not be negative, got %d", cfg.Link.GraceWindowMs)
	}

	if cfg.Watchdog.TransmitterTimeoutMs <= 0 {
		return fmt.Errorf("watchdog: transmitter_timeout_ms must be positive, got %d", cfg.Watchdog.TransmitterTimeoutMs)
	}
	if cfg.Watchdog.ReceiverTimeoutMs <= 0 {
		return fmt.Errorf("watchdog: receiver_timeout_ms must be positive, got %d", cfg.Watchdog.ReceiverTimeoutMs)
	}

	// Cross-constant contract between the nodes.

	// A missed feed must be detected without false positives from
	// ordinary loop jitter: the transmitter watchdog needs a wide
	// margin over the send cadence.
	if cfg.Watchdog.TransmitterTimeoutMs < 2*cfg.Link.SendIntervalMs {
		return fmt.Errorf(
			"watchdog: transmitter_timeout_ms (%d) must be at least twice link.send_interval_ms (%d)",
			cfg.Watchdog.TransmitterTimeoutMs,
			cfg.Link.SendIntervalMs,
		)
	}

	// Staleness is advisory and must fire before the receiver's own
	// watchdog would.
	if cfg.Link.StaleTimeoutMs >= cfg.Watchdog.ReceiverTimeoutMs {
		return fmt.Errorf(
			"link: stale_timeout_ms (%d) must be below watchdog.receiver_timeout_ms (%d)",
			cfg.Link.StaleTimeoutMs,
			cfg.Watchdog.ReceiverTimeoutMs,
		)
	}

	// The stale timeout has to leave room for several missed sends,
	// otherwise a single dropped frame flaps the link indicator.
	if cfg.Link.StaleTimeoutMs < 2*cfg.Link.SendIntervalMs {
		return fmt.Errorf(
			"link: stale_timeout_ms (%d) must be at least twice link.send_interval_ms (%d)",
			cfg.Link.StaleTimeoutMs,
			cfg.Link.SendIntervalMs,
		)
	}

	return nil
}
