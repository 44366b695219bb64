package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable parameters shared by both node binaries.
// The zero-valued fields fall back to the defaults that match the
// transmitter firmware; operational timing must agree across nodes or
// the link contract breaks.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Redis    RedisConfig    `yaml:"redis"`
	Link     LinkConfig     `yaml:"link"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Persist  PersistConfig  `yaml:"persist"`
}

type SerialConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
}

type RedisConfig struct {
	Address string `yaml:"address"`
	Port    uint16 `yaml:"port"`
}

type LinkConfig struct {
	SendIntervalMs int `yaml:"send_interval_ms"`
	StaleTimeoutMs int `yaml:"stale_timeout_ms"`
	GraceWindowMs  int `yaml:"grace_window_ms"`
}

// WatchdogConfig carries per-node watchdog timeouts. Deployed receiver
// units disagree on the right value (8 or 10 seconds have both been
// used), so it is a parameter rather than a constant.
type WatchdogConfig struct {
	TransmitterTimeoutMs int `yaml:"transmitter_timeout_ms"`
	ReceiverTimeoutMs    int `yaml:"receiver_timeout_ms"`
}

// PersistConfig applies to the transmitter node only.
type PersistConfig struct {
	Dir string `yaml:"dir"`
}

// Defaults matched against the transmitter firmware constants.
const (
	DefaultBaudRate             = 115200
	DefaultSendIntervalMs       = 500
	DefaultStaleTimeoutMs       = 2000
	DefaultGraceWindowMs        = 5000
	DefaultTransmitterTimeoutMs = 5000
	DefaultReceiverTimeoutMs    = 8000
	DefaultPersistDir           = "/var/lib/aircon-link"
)

// Default returns a config populated with the firmware defaults.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:   "/dev/ttyS0",
			BaudRate: DefaultBaudRate,
		},
		Redis: RedisConfig{
			Address: "127.0.0.1",
			Port:    6379,
		},
		Link: LinkConfig{
			SendIntervalMs: DefaultSendIntervalMs,
			StaleTimeoutMs: DefaultStaleTimeoutMs,
			GraceWindowMs:  DefaultGraceWindowMs,
		},
		Watchdog: WatchdogConfig{
			TransmitterTimeoutMs: DefaultTransmitterTimeoutMs,
			ReceiverTimeoutMs:    DefaultReceiverTimeoutMs,
		},
		Persist: PersistConfig{
			Dir: DefaultPersistDir,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the
// result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %v", path, err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %v", path, err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
