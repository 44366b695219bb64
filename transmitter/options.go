package transmitter

import (
	"time"

	"aircon-link/logging"
)

type Options struct {
	LogLevel        logging.LogLevel
	SerialDevice    string
	BaudRate        int
	RedisServerAddr string
	RedisServerPort uint16
	PersistDir      string
	SendInterval    time.Duration
	WatchdogTimeout time.Duration
}
