package receiver

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
	StaleTimeout    time.Duration
	GraceWindow     time.Duration
	WatchdogTimeout time.Duration
}
