package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"aircon-link/config"
	"aircon-link/logging"
	"aircon-link/receiver"
)

var (
	version     = flag.Bool("version", false, "Print version info")
	help        = flag.Bool("help", false, "Print help")
	logLevel    = flag.Int("log", 3, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	configPath  = flag.String("config", "", "Path to YAML config file")
	serialDev   = flag.String("serial_device", "", "Telemetry UART device (overrides config)")
	redisServer = flag.String("redis_server", "", "Redis server address (overrides config)")
)

const (
	ProjectName    = "aircon-link-receiver"
	ProjectVersion = "1.0.0"
)

func printVersion() {
	fmt.Printf("%s v%s\n", ProjectName, ProjectVersion)
}

func printHelp() {
	printVersion()
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	// Validate log level
	if *logLevel < 0 || *logLevel > 4 {
		log.Fatalf("invalid log level %d", *logLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *serialDev != "" {
		cfg.Serial.Device = *serialDev
	}
	if *redisServer != "" {
		cfg.Redis.Address = *redisServer
	}

	opts := &receiver.Options{
		LogLevel:        logging.LogLevel(*logLevel),
		SerialDevice:    cfg.Serial.Device,
		BaudRate:        cfg.Serial.BaudRate,
		RedisServerAddr: cfg.Redis.Address,
		RedisServerPort: cfg.Redis.Port,
		StaleTimeout:    time.Duration(cfg.Link.StaleTimeoutMs) * time.Millisecond,
		GraceWindow:     time.Duration(cfg.Link.GraceWindowMs) * time.Millisecond,
		WatchdogTimeout: time.Duration(cfg.Watchdog.ReceiverTimeoutMs) * time.Millisecond,
	}

	app, err := receiver.NewApp(opts)
	if err != nil {
		log.Fatalf("failed to create receiver app: %v", err)
	}
	defer app.Destroy()

	if err := app.Run(); err != nil {
		log.Fatalf("receiver stopped: %v", err)
	}
}
