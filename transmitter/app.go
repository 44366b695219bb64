package transmitter

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"aircon-link/logging"
	"aircon-link/persist"
	"aircon-link/watchdog"

	"github.com/go-redis/redis/v8"
	"github.com/goburrow/serial"
)

// CommandChannel is the redis pub/sub channel carrying actuator
// commands and fault-injection triggers for the transmitter node.
const CommandChannel = "aircon-link:commands"

// App wires the transmitter node: serial port, watchdog, persisted
// diagnostics, redis command subscription and the supervisor itself.
type App struct {
	log        *logging.LeveledLogger
	redis      *redis.Client
	port       serial.Port
	wd         *watchdog.Timer
	store      *persist.FileStore
	supervisor *Supervisor
	sub        *redis.PubSub
	commands   chan Command
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewApp(opts *Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		log:      logging.NewLeveledLogger(log.New(log.Writer(), "transmitter: ", log.LstdFlags), opts.LogLevel),
		commands: make(chan Command, 8),
		ctx:      ctx,
		cancel:   cancel,
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.RedisServerAddr, opts.RedisServerPort),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()

	app.log.Info("Connecting to Redis at %s:%d...", opts.RedisServerAddr, opts.RedisServerPort)
	if err := app.redis.Ping(connectCtx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	port, err := serial.Open(&serial.Config{
		Address:  opts.SerialDevice,
		BaudRate: opts.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open serial device %s: %v", opts.SerialDevice, err)
	}
	app.port = port
	app.log.Info("Telemetry UART open: %s @ %d baud", opts.SerialDevice, opts.BaudRate)

	app.store, err = persist.NewFileStore(opts.PersistDir)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open diagnostics store: %v", err)
	}

	// The expiry handler is the host stand-in for the hardware reset:
	// record the cause, then die so the service manager restarts us.
	app.wd = watchdog.New(opts.WatchdogTimeout, func() {
		if err := app.store.MarkWatchdogReset(); err != nil {
			app.log.Error("Failed to mark watchdog reset: %v", err)
		}
		app.log.Error("Watchdog expired after %s, resetting node", opts.WatchdogTimeout)
		os.Exit(2)
	})

	app.supervisor = NewSupervisor(SupervisorConfig{
		Logger:       app.log,
		Port:         app.port,
		Watchdog:     app.wd,
		Store:        app.store,
		Actuator:     NewLogActuator(app.log),
		Display:      NewLogDisplay(app.log),
		SendInterval: opts.SendInterval,
	})

	app.sub = app.redis.Subscribe(ctx, CommandChannel)
	go app.handleCommandSubscription()

	return app, nil
}

func (a *App) handleCommandSubscription() {
	a.log.Info("Starting command subscription handler")

	for {
		msg, err := a.sub.Receive(a.ctx)
		if err != nil {
			if err == context.Canceled {
				return
			}
			// Check for closed client - panic to trigger systemd restart
			if err.Error() == "redis: client is closed" {
				a.log.Error("Redis connection lost on command subscription - restarting service")
				panic("Redis disconnected")
			}
			a.log.Error("Command subscription error: %v", err)
			continue
		}

		switch m := msg.(type) {
		case *redis.Message:
			a.log.Debug("Command received: %s", m.Payload)
			cmd, ok := ParseCommand(m.Payload)
			if !ok {
				a.log.Warn("Ignoring unknown command payload %q", m.Payload)
				continue
			}
			select {
			case a.commands <- cmd:
			case <-a.ctx.Done():
				return
			}
		case *redis.Subscription:
			a.log.Debug("Command subscription event: %s %s", m.Channel, m.Kind)
		}
	}
}

// Run boots the supervisor, arms the watchdog and enters the main
// loop. It returns only on context cancellation; the fault paths never
// come back at all.
func (a *App) Run() error {
	if err := a.supervisor.Boot(); err != nil {
		return err
	}

	a.wd.Start()
	a.log.Info("Watchdog armed (timeout %s)", a.wd.Timeout())

	return a.supervisor.Run(a.ctx, a.commands)
}

func (a *App) Destroy() {
	a.log.Info("Shutting down transmitter...")

	if a.cancel != nil {
		a.cancel()
	}
	if a.wd != nil {
		a.wd.Stop()
	}
	if a.sub != nil {
		a.sub.Close()
	}
	if a.port != nil {
		if err := a.port.Close(); err != nil {
			a.log.Error("Error closing serial port: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("Error closing Redis connection: %v", err)
		}
	}

	a.log.Info("Transmitter shutdown complete")
}
