package receiver

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"aircon-link/logging"
	"aircon-link/telemetry"
	"aircon-link/watchdog"

	"github.com/go-redis/redis/v8"
	"github.com/goburrow/serial"
)

const (
	// readTimeout bounds one serial poll so the loop keeps turning
	// while the line is quiet.
	readTimeout = 50 * time.Millisecond

	// viewRefreshInterval paces staleness checks and view updates.
	viewRefreshInterval = 200 * time.Millisecond
)

// exitRebooter implements Rebooter by terminating the process. The
// service manager restarts the node, which is the software-initiated
// reboot the recovery design calls for.
type exitRebooter struct {
	log logging.Logger
}

func (r *exitRebooter) Reboot(fault telemetry.FaultCode) {
	r.log.Error("Self-reboot on transmitter fault: %s", fault)
	os.Exit(3)
}

// App wires the receiver node: serial poll, stream decoder, link
// monitor, own watchdog and the redis view publisher.
type App struct {
	log     *logging.LeveledLogger
	redis   *redis.Client
	port    serial.Port
	wd      *watchdog.Timer
	decoder *telemetry.StreamDecoder
	monitor *Monitor
	viewTx  *ViewTx
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewApp(opts *Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		log:     logging.NewLeveledLogger(log.New(log.Writer(), "receiver: ", log.LstdFlags), opts.LogLevel),
		decoder: &telemetry.StreamDecoder{},
		ctx:     ctx,
		cancel:  cancel,
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
		Timeout:  readTimeout,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open serial device %s: %v", opts.SerialDevice, err)
	}
	app.port = port
	app.log.Info("Telemetry UART open: %s @ %d baud", opts.SerialDevice, opts.BaudRate)

	app.wd = watchdog.New(opts.WatchdogTimeout, func() {
		app.log.Error("Watchdog expired after %s, resetting node", opts.WatchdogTimeout)
		os.Exit(2)
	})

	app.viewTx = NewViewTx(app.log, app.redis)

	app.monitor = NewMonitor(MonitorConfig{
		Logger:       app.log,
		Watchdog:     app.wd,
		Rebooter:     &exitRebooter{log: app.log},
		StaleTimeout: opts.StaleTimeout,
		GraceWindow:  opts.GraceWindow,
	})

	return app, nil
}

// Run arms the watchdog and enters the receive loop: poll the port,
// feed the decoder, observe validated frames, refresh the view, feed
// the watchdog once per iteration.
func (a *App) Run() error {
	a.wd.Start()
	a.log.Info("Watchdog armed (timeout %s)", a.wd.Timeout())

	refreshTicker := time.NewTicker(viewRefreshInterval)
	defer refreshTicker.Stop()

	buf := make([]byte, 64)

	for {
		select {
		case <-a.ctx.Done():
			return a.ctx.Err()

		case <-refreshTicker.C:
			if a.monitor.CheckStale() {
				a.log.Warn("Link stale: no valid frame within timeout")
			}
			if err := a.viewTx.PublishTelemetry(a.monitor.Snapshot()); err != nil {
				a.log.Error("View publish failed: %v", err)
			}

		default:
			n, err := a.port.Read(buf)
			if err != nil && err != serial.ErrTimeout {
				a.log.Error("Serial read failed: %v", err)
			}
			if n > 0 {
				a.log.DebugFrame("RX", buf[:n])
				for _, frame := range a.decoder.Feed(buf[:n]) {
					a.viewTx.ReportFault(frame.LastFault)
					a.monitor.ObserveFrame(frame)
				}
			}
		}

		a.wd.Feed()
	}
}

func (a *App) Destroy() {
	a.log.Info("Shutting down receiver...")

	if a.cancel != nil {
		a.cancel()
	}
	if a.wd != nil {
		a.wd.Stop()
	}
	if a.viewTx != nil {
		a.viewTx.Destroy()
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

	a.log.Info("Receiver shutdown complete")
}
