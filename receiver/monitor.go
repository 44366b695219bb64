package receiver

import (
	"sync"
	"time"

	"aircon-link/logging"
	"aircon-link/telemetry"
	"aircon-link/watchdog"
)

// Rebooter performs the receiver's self-reboot when the transmitter
// reports a fatal fault. The production implementation terminates the
// process and lets the service manager bring the node back clean.
type Rebooter interface {
	Reboot(fault telemetry.FaultCode)
}

// LinkHealth is the receiver's local judgment of the link.
type LinkHealth struct {
	LastFrame   *telemetry.Frame
	LastArrival time.Time
	PacketCount uint32
	LinkUp      bool
}

// MonitorConfig wires the monitor's collaborators and timing.
type MonitorConfig struct {
	Logger       logging.Logger
	Watchdog     watchdog.Watchdog
	Rebooter     Rebooter
	StaleTimeout time.Duration
	GraceWindow  time.Duration

	// Now defaults to time.Now; tests substitute it.
	Now func() time.Time
}

// Monitor tracks link health and reacts to fatal faults. The grace
// window after its own boot suppresses the self-reboot, so a
// transmitter stuck re-reporting the same stale fault cannot drive the
// receiver into an endless reboot cycle.
type Monitor struct {
	log          logging.Logger
	wd           watchdog.Watchdog
	rebooter     Rebooter
	staleTimeout time.Duration
	graceWindow  time.Duration
	now          func() time.Time
	bootTime     time.Time

	mu          sync.RWMutex
	lastFrame   *telemetry.Frame
	lastArrival time.Time
	packetCount uint32
	linkUp      bool
	rebooted    bool
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		log:          cfg.Logger,
		wd:           cfg.Watchdog,
		rebooter:     cfg.Rebooter,
		staleTimeout: cfg.StaleTimeout,
		graceWindow:  cfg.GraceWindow,
		now:          now,
		bootTime:     now(),
	}
}

// ObserveFrame records one structurally valid frame: arrival time,
// packet count, link state, watchdog feed, and the fatal-fault
// reaction.
func (m *Monitor) ObserveFrame(frame *telemetry.Frame) {
	now := m.now()

	m.mu.Lock()
	m.lastFrame = frame
	m.lastArrival = now
	m.packetCount++
	wasDown := !m.linkUp
	m.linkUp = true
	m.mu.Unlock()

	if wasDown {
		m.log.Info("Link up (state=%s, transmitter wdt-resets=%d)",
			frame.ACState, frame.WdtResets)
	}

	// A valid frame proves both the link and this loop are alive.
	m.wd.Feed()

	if !frame.LastFault.IsFatal() {
		return
	}

	sinceBoot := now.Sub(m.bootTime)
	if sinceBoot < m.graceWindow {
		// Display only. Rebooting now would loop forever if the
		// transmitter keeps reporting the same stale fault.
		m.log.Warn("Transmitter fault %s within grace window (%s elapsed), reboot suppressed",
			frame.LastFault, sinceBoot.Round(time.Millisecond))
		return
	}

	m.mu.Lock()
	already := m.rebooted
	m.rebooted = true
	m.mu.Unlock()
	if already {
		return
	}

	m.log.Error("Transmitter fault %s, rebooting to resynchronize", frame.LastFault)
	m.rebooter.Reboot(frame.LastFault)
}

// CheckStale flips the link down when no valid frame has arrived
// within the stale timeout. It returns true only on the transition, so
// an outage is surfaced exactly once.
func (m *Monitor) CheckStale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.linkUp {
		return false
	}
	if m.now().Sub(m.lastArrival) <= m.staleTimeout {
		return false
	}
	m.linkUp = false
	return true
}

// Snapshot returns a copy of the current link health.
func (m *Monitor) Snapshot() LinkHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LinkHealth{
		LastFrame:   m.lastFrame,
		LastArrival: m.lastArrival,
		PacketCount: m.packetCount,
		LinkUp:      m.linkUp,
	}
}
