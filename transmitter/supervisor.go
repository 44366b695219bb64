package transmitter

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"aircon-link/logging"
	"aircon-link/persist"
	"aircon-link/telemetry"
	"aircon-link/watchdog"
)

// State is the supervisor's command-handling state.
type State int

const (
	// StateReady accepts commands.
	StateReady State = iota
	// StateExecuting has a command in flight.
	StateExecuting
	// StateTrapped is terminal: the node spins without feeding the
	// watchdog until the hardware reset arrives. No internal code
	// path leaves it.
	StateTrapped
)

const (
	heartbeatInterval = 500 * time.Millisecond
	displayInterval   = 1 * time.Second
	trapBlinkInterval = 150 * time.Millisecond

	// flushDelay gives the UART time to drain the final fault frame
	// before the trap starts starving the watchdog.
	flushDelay = 50 * time.Millisecond
)

// linkStuckPattern is what a wedged transmitter spews: recognizable
// junk that never parses as a frame.
var linkStuckPattern = []byte("XXXXXXXXXXXXXXXXXX")

// Actuator executes an accepted command against the air-conditioner.
// Command encoding and emission are outside this module.
type Actuator interface {
	Execute(state telemetry.SystemState) error
}

// Display renders node status. Rendering itself is outside this
// module; the supervisor only decides what to show and when.
type Display interface {
	ShowBootDiag(cause persist.ResetCause, diag persist.Diagnostics)
	ShowRunning(state telemetry.SystemState, operations uint32, wdtResets uint32)
	ShowFault(fault telemetry.FaultCode)
	Heartbeat(on bool)
}

// SupervisorConfig wires the supervisor's collaborators.
type SupervisorConfig struct {
	Logger       logging.Logger
	Port         io.Writer
	Watchdog     watchdog.Watchdog
	Store        persist.Store
	Actuator     Actuator
	Display      Display
	SendInterval time.Duration

	// Sleep defaults to time.Sleep; tests substitute it to observe
	// the trap loops without spinning forever.
	Sleep func(time.Duration)
}

// Supervisor owns the actuator state machine, the telemetry cadence
// and the watchdog duty cycle. It also contains the three designed
// fault paths that starve the watchdog on purpose, so recovery can be
// proven rather than assumed.
type Supervisor struct {
	log      logging.Logger
	port     io.Writer
	wd       watchdog.Watchdog
	store    persist.Store
	actuator Actuator
	display  Display
	sleep    func(time.Duration)

	sendInterval time.Duration
	bootTime     time.Time

	mu           sync.Mutex
	state        State
	acState      telemetry.SystemState
	lastCommand  telemetry.SystemState
	irPending    bool
	irOperations uint32
	diag         persist.Diagnostics
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	interval := cfg.SendInterval
	if interval == 0 {
		interval = 500 * time.Millisecond
	}
	return &Supervisor{
		log:          cfg.Logger,
		port:         cfg.Port,
		wd:           cfg.Watchdog,
		store:        cfg.Store,
		actuator:     cfg.Actuator,
		display:      cfg.Display,
		sleep:        sleep,
		sendInterval: interval,
		bootTime:     time.Now(),
	}
}

// Boot loads and updates the persisted diagnostics, exactly once,
// before periodic operation begins. A watchdog-caused reset bumps the
// reset counter and keeps the fault code written before the trap; a
// normal power-on clears it.
func (s *Supervisor) Boot() error {
	record, ok, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load diagnostics: %v", err)
	}
	if !ok {
		s.log.Info("No valid diagnostics record, treating as first boot")
		record = persist.Diagnostics{}
	}

	cause, err := s.store.ConsumeResetCause()
	if err != nil {
		return fmt.Errorf("failed to read reset cause: %v", err)
	}

	record.BootCount++
	if cause == persist.ResetWatchdog {
		record.WdtResetCount++
		record.LastReset = persist.ResetWatchdog
		// The fault code was written just before the trap; keep it.
		s.log.Warn("Reset caused by WATCHDOG (count=%d, fault=%s)",
			record.WdtResetCount, record.LastFault)
	} else {
		record.LastReset = persist.ResetNormal
		record.LastFault = telemetry.FaultNone
		s.log.Info("Normal reset (power/manual)")
	}

	s.mu.Lock()
	s.diag = record
	s.mu.Unlock()

	if err := s.store.Save(record); err != nil {
		return fmt.Errorf("failed to save diagnostics: %v", err)
	}

	s.display.ShowBootDiag(cause, record)
	s.log.Info("Boot diagnostics: boots=%d wdt-resets=%d last-fault=%s",
		record.BootCount, record.WdtResetCount, record.LastFault)

	// Initial frame so the receiver sees the post-boot state at once.
	return s.SendTelemetry()
}

// ExecuteCommand runs one actuator command through the state machine.
// StateTemp22 is a designed failure: the supervisor persists the fault,
// emits one last frame, and traps without ever feeding the watchdog
// again.
func (s *Supervisor) ExecuteCommand(cmd telemetry.SystemState) error {
	if !cmd.IsValid() {
		return fmt.Errorf("invalid command state %d", cmd)
	}

	s.mu.Lock()
	if s.state == StateTrapped {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is trapped")
	}
	s.state = StateExecuting
	s.lastCommand = cmd
	s.irPending = true
	s.mu.Unlock()

	s.log.Info("Executing command: %s", cmd)
	s.wd.Feed()

	if cmd == telemetry.StateTemp22 {
		s.log.Error("Designed failure on temp-22 command, trapping")
		s.enterTrap(telemetry.FaultTemp22Trap, s.blinkSpin)
		// not reached
	}

	if err := s.actuator.Execute(cmd); err != nil {
		s.mu.Lock()
		s.irPending = false
		s.state = StateReady
		s.mu.Unlock()
		return fmt.Errorf("actuation failed: %v", err)
	}

	s.wd.Feed()

	s.mu.Lock()
	s.acState = cmd
	s.irOperations++
	s.irPending = false
	s.state = StateReady
	ops := s.irOperations
	wdtResets := s.diag.WdtResetCount
	s.mu.Unlock()

	s.log.Info("Command executed: %s (total %d ops)", cmd, ops)
	s.display.ShowRunning(cmd, ops, wdtResets)

	return s.SendTelemetry()
}

// TriggerInfiniteLoopFault is a fault-injection entry point: it spins
// forever doing heartbeat work only. Never returns.
func (s *Supervisor) TriggerInfiniteLoopFault() {
	s.log.Error("Injected fault: infinite loop without watchdog feed")
	s.enterTrap(telemetry.FaultInfiniteLoop, s.blinkSpin)
}

// TriggerLinkStuckFault is a fault-injection entry point: it spins
// forever re-sending a fixed junk pattern, proving a stuck transmitter
// is still caught by the watchdog and by the receiver's staleness
// timeout. Never returns.
func (s *Supervisor) TriggerLinkStuckFault() {
	s.log.Error("Injected fault: transmitter stuck re-sending junk")
	s.enterTrap(telemetry.FaultLinkStuck, func() {
		s.port.Write(linkStuckPattern)
		s.blinkSpin()
	})
}

// enterTrap persists the fault, flushes one last telemetry frame, and
// spins on the given body forever. The body must not feed the
// watchdog; the whole point is that the next deadline is missed and
// the hardware reset recovers the node.
func (s *Supervisor) enterTrap(fault telemetry.FaultCode, spin func()) {
	// Margin so the persist write and the final frame fit comfortably
	// inside one watchdog period.
	s.wd.Feed()

	s.mu.Lock()
	s.diag.LastFault = fault
	record := s.diag
	s.mu.Unlock()

	// Persist before anything else: after the watchdog fires, this
	// record is the only evidence of what happened.
	if err := s.store.Save(record); err != nil {
		s.log.Error("Failed to persist fault %s: %v", fault, err)
	}

	s.display.ShowFault(fault)

	if err := s.SendTelemetry(); err != nil {
		s.log.Error("Failed to send fault frame: %v", err)
	}
	s.sleep(flushDelay)

	s.mu.Lock()
	s.state = StateTrapped
	s.mu.Unlock()

	for {
		spin()
	}
}

func (s *Supervisor) blinkSpin() {
	s.display.Heartbeat(true)
	s.sleep(trapBlinkInterval)
	s.display.Heartbeat(false)
	s.sleep(trapBlinkInterval)
}

// SendTelemetry encodes the current state and writes one frame to the
// port. The write blocks for the frame duration at the configured baud
// rate, nothing more.
func (s *Supervisor) SendTelemetry() error {
	frame := s.buildFrame()
	buf := frame.Encode()
	s.log.DebugFrame("TX", buf)
	if _, err := s.port.Write(buf); err != nil {
		return fmt.Errorf("failed to write telemetry: %v", err)
	}
	return nil
}

func (s *Supervisor) buildFrame() *telemetry.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &telemetry.Frame{
		ACState:      s.acState,
		LastCommand:  s.lastCommand,
		IRPending:    s.irPending,
		UptimeMs:     uint32(time.Since(s.bootTime).Milliseconds()),
		WdtResets:    s.diag.WdtResetCount,
		LastFault:    s.diag.LastFault,
		IROperations: s.irOperations,
	}
}

// Run drives the periodic behavior: telemetry on the configured
// cadence, display and heartbeat ticks, and a watchdog feed on every
// iteration while not trapped. Commands arrive over the channel and
// are executed inline, so all state mutation stays on this goroutine.
func (s *Supervisor) Run(ctx context.Context, commands <-chan Command) error {
	telemetryTicker := time.NewTicker(s.sendInterval)
	defer telemetryTicker.Stop()
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()
	displayTicker := time.NewTicker(displayInterval)
	defer displayTicker.Stop()

	ledOn := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-commands:
			s.dispatch(cmd)

		case <-telemetryTicker.C:
			if err := s.SendTelemetry(); err != nil {
				s.log.Error("Telemetry send failed: %v", err)
			}

		case <-heartbeatTicker.C:
			ledOn = !ledOn
			s.display.Heartbeat(ledOn)

		case <-displayTicker.C:
			s.mu.Lock()
			state, ops, resets := s.acState, s.irOperations, s.diag.WdtResetCount
			s.mu.Unlock()
			s.display.ShowRunning(state, ops, resets)
		}

		s.wd.Feed()
	}
}

func (s *Supervisor) dispatch(cmd Command) {
	switch cmd.Fault {
	case telemetry.FaultInfiniteLoop:
		s.TriggerInfiniteLoopFault()
	case telemetry.FaultLinkStuck:
		s.TriggerLinkStuckFault()
	case telemetry.FaultNone:
		if err := s.ExecuteCommand(cmd.State); err != nil {
			s.log.Error("Command %s failed: %v", cmd.State, err)
		}
	default:
		s.log.Warn("Ignoring unknown fault trigger %d", cmd.Fault)
	}
}

// State returns the current supervisor state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Operations returns the successful command count.
func (s *Supervisor) Operations() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.irOperations
}

// Diagnostics returns a copy of the current persisted record.
func (s *Supervisor) Diagnostics() persist.Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diag
}
