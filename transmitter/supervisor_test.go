package transmitter

import (
	"sync"
	"testing"
	"time"

	"aircon-link/logging"
	"aircon-link/persist"
	"aircon-link/telemetry"
)

// countingWatchdog records feeds for testing
type countingWatchdog struct {
	mu    sync.Mutex
	feeds int
}

func (w *countingWatchdog) Feed() {
	w.mu.Lock()
	w.feeds++
	w.mu.Unlock()
}

func (w *countingWatchdog) Feeds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feeds
}

// memStore is an in-memory persist.Store for testing
type memStore struct {
	mu     sync.Mutex
	record persist.Diagnostics
	valid  bool
	saves  int
	cause  persist.ResetCause
	marked bool
}

func (s *memStore) Load() (persist.Diagnostics, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record, s.valid, nil
}

func (s *memStore) Save(record persist.Diagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = record
	s.valid = true
	s.saves++
	return nil
}

func (s *memStore) MarkWatchdogReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = true
	s.cause = persist.ResetWatchdog
	return nil
}

func (s *memStore) ConsumeResetCause() (persist.ResetCause, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cause := s.cause
	s.cause = persist.ResetNormal
	return cause, nil
}

func (s *memStore) Record() persist.Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

func (s *memStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// safeBuffer is a goroutine-safe byte sink standing in for the UART
type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}

type fakeActuator struct {
	mu    sync.Mutex
	calls []telemetry.SystemState
	err   error
}

func (a *fakeActuator) Execute(state telemetry.SystemState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.calls = append(a.calls, state)
	return nil
}

type fakeDisplay struct {
	mu     sync.Mutex
	faults []telemetry.FaultCode
}

func (d *fakeDisplay) ShowBootDiag(cause persist.ResetCause, diag persist.Diagnostics) {}
func (d *fakeDisplay) ShowRunning(state telemetry.SystemState, operations uint32, wdtResets uint32) {
}
func (d *fakeDisplay) Heartbeat(on bool) {}

func (d *fakeDisplay) ShowFault(fault telemetry.FaultCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = append(d.faults, fault)
}

func (d *fakeDisplay) Faults() []telemetry.FaultCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]telemetry.FaultCode(nil), d.faults...)
}

// trapSleeper signals once the trap loop is spinning, then parks the
// trapped goroutine forever so tests can assert on the terminal state.
type trapSleeper struct {
	mu       sync.Mutex
	calls    int
	spinning chan struct{}
	signaled bool
}

func newTrapSleeper() *trapSleeper {
	return &trapSleeper{spinning: make(chan struct{})}
}

func (s *trapSleeper) Sleep(time.Duration) {
	s.mu.Lock()
	s.calls++
	calls := s.calls
	if calls >= 3 && !s.signaled {
		s.signaled = true
		close(s.spinning)
	}
	s.mu.Unlock()

	if calls >= 3 {
		select {} // park: only a hardware reset ends a trap
	}
}

type supervisorFixture struct {
	supervisor *Supervisor
	wd         *countingWatchdog
	store      *memStore
	port       *safeBuffer
	actuator   *fakeActuator
	display    *fakeDisplay
	sleeper    *trapSleeper
}

func newFixture() *supervisorFixture {
	f := &supervisorFixture{
		wd:       &countingWatchdog{},
		store:    &memStore{},
		port:     &safeBuffer{},
		actuator: &fakeActuator{},
		display:  &fakeDisplay{},
		sleeper:  newTrapSleeper(),
	}
	f.supervisor = NewSupervisor(SupervisorConfig{
		Logger:   logging.Nop{},
		Port:     f.port,
		Watchdog: f.wd,
		Store:    f.store,
		Actuator: f.actuator,
		Display:  f.display,
		Sleep:    f.sleeper.Sleep,
	})
	return f
}

func (f *supervisorFixture) lastFrame(t *testing.T) *telemetry.Frame {
	t.Helper()
	buf := f.port.Bytes()
	if len(buf) < telemetry.FrameSize {
		t.Fatal("no frame written")
	}
	frame, err := telemetry.Decode(buf[len(buf)-telemetry.FrameSize:])
	if err != nil {
		t.Fatalf("last frame invalid: %v", err)
	}
	return frame
}

func TestBootFirstBoot(t *testing.T) {
	f := newFixture()

	if err := f.supervisor.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	record := f.store.Record()
	if record.BootCount != 1 {
		t.Errorf("boot count: got %d, want 1", record.BootCount)
	}
	if record.WdtResetCount != 0 {
		t.Errorf("wdt reset count: got %d, want 0", record.WdtResetCount)
	}
	if record.LastFault != telemetry.FaultNone {
		t.Errorf("last fault: got %v, want none", record.LastFault)
	}
	if f.store.Saves() != 1 {
		t.Errorf("record saved %d times, want exactly 1", f.store.Saves())
	}

	frame := f.lastFrame(t)
	if frame.ACState != telemetry.StateOff || frame.WdtResets != 0 || frame.LastFault != telemetry.FaultNone {
		t.Errorf("unexpected boot frame: %+v", frame)
	}
}

func TestBootAfterWatchdogReset(t *testing.T) {
	f := newFixture()
	f.store.record = persist.Diagnostics{
		BootCount:     3,
		WdtResetCount: 1,
		LastFault:     telemetry.FaultTemp22Trap,
	}
	f.store.valid = true
	f.store.cause = persist.ResetWatchdog

	if err := f.supervisor.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	record := f.store.Record()
	if record.BootCount != 4 {
		t.Errorf("boot count: got %d, want 4", record.BootCount)
	}
	if record.WdtResetCount != 2 {
		t.Errorf("wdt reset count: got %d, want 2", record.WdtResetCount)
	}
	if record.LastReset != persist.ResetWatchdog {
		t.Errorf("last reset: got %v, want watchdog", record.LastReset)
	}
	// The fault written before the trap must survive the reset.
	if record.LastFault != telemetry.FaultTemp22Trap {
		t.Errorf("last fault: got %v, want temp-22 trap", record.LastFault)
	}

	frame := f.lastFrame(t)
	if frame.WdtResets != 2 || frame.LastFault != telemetry.FaultTemp22Trap {
		t.Errorf("boot frame does not surface the reset: %+v", frame)
	}
}

func TestBootAfterNormalResetClearsFault(t *testing.T) {
	f := newFixture()
	f.store.record = persist.Diagnostics{
		BootCount:     5,
		WdtResetCount: 2,
		LastFault:     telemetry.FaultInfiniteLoop,
	}
	f.store.valid = true

	if err := f.supervisor.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	record := f.store.Record()
	if record.LastFault != telemetry.FaultNone {
		t.Errorf("normal boot must clear the fault, got %v", record.LastFault)
	}
	if record.WdtResetCount != 2 {
		t.Errorf("wdt reset count must not change: got %d", record.WdtResetCount)
	}
}

func TestExecuteCommandSuccess(t *testing.T) {
	f := newFixture()

	if err := f.supervisor.ExecuteCommand(telemetry.StateOn); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}

	if f.supervisor.State() != StateReady {
		t.Errorf("state: got %v, want ready", f.supervisor.State())
	}
	if f.supervisor.Operations() != 1 {
		t.Errorf("operations: got %d, want 1", f.supervisor.Operations())
	}
	if len(f.actuator.calls) != 1 || f.actuator.calls[0] != telemetry.StateOn {
		t.Errorf("actuator calls: %v", f.actuator.calls)
	}
	if f.wd.Feeds() < 2 {
		t.Errorf("expected feeds before and after actuation, got %d", f.wd.Feeds())
	}

	frame := f.lastFrame(t)
	if frame.ACState != telemetry.StateOn || frame.LastCommand != telemetry.StateOn {
		t.Errorf("unexpected frame: %+v", frame)
	}
	if frame.IRPending {
		t.Error("ir_pending must be clear after success")
	}
	if frame.IROperations != 1 {
		t.Errorf("ir_operations: got %d, want 1", frame.IROperations)
	}
}

func TestExecuteCommandActuationFailure(t *testing.T) {
	f := newFixture()
	f.actuator.err = errFailedActuation

	if err := f.supervisor.ExecuteCommand(telemetry.StateFan1); err == nil {
		t.Fatal("expected error")
	}
	if f.supervisor.State() != StateReady {
		t.Errorf("state: got %v, want ready", f.supervisor.State())
	}
	if f.supervisor.Operations() != 0 {
		t.Errorf("operations must not advance on failure, got %d", f.supervisor.Operations())
	}
}

func TestExecuteCommandInvalid(t *testing.T) {
	f := newFixture()
	if err := f.supervisor.ExecuteCommand(telemetry.StateMax); err == nil {
		t.Fatal("expected error for invalid state")
	}
}

// waitSpinning blocks until the fault path reaches its terminal loop.
func (f *supervisorFixture) waitSpinning(t *testing.T) {
	t.Helper()
	select {
	case <-f.sleeper.spinning:
	case <-time.After(2 * time.Second):
		t.Fatal("trap loop never started spinning")
	}
}

// assertTrapped checks the common guarantees of every designed fault
// path: diagnostics persisted, one fault frame flushed, terminal state
// reached, and no watchdog feeds ever again.
func (f *supervisorFixture) assertTrapped(t *testing.T, fault telemetry.FaultCode) {
	t.Helper()

	if f.supervisor.State() != StateTrapped {
		t.Fatalf("state: got %v, want trapped", f.supervisor.State())
	}

	record := f.store.Record()
	if record.LastFault != fault {
		t.Errorf("persisted fault: got %v, want %v", record.LastFault, fault)
	}

	faults := f.display.Faults()
	if len(faults) != 1 || faults[0] != fault {
		t.Errorf("display faults: %v", faults)
	}

	// No forward progress: the feed count must stay frozen while the
	// trap spins.
	before := f.wd.Feeds()
	time.Sleep(50 * time.Millisecond)
	if after := f.wd.Feeds(); after != before {
		t.Errorf("watchdog fed inside trap: %d -> %d", before, after)
	}
}

func TestTemp22CommandTraps(t *testing.T) {
	f := newFixture()

	done := make(chan error, 1)
	go func() {
		done <- f.supervisor.ExecuteCommand(telemetry.StateTemp22)
	}()

	f.waitSpinning(t)

	select {
	case err := <-done:
		t.Fatalf("temp-22 returned (%v); the trap must never return", err)
	default:
	}

	f.assertTrapped(t, telemetry.FaultTemp22Trap)

	// The actuator is never reached on the designed failure path.
	if len(f.actuator.calls) != 0 {
		t.Errorf("actuator called on trap path: %v", f.actuator.calls)
	}

	frame := f.lastFrame(t)
	if frame.LastFault != telemetry.FaultTemp22Trap {
		t.Errorf("fault frame: got %v", frame.LastFault)
	}
	if frame.LastCommand != telemetry.StateTemp22 || !frame.IRPending {
		t.Errorf("fault frame must reflect the in-flight command: %+v", frame)
	}

	// A trapped supervisor refuses further commands.
	if err := f.supervisor.ExecuteCommand(telemetry.StateOn); err == nil {
		t.Error("expected error while trapped")
	}
}

func TestInfiniteLoopFaultTraps(t *testing.T) {
	f := newFixture()

	go f.supervisor.TriggerInfiniteLoopFault()
	f.waitSpinning(t)
	f.assertTrapped(t, telemetry.FaultInfiniteLoop)

	frame := f.lastFrame(t)
	if frame.LastFault != telemetry.FaultInfiniteLoop {
		t.Errorf("fault frame: got %v", frame.LastFault)
	}
}

func TestLinkStuckFaultTraps(t *testing.T) {
	f := newFixture()

	go f.supervisor.TriggerLinkStuckFault()
	f.waitSpinning(t)
	f.assertTrapped(t, telemetry.FaultLinkStuck)

	// The wire carries the fault frame followed by junk that never
	// parses as another frame.
	buf := f.port.Bytes()
	frame, err := telemetry.Decode(buf[:telemetry.FrameSize])
	if err != nil {
		t.Fatalf("fault frame invalid: %v", err)
	}
	if frame.LastFault != telemetry.FaultLinkStuck {
		t.Errorf("fault frame: got %v", frame.LastFault)
	}

	var dec telemetry.StreamDecoder
	if frames := dec.Feed(buf[telemetry.FrameSize:]); len(frames) != 0 {
		t.Errorf("junk after the trap decoded as %d frames", len(frames))
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    Command
		ok      bool
	}{
		{"on", Command{State: telemetry.StateOn}, true},
		{"off", Command{State: telemetry.StateOff}, true},
		{"temp-20", Command{State: telemetry.StateTemp20}, true},
		{"temp-22", Command{State: telemetry.StateTemp22}, true},
		{"fan-1", Command{State: telemetry.StateFan1}, true},
		{"fan-2", Command{State: telemetry.StateFan2}, true},
		{"fault:loop", Command{Fault: telemetry.FaultInfiniteLoop}, true},
		{"fault:link-stuck", Command{Fault: telemetry.FaultLinkStuck}, true},
		{"defrost", Command{}, false},
		{"", Command{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.payload)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, %v; want %+v, %v", tt.payload, got, ok, tt.want, tt.ok)
		}
	}
}

var errFailedActuation = &actuationError{}

type actuationError struct{}

func (*actuationError) Error() string { return "ir emitter offline" }
