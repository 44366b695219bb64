package transmitter

import (
	"aircon-link/logging"
	"aircon-link/persist"
	"aircon-link/telemetry"
)

// LogDisplay renders node status into the log. It stands in for the
// on-device panel on hosts that have none.
type LogDisplay struct {
	log logging.Logger
}

func NewLogDisplay(logger logging.Logger) *LogDisplay {
	return &LogDisplay{log: logger}
}

func (d *LogDisplay) ShowBootDiag(cause persist.ResetCause, diag persist.Diagnostics) {
	d.log.Info("BOOT reset=%s boots=%d wdt-resets=%d fault=%s",
		cause, diag.BootCount, diag.WdtResetCount, diag.LastFault)
}

func (d *LogDisplay) ShowRunning(state telemetry.SystemState, operations uint32, wdtResets uint32) {
	d.log.Debug("AC=%s ops=%d wdt-resets=%d", state, operations, wdtResets)
}

func (d *LogDisplay) ShowFault(fault telemetry.FaultCode) {
	d.log.Error("INDUCED FAULT: %s, waiting for watchdog reset", fault)
}

func (d *LogDisplay) Heartbeat(on bool) {}

var _ Display = (*LogDisplay)(nil)

// LogActuator logs accepted commands instead of driving real actuator
// hardware. The command emission path lives outside this service.
type LogActuator struct {
	log logging.Logger
}

func NewLogActuator(logger logging.Logger) *LogActuator {
	return &LogActuator{log: logger}
}

func (a *LogActuator) Execute(state telemetry.SystemState) error {
	a.log.Info("Actuating: %s", state)
	return nil
}

var _ Actuator = (*LogActuator)(nil)
