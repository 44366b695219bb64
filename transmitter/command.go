package transmitter

import (
	"aircon-link/telemetry"
)

// Command is one instruction for the supervisor: either an actuator
// state change, or a deliberate fault trigger when Fault is nonzero.
type Command struct {
	State telemetry.SystemState
	Fault telemetry.FaultCode
}

// ParseCommand maps a command-channel payload to a Command. Accepted
// payloads are the state names plus the fault-injection triggers.
func ParseCommand(payload string) (Command, bool) {
	switch payload {
	case "fault:loop":
		return Command{Fault: telemetry.FaultInfiniteLoop}, true
	case "fault:link-stuck":
		return Command{Fault: telemetry.FaultLinkStuck}, true
	}
	if state, ok := telemetry.ParseState(payload); ok {
		return Command{State: state}, true
	}
	return Command{}, false
}
