package telemetry

// SystemState represents the air-conditioner state reported by the
// transmitter. The byte values are part of the wire contract.
type SystemState uint8

const (
	StateOff SystemState = iota
	StateOn
	StateTemp20
	StateTemp22
	StateFan1
	StateFan2
	StateMax
)

var stateNames = map[SystemState]string{
	StateOff:    "off",
	StateOn:     "on",
	StateTemp20: "temp-20",
	StateTemp22: "temp-22",
	StateFan1:   "fan-1",
	StateFan2:   "fan-2",
}

func (s SystemState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsValid reports whether the value is a known system state.
func (s SystemState) IsValid() bool {
	return s < StateMax
}

// ParseState maps a command name to a SystemState.
func ParseState(name string) (SystemState, bool) {
	for state, n := range stateNames {
		if n == name {
			return state, true
		}
	}
	return StateOff, false
}

// FaultCode identifies an induced failure on the transmitter node.
// Codes travel on the wire in the last_fault field and are persisted
// across watchdog resets.
type FaultCode uint32

const (
	FaultNone FaultCode = iota
	FaultInfiniteLoop
	FaultTemp22Trap
	FaultLinkStuck
)

func (f FaultCode) String() string {
	if config, ok := GetFaultConfig(f); ok {
		return config.Description
	}
	if f == FaultNone {
		return "none"
	}
	return "unknown"
}

// IsFatal reports whether the code is a recognized induced fault that
// should trigger receiver recovery.
func (f FaultCode) IsFatal() bool {
	_, ok := faultConfigs[f]
	return ok
}
