package telemetry

type FaultSeverity int

const (
	SeverityWarning FaultSeverity = iota
	SeverityCritical
)

type FaultConfig struct {
	Code        FaultCode
	Description string
	Severity    FaultSeverity
}

// All induced faults starve the transmitter watchdog, so they are all
// critical: the transmitter is gone until its watchdog resets it.
var faultConfigs = map[FaultCode]FaultConfig{
	FaultInfiniteLoop: {FaultInfiniteLoop, "Infinite loop without watchdog feed", SeverityCritical},
	FaultTemp22Trap:   {FaultTemp22Trap, "Trap while processing temp-22 command", SeverityCritical},
	FaultLinkStuck:    {FaultLinkStuck, "Transmitter stuck re-sending junk", SeverityCritical},
}

func GetFaultConfig(fault FaultCode) (FaultConfig, bool) {
	config, ok := faultConfigs[fault]
	return config, ok
}
