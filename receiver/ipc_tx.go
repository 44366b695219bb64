package receiver

import (
	"context"
	"fmt"
	"sync"

	"aircon-link/logging"
	"aircon-link/telemetry"

	"github.com/go-redis/redis/v8"
)

const (
	viewGroupName           = "aircon-link"
	viewHashKey             = "aircon-link"
	viewNotificationChannel = "aircon-link"
	viewFaultSetKey         = "aircon-link:fault"
	viewEventStream         = "events:faults"
	viewEventStreamMaxLen   = 1000
)

// ViewTx publishes the validated telemetry view into redis, where the
// display layers pick it up. It is the receiver's only outbound
// surface; nothing goes back over the wire.
type ViewTx struct {
	log       logging.Logger
	redis     *redis.Client
	mu        sync.Mutex
	ctx       context.Context
	lastFault telemetry.FaultCode
}

func NewViewTx(logger logging.Logger, redis *redis.Client) *ViewTx {
	return &ViewTx{
		log:   logger,
		redis: redis,
		ctx:   context.Background(),
	}
}

func (tx *ViewTx) Destroy() {}

// PublishTelemetry mirrors the latest link health into the view hash
// and notifies subscribers.
func (tx *ViewTx) PublishTelemetry(health LinkHealth) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	fields := map[string]interface{}{
		"link-up":      map[bool]string{true: "up", false: "down"}[health.LinkUp],
		"packet-count": health.PacketCount,
	}
	if frame := health.LastFrame; frame != nil {
		fields["ac-state"] = frame.ACState.String()
		fields["last-command"] = frame.LastCommand.String()
		fields["ir-pending"] = map[bool]string{true: "yes", false: "no"}[frame.IRPending]
		fields["uptime-ms"] = frame.UptimeMs
		fields["wdt-resets"] = frame.WdtResets
		fields["last-fault"] = frame.LastFault.String()
		fields["ir-operations"] = frame.IROperations
	}

	pipe := tx.redis.Pipeline()
	pipe.HSet(tx.ctx, viewHashKey, fields)
	pipe.Publish(tx.ctx, viewNotificationChannel, "telemetry")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return fmt.Errorf("failed to publish telemetry view: %v", err)
	}
	return nil
}

// ReportFault mirrors fault transitions into the fault set and the
// capped event stream. Repeats of the same code are not re-reported.
func (tx *ViewTx) ReportFault(fault telemetry.FaultCode) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if fault == tx.lastFault {
		return
	}
	previous := tx.lastFault
	tx.lastFault = fault

	if previous != telemetry.FaultNone {
		tx.reportFaultAbsent(previous)
	}
	if fault == telemetry.FaultNone {
		return
	}

	config, ok := telemetry.GetFaultConfig(fault)
	if !ok {
		tx.log.Warn("Unknown fault code: %d", fault)
		return
	}

	tx.log.Error("Fault set: code=%d, description=%s", fault, config.Description)
	tx.reportFaultPresent(fault, config)
}

func (tx *ViewTx) reportFaultPresent(fault telemetry.FaultCode, config telemetry.FaultConfig) {
	pipe := tx.redis.Pipeline()

	pipe.SAdd(tx.ctx, viewFaultSetKey, uint32(fault))

	pipe.XAdd(tx.ctx, &redis.XAddArgs{
		Stream: viewEventStream,
		MaxLen: viewEventStreamMaxLen,
		Values: map[string]interface{}{
			"group":       viewGroupName,
			"code":        uint32(fault),
			"description": config.Description,
		},
	})

	pipe.Publish(tx.ctx, viewNotificationChannel, "fault")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		tx.log.Error("Failed to report fault present: %v", err)
	}
}

func (tx *ViewTx) reportFaultAbsent(fault telemetry.FaultCode) {
	pipe := tx.redis.Pipeline()

	pipe.SRem(tx.ctx, viewFaultSetKey, uint32(fault))

	pipe.XAdd(tx.ctx, &redis.XAddArgs{
		Stream: viewEventStream,
		MaxLen: viewEventStreamMaxLen,
		Values: map[string]interface{}{
			"group": viewGroupName,
			"code":  -int32(fault),
		},
	})

	pipe.Publish(tx.ctx, viewNotificationChannel, "fault")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		tx.log.Error("Failed to report fault absent: %v", err)
	}
}
