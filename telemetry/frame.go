package telemetry

import (
	"encoding/binary"
	"errors"
)

const (
	// FrameSize is the fixed wire size of a telemetry frame.
	FrameSize = 22

	// FrameHeader and FrameFooter are the frame sentinels. They must
	// match on both nodes or the link contract breaks.
	FrameHeader byte = 0xAA
	FrameFooter byte = 0x55
)

// Wire byte offsets. The layout is a compatibility contract with the
// transmitter firmware and must not change.
const (
	offHeader       = 0
	offACState      = 1
	offLastCommand  = 2
	offIRPending    = 3
	offUptimeMs     = 4
	offWdtResets    = 8
	offLastFault    = 12
	offIROperations = 16
	offChecksum     = 20
	offFooter       = 21
)

var (
	ErrShortFrame = errors.New("telemetry: frame shorter than 22 bytes")
	ErrBadHeader  = errors.New("telemetry: bad frame header")
	ErrBadFooter  = errors.New("telemetry: bad frame footer")
	ErrChecksum   = errors.New("telemetry: checksum mismatch")
)

// Frame is one telemetry record as carried on the wire.
type Frame struct {
	ACState      SystemState
	LastCommand  SystemState
	IRPending    bool
	UptimeMs     uint32
	WdtResets    uint32
	LastFault    FaultCode
	IROperations uint32
}

// Checksum computes the 8-bit unsigned sum of bytes [0, offChecksum).
// It is a deliberately cheap integrity check: it catches most wire
// corruption but misses some patterns, e.g. two swapped bytes sum the
// same. It is not a CRC and not a substitute for one.
func Checksum(buf []byte) byte {
	var sum byte
	for _, b := range buf[:offChecksum] {
		sum += b
	}
	return sum
}

// Encode serializes the frame into its 22-byte wire form. It always
// succeeds: every field is fixed width.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameSize)
	buf[offHeader] = FrameHeader
	buf[offACState] = byte(f.ACState)
	buf[offLastCommand] = byte(f.LastCommand)
	if f.IRPending {
		buf[offIRPending] = 1
	}
	binary.LittleEndian.PutUint32(buf[offUptimeMs:], f.UptimeMs)
	binary.LittleEndian.PutUint32(buf[offWdtResets:], f.WdtResets)
	binary.LittleEndian.PutUint32(buf[offLastFault:], uint32(f.LastFault))
	binary.LittleEndian.PutUint32(buf[offIROperations:], f.IROperations)
	buf[offChecksum] = Checksum(buf)
	buf[offFooter] = FrameFooter
	return buf
}

// Decode validates and deserializes a 22-byte wire frame.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < FrameSize {
		return nil, ErrShortFrame
	}
	if buf[offHeader] != FrameHeader {
		return nil, ErrBadHeader
	}
	if buf[offFooter] != FrameFooter {
		return nil, ErrBadFooter
	}
	if buf[offChecksum] != Checksum(buf) {
		return nil, ErrChecksum
	}

	return &Frame{
		ACState:      SystemState(buf[offACState]),
		LastCommand:  SystemState(buf[offLastCommand]),
		IRPending:    buf[offIRPending] != 0,
		UptimeMs:     binary.LittleEndian.Uint32(buf[offUptimeMs:]),
		WdtResets:    binary.LittleEndian.Uint32(buf[offWdtResets:]),
		LastFault:    FaultCode(binary.LittleEndian.Uint32(buf[offLastFault:])),
		IROperations: binary.LittleEndian.Uint32(buf[offIROperations:]),
	}, nil
}
