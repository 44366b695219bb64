// Package persist keeps the transmitter's boot diagnostics across
// power loss and watchdog resets. The record written just before an
// induced trap is the only forensic evidence of the fault once the
// watchdog has fired.
package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"aircon-link/telemetry"
)

// Magic marks an initialized diagnostics record. A missing or
// mismatching magic means first-ever boot: all counters start at zero.
const Magic uint32 = 0xDEADBEEF

const recordSize = 20

// ResetCause says why the node last went down.
type ResetCause uint32

const (
	ResetNormal ResetCause = iota
	ResetWatchdog
)

func (c ResetCause) String() string {
	if c == ResetWatchdog {
		return "watchdog"
	}
	return "normal"
}

// Diagnostics is the persisted record.
type Diagnostics struct {
	BootCount     uint32
	WdtResetCount uint32
	LastReset     ResetCause
	LastFault     telemetry.FaultCode
}

// Store abstracts the non-volatile diagnostics block.
type Store interface {
	// Load returns the record, or ok=false when no valid record
	// exists yet (first boot, or corrupted magic).
	Load() (Diagnostics, bool, error)

	// Save persists the record. Callers treat it as atomic: the main
	// loop resumes only after the write completes.
	Save(Diagnostics) error

	// MarkWatchdogReset records that the coming reset is watchdog
	// caused. Called from the watchdog expiry handler, never from the
	// main loop.
	MarkWatchdogReset() error

	// ConsumeResetCause reads and clears the reset cause left by the
	// previous run. Absence of a marker means a normal power-on.
	ConsumeResetCause() (ResetCause, error)
}

// FileStore keeps the record and the reset-cause marker as files in
// one directory. The record write goes through a temp file and rename
// so a crash mid-write leaves the previous record intact.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create persist dir: %v", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) recordPath() string { return filepath.Join(s.dir, "diagnostics.bin") }
func (s *FileStore) markerPath() string { return filepath.Join(s.dir, "reset-cause") }

func (s *FileStore) Load() (Diagnostics, bool, error) {
	buf, err := os.ReadFile(s.recordPath())
	if errors.Is(err, os.ErrNotExist) {
		return Diagnostics{}, false, nil
	}
	if err != nil {
		return Diagnostics{}, false, fmt.Errorf("failed to read diagnostics: %v", err)
	}

	record, ok := decodeRecord(buf)
	return record, ok, nil
}

func (s *FileStore) Save(record Diagnostics) error {
	tmp := s.recordPath() + ".tmp"
	if err := os.WriteFile(tmp, encodeRecord(record), 0o644); err != nil {
		return fmt.Errorf("failed to write diagnostics: %v", err)
	}
	if err := os.Rename(tmp, s.recordPath()); err != nil {
		return fmt.Errorf("failed to commit diagnostics: %v", err)
	}
	return nil
}

func (s *FileStore) MarkWatchdogReset() error {
	if err := os.WriteFile(s.markerPath(), []byte{byte(ResetWatchdog)}, 0o644); err != nil {
		return fmt.Errorf("failed to write reset marker: %v", err)
	}
	return nil
}

func (s *FileStore) ConsumeResetCause() (ResetCause, error) {
	buf, err := os.ReadFile(s.markerPath())
	if errors.Is(err, os.ErrNotExist) {
		return ResetNormal, nil
	}
	if err != nil {
		return ResetNormal, fmt.Errorf("failed to read reset marker: %v", err)
	}

	if err := os.Remove(s.markerPath()); err != nil {
		return ResetNormal, fmt.Errorf("failed to clear reset marker: %v", err)
	}
	if len(buf) >= 1 && ResetCause(buf[0]) == ResetWatchdog {
		return ResetWatchdog, nil
	}
	return ResetNormal, nil
}

func encodeRecord(record Diagnostics) []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint32(buf[4:], record.BootCount)
	binary.LittleEndian.PutUint32(buf[8:], record.WdtResetCount)
	binary.LittleEndian.PutUint32(buf[12:], uint32(record.LastReset))
	binary.LittleEndian.PutUint32(buf[16:], uint32(record.LastFault))
	return buf
}

func decodeRecord(buf []byte) (Diagnostics, bool) {
	if len(buf) < recordSize {
		return Diagnostics{}, false
	}
	if binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return Diagnostics{}, false
	}
	return Diagnostics{
		BootCount:     binary.LittleEndian.Uint32(buf[4:]),
		WdtResetCount: binary.LittleEndian.Uint32(buf[8:]),
		LastReset:     ResetCause(binary.LittleEndian.Uint32(buf[12:])),
		LastFault:     telemetry.FaultCode(binary.LittleEndian.Uint32(buf[16:])),
	}, true
}

var _ Store = (*FileStore)(nil)
