package persist

import (
	"os"
	"path/filepath"
	"testing"

	"aircon-link/telemetry"
)

func TestLoadMissingRecord(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing record")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	in := Diagnostics{
		BootCount:     7,
		WdtResetCount: 3,
		LastReset:     ResetWatchdog,
		LastFault:     telemetry.FaultTemp22Trap,
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestLoadBadMagic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	buf := make([]byte, recordSize)
	buf[0] = 0x42 // not the magic
	if err := os.WriteFile(filepath.Join(dir, "diagnostics.bin"), buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for bad magic")
	}
}

func TestLoadTruncatedRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "diagnostics.bin"), []byte{0xEF, 0xBE}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for truncated record")
	}
}

func TestResetCauseMarker(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// No marker means a normal power-on.
	cause, err := store.ConsumeResetCause()
	if err != nil {
		t.Fatalf("ConsumeResetCause: %v", err)
	}
	if cause != ResetNormal {
		t.Fatalf("expected ResetNormal, got %v", cause)
	}

	if err := store.MarkWatchdogReset(); err != nil {
		t.Fatalf("MarkWatchdogReset: %v", err)
	}

	cause, err = store.ConsumeResetCause()
	if err != nil {
		t.Fatalf("ConsumeResetCause: %v", err)
	}
	if cause != ResetWatchdog {
		t.Fatalf("expected ResetWatchdog, got %v", cause)
	}

	// The marker is consumed: a second read is back to normal.
	cause, err = store.ConsumeResetCause()
	if err != nil {
		t.Fatalf("ConsumeResetCause: %v", err)
	}
	if cause != ResetNormal {
		t.Fatalf("expected ResetNormal after consume, got %v", cause)
	}
}
