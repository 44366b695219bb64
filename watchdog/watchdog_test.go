package watchdog

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFeedKeepsAlive(t *testing.T) {
	var fired int32
	wd := New(100*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	wd.Start()
	defer wd.Stop()

	for i := 0; i < 10; i++ {
		time.Sleep(30 * time.Millisecond)
		wd.Feed()
	}

	if wd.Expired() {
		t.Fatal("watchdog expired despite regular feeds")
	}
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Fatalf("expiry handler ran %d times", n)
	}
}

func TestStarvedWatchdogExpiresOnce(t *testing.T) {
	expired := make(chan struct{})
	var fired int32
	wd := New(50*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
		close(expired)
	})
	wd.Start()

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("watchdog never expired")
	}

	if !wd.Expired() {
		t.Fatal("Expired() should report true")
	}

	// Feeding after expiry must not revive it.
	wd.Feed()
	time.Sleep(80 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("expiry handler ran %d times, want 1", n)
	}
}

func TestStopDisarms(t *testing.T) {
	var fired int32
	wd := New(30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	wd.Start()
	wd.Stop()

	time.Sleep(80 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Fatalf("expiry handler ran %d times after Stop", n)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	wd := New(time.Hour, nil)
	wd.Start()
	wd.Start()
	wd.Feed()
	wd.Stop()
}
