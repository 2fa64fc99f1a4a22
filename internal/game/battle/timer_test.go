package battle_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cory-johannsen/duel/internal/game/battle"
)

func TestExpiryTimer_Fires(t *testing.T) {
	var called atomic.Int32
	battle.NewExpiryTimer(20*time.Millisecond, func() {
		called.Add(1)
	})
	time.Sleep(80 * time.Millisecond)
	if called.Load() != 1 {
		t.Fatalf("expected callback called once, got %d", called.Load())
	}
}

func TestExpiryTimer_Stop_PreventsCallback(t *testing.T) {
	var called atomic.Int32
	et := battle.NewExpiryTimer(50*time.Millisecond, func() {
		called.Add(1)
	})
	if !et.Stop() {
		t.Fatal("expected first Stop to win")
	}
	time.Sleep(80 * time.Millisecond)
	if called.Load() != 0 {
		t.Fatalf("expected callback not called, got %d", called.Load())
	}
}

func TestExpiryTimer_StopAfterExpiryLoses(t *testing.T) {
	done := make(chan struct{})
	et := battle.NewExpiryTimer(10*time.Millisecond, func() { close(done) })
	<-done
	if et.Stop() {
		t.Fatal("Stop after expiry must report false")
	}
}

func TestExpiryTimer_StopIdempotent(t *testing.T) {
	et := battle.NewExpiryTimer(50*time.Millisecond, func() {})
	// Multiple Stop() calls must not panic
	et.Stop()
	et.Stop()
	if et.Stop() {
		t.Fatal("only the first Stop may win")
	}
}
