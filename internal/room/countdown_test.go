package room

import (
	"sync"
	"testing"
	"time"
)

func TestCountdownRunsToZero(t *testing.T) {
	var mu sync.Mutex
	var got []int

	c := StartCountdown(2, time.Millisecond, func(n int) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Countdown did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != 2 || got[2] != 0 {
		t.Errorf("Expected [2 1 0], got %v", got)
	}
}

func TestCountdownStop(t *testing.T) {
	var mu sync.Mutex
	ticks := 0

	c := StartCountdown(5, time.Hour, func(int) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})
	c.Stop()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Stopped countdown did not exit")
	}

	mu.Lock()
	defer mu.Unlock()
	if ticks > 1 {
		t.Errorf("Expected at most the immediate tick, got %d", ticks)
	}
}
