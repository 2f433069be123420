package room

import (
	"context"
	"time"
)

// Countdown calls tick with from, from-1, ... 0, one interval apart, on its
// own goroutine. The first tick fires immediately.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func StartCountdown(from int, interval time.Duration, tick func(remaining int)) *Countdown {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Countdown{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for remaining := from; remaining >= 0; remaining-- {
			if remaining != from {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			if ctx.Err() != nil {
				return
			}
			tick(remaining)
		}
	}()

	return c
}

// Stop cancels pending ticks. It does not wait for a tick already in flight.
func (c *Countdown) Stop() {
	c.cancel()
}

func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
