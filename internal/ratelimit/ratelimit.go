package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket for one connection's inbound calls.
type Limiter struct {
	limiter    *rate.Limiter
	violations int
	mu         sync.Mutex
}

func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN reports whether n calls may proceed now and counts a violation if not.
func (l *Limiter) AllowN(n int) bool {
	if l.limiter.AllowN(time.Now(), n) {
		return true
	}
	l.mu.Lock()
	l.violations++
	l.mu.Unlock()
	return false
}

// Number of denied calls so far
func (l *Limiter) Violations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.violations
}

// ClientLimiters hands out one Limiter per connection id.
type ClientLimiters struct {
	limiters        map[string]*Limiter
	rate            float64
	burst           int
	mu              sync.RWMutex
	cleanupInterval time.Duration
	maxEntries      int
	stop            chan struct{}
	stopOnce        sync.Once
}

func NewClientLimiters(perSecond float64, burst int) *ClientLimiters {
	cl := &ClientLimiters{
		limiters:        make(map[string]*Limiter),
		rate:            perSecond,
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		maxEntries:      10000,
		stop:            make(chan struct{}),
	}
	go cl.cleanup()
	return cl
}

func (cl *ClientLimiters) Get(clientID string) *Limiter {
	cl.mu.RLock()
	limiter, ok := cl.limiters[clientID]
	cl.mu.RUnlock()

	if ok {
		return limiter
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if limiter, ok := cl.limiters[clientID]; ok {
		return limiter
	}

	limiter = NewLimiter(cl.rate, cl.burst)
	cl.limiters[clientID] = limiter
	return limiter
}

func (cl *ClientLimiters) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	delete(cl.limiters, clientID)
}

func (cl *ClientLimiters) Len() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.limiters)
}

func (cl *ClientLimiters) Stop() {
	cl.stopOnce.Do(func() { close(cl.stop) })
}

// Entries are removed on disconnect; this only guards against leaks.
func (cl *ClientLimiters) cleanup() {
	ticker := time.NewTicker(cl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.stop:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if len(cl.limiters) > cl.maxEntries {
				cl.limiters = make(map[string]*Limiter)
			}
			cl.mu.Unlock()
		}
	}
}
