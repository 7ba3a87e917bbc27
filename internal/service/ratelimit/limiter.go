package ratelimit

import (
	"sync"
	"time"
)

// sweepEvery is how many Allow calls pass between idle-bucket sweeps.
const sweepEvery = 1024

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket.
type Limiter struct {
	mu         sync.Mutex
	m          map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
	calls      int
	now        func() time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		m:          make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillPerSec,
		now:        time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	l.calls++
	if l.calls%sweepEvery == 0 && l.refillRate > 0 {
		// a bucket idle this long has refilled and equals a fresh one
		full := time.Duration(l.capacity / l.refillRate * float64(time.Second))
		l.sweepLocked(now.Add(-full))
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Sweep forgets buckets idle for longer than idle; a full bucket carries no state.
func (l *Limiter) Sweep(idle time.Duration) {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	l.sweepLocked(cutoff)
	l.mu.Unlock()
}

func (l *Limiter) sweepLocked(cutoff time.Time) {
	for k, b := range l.m {
		if b.last.Before(cutoff) {
			delete(l.m, k)
		}
	}
}
