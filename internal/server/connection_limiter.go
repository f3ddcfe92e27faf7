package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// GlobalConnectionLimiter limits total concurrent WebSocket connections per
// instance. Uses atomic operations for lock-free counting.
type GlobalConnectionLimiter struct {
	current atomic.Int64
	max     int64
}

func NewGlobalConnectionLimiter(max int64) *GlobalConnectionLimiter {
	return &GlobalConnectionLimiter{max: max}
}

// Acquire attempts to acquire a connection slot.
// Returns true if successful, false if at capacity.
func (l *GlobalConnectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a connection slot.
func (l *GlobalConnectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the current number of connections.
func (l *GlobalConnectionLimiter) Current() int64 {
	return l.current.Load()
}

// IPConnectionLimiter limits concurrent connections per IP address.
type IPConnectionLimiter struct {
	mu     sync.RWMutex
	ips    map[string]int
	maxPer int
}

func NewIPConnectionLimiter(maxPer int) *IPConnectionLimiter {
	return &IPConnectionLimiter{
		ips:    make(map[string]int),
		maxPer: maxPer,
	}
}

// Acquire attempts to acquire a connection slot for the given IP.
func (l *IPConnectionLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

// Release releases a connection slot for the given IP.
func (l *IPConnectionLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 0 {
		l.ips[ip] = count - 1
		if l.ips[ip] == 0 {
			delete(l.ips, ip)
		}
	}
}

// Count returns the current connection count for the given IP.
func (l *IPConnectionLimiter) Count(ip string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ips[ip]
}

const limiterCleanupInterval = 5 * time.Minute

// ConnectionRateLimiter limits the rate of new connections per IP using a
// token bucket per source address.
type ConnectionRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionRateLimiter(r rate.Limit, burst int) *ConnectionRateLimiter {
	return &ConnectionRateLimiter{
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      r,
		burst:     burst,
		cleanupAt: time.Now().Add(limiterCleanupInterval),
	}
}

// Allow reports whether a new connection from the given IP may proceed.
func (l *ConnectionRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.cleanupAt) {
		l.cleanup()
		l.cleanupAt = time.Now().Add(limiterCleanupInterval)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(l.rate, l.burst),
		}
		l.limiters[ip] = entry
	}

	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// cleanup removes limiters idle for more than two cleanup intervals.
// Must be called with mu held.
func (l *ConnectionRateLimiter) cleanup() {
	cutoff := time.Now().Add(-2 * limiterCleanupInterval)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}
