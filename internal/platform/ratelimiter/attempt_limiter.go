package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"signet-wallet/go-keystore/pkg/models"
)

// AttemptLimiter applies a token bucket per account address and evicts
// idle buckets so a long-lived store does not accumulate state for every
// address it ever saw.
type AttemptLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byAddr map[models.Address]*bucket
	calls  uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates an address-keyed limiter; returns nil (meaning "allow all")
// if the arguments are invalid.
func New(perMinute float64, burst int, idleTTL time.Duration) *AttemptLimiter {
	if perMinute <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &AttemptLimiter{
		limit:   rate.Limit(perMinute / 60.0),
		burst:   burst,
		idleTTL: idleTTL,
		byAddr:  make(map[models.Address]*bucket),
	}
}

// Allow reports whether one attempt may proceed for addr at now.
func (l *AttemptLimiter) Allow(addr models.Address, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byAddr[addr]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byAddr[addr] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.calls++
	if l.calls%256 == 0 {
		l.evictIdleLocked(now)
	}
	return allowed
}

// Forget drops the bucket for addr, restoring its full burst. Called after
// a successful passphrase check so legitimate users are not penalized for
// earlier typos.
func (l *AttemptLimiter) Forget(addr models.Address) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byAddr, addr)
}

func (l *AttemptLimiter) evictIdleLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for addr, b := range l.byAddr {
		if b.lastSeen.Before(cutoff) {
			delete(l.byAddr, addr)
		}
	}
}
