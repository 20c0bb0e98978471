package scrape

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// RateLimiter enforces per-domain politeness delays. Each domain carries its
// own lock and last-grant timestamp, so workers hitting different domains
// proceed in parallel while workers on the same domain serialize.
type RateLimiter struct {
	mu       sync.Mutex
	domains  map[string]*domainState
	minDelay time.Duration
	maxDelay time.Duration
	clock    Clock
	pauser   Pauser
}

type domainState struct {
	mu        sync.Mutex
	lastGrant time.Time
	minDelay  time.Duration
	maxDelay  time.Duration
}

// NewRateLimiter creates a limiter with the given default delay window.
// Domains inherit the defaults unless Configure overrides them.
func NewRateLimiter(minDelay, maxDelay time.Duration) *RateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RateLimiter{
		domains:  make(map[string]*domainState),
		minDelay: minDelay,
		maxDelay: maxDelay,
		clock:    SystemClock{},
		pauser:   TimerPauser{},
	}
}

// Configure overrides the delay window for one domain. Zero values keep the
// limiter defaults.
func (l *RateLimiter) Configure(domain string, minDelay, maxDelay time.Duration) {
	st := l.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	if minDelay > 0 {
		st.minDelay = minDelay
	}
	if maxDelay > 0 && maxDelay >= st.minDelay {
		st.maxDelay = maxDelay
	} else if st.maxDelay < st.minDelay {
		st.maxDelay = st.minDelay
	}
}

// Acquire blocks until a request to domain is politeness-compliant, then
// records the grant. The domain lock is held across the wait so overlapping
// callers for the same domain serialize; the grant timestamp is taken at the
// moment of granting, not at call time.
func (l *RateLimiter) Acquire(ctx context.Context, domain string) error {
	st := l.state(domain)

	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.lastGrant.IsZero() {
		target := randomBetween(st.minDelay, st.maxDelay)
		elapsed := l.clock.Now().Sub(st.lastGrant)
		if wait := target - elapsed; wait > 0 {
			l.pauser.Pause(ctx, wait)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", domain, err)
	}
	st.lastGrant = l.clock.Now()
	return nil
}

// LastGrant reports the most recent grant time for domain, zero if none.
func (l *RateLimiter) LastGrant(domain string) time.Time {
	st := l.state(domain)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastGrant
}

func (l *RateLimiter) state(domain string) *domainState {
	key := strings.ToLower(strings.TrimSpace(domain))
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.domains[key]
	if !ok {
		st = &domainState{minDelay: l.minDelay, maxDelay: l.maxDelay}
		l.domains[key] = st
	}
	return st
}

// randomBetween samples a delay uniformly from [minDelay, maxDelay] so the
// request cadence never settles into a detectable fixed period.
func randomBetween(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	span := big.NewInt(int64(maxDelay - minDelay + 1))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return minDelay
	}
	return minDelay + time.Duration(n.Int64())
}
