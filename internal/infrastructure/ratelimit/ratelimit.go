package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerClient hands out one token-bucket limiter per client key (typically
// the remote IP) so a single noisy consumer cannot starve the rest.
type PerClient struct {
	mu       sync.Mutex
	limiters map[string]*entry
	perMin   float64
	burst    int
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const idleEviction = 10 * time.Minute

func NewPerClient(requestsPerMinute float64, burst int) *PerClient {
	return &PerClient{
		limiters: make(map[string]*entry),
		perMin:   requestsPerMinute,
		burst:    burst,
	}
}

// Allow reports whether the client identified by key may proceed now.
func (p *PerClient) Allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.limiters[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(p.perMin/60), p.burst)}
		p.limiters[key] = e
	}
	e.lastSeen = time.Now()
	p.evictIdleLocked()
	return e.lim.Allow()
}

func (p *PerClient) evictIdleLocked() {
	if len(p.limiters) < 1024 {
		return
	}
	cutoff := time.Now().Add(-idleEviction)
	for k, e := range p.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(p.limiters, k)
		}
	}
}
