// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"certforge/internal/metrics"
)

// RateLimiter throttles requests per client address and path using a
// sliding window. Register and login therefore keep separate budgets.
type RateLimiter struct {
	limit   int
	window  time.Duration
	metrics *metrics.Metrics
	proxies TrustedProxies
	now     func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows limit requests per window for each client and path.
// Clients are identified through proxies. Rejections are counted on m, which
// may be nil. A background sweeper drops idle clients until Stop is called.
func NewRateLimiter(limit int, window time.Duration, proxies TrustedProxies, m *metrics.Metrics) *RateLimiter {
	rl := &RateLimiter{
		limit:   max(limit, 1),
		window:  window,
		metrics: m,
		proxies: proxies,
		now:     time.Now,
		hits:    make(map[string][]time.Time),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop(max(window, time.Minute))
	return rl
}

// Stop terminates the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// take records a hit for key. When the budget is spent it reports false and
// how long until the oldest hit leaves the window.
func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := live(rl.hits[key], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		return false, recent[0].Add(rl.window).Sub(now)
	}
	rl.hits[key] = append(recent, now)
	return true, 0
}

// sweep forgets clients whose hits have all expired.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, ts := range rl.hits {
		if recent := live(ts, cutoff); len(recent) == 0 {
			delete(rl.hits, key)
		} else {
			rl.hits[key] = recent
		}
	}
}

// live drops the leading timestamps at or before cutoff. ts is ascending.
func live(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// Middleware rejects over-budget requests with 429 and a Retry-After header
// in whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.take(rl.proxies.ClientIP(r) + " " + r.URL.Path)
		if !ok {
			secs := int((wait + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			rl.metrics.RateLimited(r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
