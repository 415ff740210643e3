// Package middleware provides HTTP middleware for the relay.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// defaultMaxClients caps the number of tracked client IPs.
const defaultMaxClients = 10000

// Throttle is per-IP token bucket rate limiting for bridge connection
// attempts. Each attempt may cost a bcrypt comparison, so clients that
// retry in a tight loop are turned away before the upgrade.
type Throttle struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       float64 // tokens per second
	burst      int
	maxClients int
	now        func() time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewThrottle creates a throttle with the given sustained rate (attempts per
// second) and burst size.
func NewThrottle(rate float64, burst int) *Throttle {
	return &Throttle{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		burst:      burst,
		maxClients: defaultMaxClients,
		now:        time.Now,
	}
}

// Handler returns middleware that answers 429 once a client's bucket is empty.
func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		retryAfter, ok := t.allow(ip)
		if !ok {
			slog.Warn("bridge connection throttled", "ip", ip)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many connection attempts"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow takes a token for ip. When none is left it returns the wait until
// the next one.
func (t *Throttle) allow(ip string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b, ok := t.buckets[ip]
	if !ok {
		if len(t.buckets) >= t.maxClients {
			return t.interval(1), false
		}
		b = &bucket{tokens: float64(t.burst), lastSeen: now}
		t.buckets[ip] = b
	}

	b.tokens = math.Min(float64(t.burst), b.tokens+now.Sub(b.lastSeen).Seconds()*t.rate)
	b.lastSeen = now

	if b.tokens < 1 {
		return t.interval(1 - b.tokens), false
	}
	b.tokens--
	return 0, true
}

func (t *Throttle) interval(tokens float64) time.Duration {
	return time.Duration(tokens / t.rate * float64(time.Second))
}

// Prune removes clients idle for longer than maxIdle every interval until
// ctx is done.
func (t *Throttle) Prune(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.prune(maxIdle)
		}
	}
}

func (t *Throttle) prune(maxIdle time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-maxIdle)
	for ip, b := range t.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(t.buckets, ip)
		}
	}
}

// Len returns the number of tracked clients.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// clientIP extracts the client IP from RemoteAddr. Proxy headers are not
// trusted here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
