// Package ratelimit is an in-memory, per-client token bucket with a
// concurrency cap. It is single-process only.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	MaxConcurrentRequests int

	// Operational bounds for the in-memory map.
	MaxEntries int
	EntryTTL   time.Duration
}

// Enabled reports whether any limit is configured.
func (c Config) Enabled() bool {
	return (c.RPS > 0 && c.Burst > 0) || c.MaxConcurrentRequests > 0
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientLimiter
}

type clientLimiter struct {
	mu       sync.Mutex
	tokens   float64
	last     time.Time
	sem      chan struct{}
	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{cfg: cfg, m: make(map[string]*clientLimiter)}
}

// Permit must be released when the request finishes.
type Permit struct {
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

type Decision struct {
	Allowed    bool
	RetryAfter int
	Permit     *Permit
}

func (l *Limiter) Acquire(key string, now time.Time) Decision {
	if key == "" {
		key = "anonymous"
	}
	cl := l.getOrCreate(key, now)

	if l.cfg.RPS > 0 && l.cfg.Burst > 0 {
		if ok, retryAfter := cl.take(now, l.cfg.RPS, float64(l.cfg.Burst)); !ok {
			return Decision{RetryAfter: retryAfter}
		}
	}
	if l.cfg.MaxConcurrentRequests > 0 {
		select {
		case cl.sem <- struct{}{}:
			return Decision{Allowed: true, Permit: &Permit{release: func() { <-cl.sem }}}
		default:
			return Decision{RetryAfter: 1}
		}
	}
	return Decision{Allowed: true, Permit: &Permit{}}
}

func (l *Limiter) getOrCreate(key string, now time.Time) *clientLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cl, ok := l.m[key]; ok {
		cl.lastSeen = now
		return cl
	}
	if len(l.m) >= l.cfg.MaxEntries {
		for k, v := range l.m {
			if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
				delete(l.m, k)
			}
		}
		// Still full: evict an arbitrary entry.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}
	cl := &clientLimiter{
		tokens:   float64(l.cfg.Burst),
		last:     now,
		sem:      make(chan struct{}, max(1, l.cfg.MaxConcurrentRequests)),
		lastSeen: now,
	}
	l.m[key] = cl
	return cl
}

func (cl *clientLimiter) take(now time.Time, rps, capacity float64) (bool, int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if elapsed := now.Sub(cl.last).Seconds(); elapsed > 0 {
		cl.tokens = math.Min(capacity, cl.tokens+elapsed*rps)
		cl.last = now
	}
	if cl.tokens >= 1 {
		cl.tokens--
		return true, 0
	}
	retryAfter := int(math.Ceil((1 - cl.tokens) / rps))
	return false, max(1, retryAfter)
}

// ClientKey identifies the caller by IP, hashed so raw addresses never sit
// in the map. Proxy headers are honored only when trustProxy is set.
func ClientKey(r *http.Request, trustProxy bool) string {
	ip := ClientIP(r, trustProxy)
	if ip == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(ip))
	return "ip_" + hex.EncodeToString(sum[:16])
}

func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range []string{"CF-Connecting-IP", "X-Real-IP"} {
			if ip := parseIP(r.Header.Get(h)); ip != "" {
				return ip
			}
		}
		// Left-most X-Forwarded-For entry is the client.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := parseIP(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
	}
	return parseIP(r.RemoteAddr)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
