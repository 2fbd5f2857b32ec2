package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist []string // IPs or CIDRs exempt from rate limiting
}

// RateLimiter implements fixed window rate limiting per client IP. Counters
// live in memory; the daemon serves a single installation.
type RateLimiter struct {
	limits map[string]RateLimit
	logger zerolog.Logger
	exempt ipSet
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	end   time.Time
	count int
}

// pruneAt is the counter count above which expired windows are swept.
const pruneAt = 512

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	logger = logger.With().Str("component", "ratelimit").Logger()
	rl := &RateLimiter{
		logger:  logger,
		exempt:  parseIPSet(cfg.Whitelist, logger),
		now:     time.Now,
		windows: make(map[string]*window),
		limits: map[string]RateLimit{
			"POST /messages":       {30, time.Minute},
			"POST /voice/listen":   {10, time.Minute},
			"PUT /connectivity":    {60, time.Minute},
			"PUT /preferences":     {30, time.Minute},
			"DELETE /conversation": {10, time.Minute},
		},
	}
	if n := rl.exempt.size(); n > 0 {
		logger.Info().Int("entries", n).Msg("rate limit whitelist configured")
	}
	return rl
}

// ipSet matches single addresses and CIDR ranges.
type ipSet struct {
	addrs map[string]bool
	nets  []*net.IPNet
}

func parseIPSet(entries []string, logger zerolog.Logger) ipSet {
	set := ipSet{addrs: make(map[string]bool)}
	for _, entry := range entries {
		if !strings.Contains(entry, "/") {
			set.addrs[entry] = true
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
			continue
		}
		set.nets = append(set.nets, ipNet)
	}
	return set
}

func (s ipSet) size() int { return len(s.addrs) + len(s.nets) }

func (s ipSet) contains(addr string) bool {
	if s.addrs[addr] {
		return true
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range s.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// CheckAndIncrement checks rate limit and increments counter.
// Returns (allowed, remaining, resetAt).
func (rl *RateLimiter) CheckAndIncrement(key string, limit int, d time.Duration) (bool, int, time.Time) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.end) {
		if len(rl.windows) >= pruneAt {
			rl.prune(now)
		}
		w = &window{end: now.Add(d)}
		rl.windows[key] = w
	}
	w.count++

	return w.count <= limit, max(limit-w.count, 0), w.end
}

// prune drops expired windows. Callers hold rl.mu.
func (rl *RateLimiter) prune(now time.Time) {
	for k, w := range rl.windows {
		if !now.Before(w.end) {
			delete(rl.windows, k)
		}
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		if rl.exempt.contains(ip) {
			next.ServeHTTP(w, r)
			return
		}

		pattern, limit, ok := rl.findLimit(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := pattern + "|" + ip
		allowed, remaining, resetAt := rl.CheckAndIncrement(key, limit.Requests, limit.Window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retry := max(int(resetAt.Sub(rl.now()).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit finds the matching rate limit for a request.
func (rl *RateLimiter) findLimit(r *http.Request) (string, RateLimit, bool) {
	key := r.Method + " " + r.URL.Path
	limit, ok := rl.limits[key]
	return key, limit, ok
}
