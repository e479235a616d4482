package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// bucket tracks one caller's request count inside the current window.
type bucket struct {
	count int
	until time.Time
}

// RateLimit caps requests per caller per window. Authenticated callers are
// keyed by user id so one noisy account cannot exhaust the budget of every
// client behind a shared egress IP; anonymous callers fall back to the
// client address. Over-limit requests get the API's structured 429 with a
// Retry-After hint.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	var mu sync.Mutex
	buckets := make(map[string]*bucket)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiterKey(r)
			mu.Lock()
			b, ok := buckets[key]
			now := time.Now()
			if !ok || now.After(b.until) {
				b = &bucket{until: now.Add(per)}
				buckets[key] = b
			}
			if b.count >= limit {
				until := b.until
				mu.Unlock()
				writeRateLimited(w, now, until)
				return
			}
			b.count++
			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

// limiterKey prefers the authenticated user over the network address. The
// prefixes keep a user id from ever colliding with an IP string.
func limiterKey(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientAddr(r)
}

func writeRateLimited(w http.ResponseWriter, now, until time.Time) {
	retryAfter := int(until.Sub(now).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":      "rate_limited",
		"message":   "too many requests",
		"retryable": true,
	})
}

// clientAddr resolves the caller's address, trusting the first valid
// X-Forwarded-For entry before falling back to the socket peer.
func clientAddr(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
