package workers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter keeps one token bucket per client IP and drops idle buckets
// every 512 requests.
type ipLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu   sync.Mutex
	byIP map[string]*bucket
	hits uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter returns nil for a non-positive rate, which allows everything.
func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &ipLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byIP:    make(map[string]*bucket),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	if l == nil || ip == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byIP[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byIP {
			if v.lastSeen.Before(cutoff) {
				delete(l.byIP, k)
			}
		}
	}
	return allowed
}

// clientIP expects middleware.RealIP to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many write requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
