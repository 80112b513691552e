package websocket

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 10 * time.Minute
)

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits gates new websocket connections by a process-wide cap, a
// per-IP cap and a per-IP token bucket. A zero value for any of the three
// disables that check.
type ConnectionLimits struct {
	globalMax int64
	global    atomic.Int64

	perIPMax int
	ipMu     sync.Mutex
	ips      map[string]int

	clock     clockwork.Clock
	rate      rate.Limit
	burst     int
	rateMu    sync.Mutex
	limiters  map[string]*rateLimiterEntry
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(globalMax int64, perIPMax int, connectionsPerSecond float64, burst int, clock clockwork.Clock) *ConnectionLimits {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConnectionLimits{
		globalMax: globalMax,
		perIPMax:  perIPMax,
		ips:       make(map[string]int),
		clock:     clock,
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		limiters:  make(map[string]*rateLimiterEntry),
		cleanupAt: clock.Now().Add(limiterCleanupInterval),
	}
}

// Acquire takes a slot for ip. On success the caller must Release it.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.allowRate(ip) {
		return false, LimitReasonRate
	}
	if !l.acquireGlobal() {
		return false, LimitReasonGlobal
	}
	if !l.acquireIP(ip) {
		l.global.Add(-1)
		return false, LimitReasonPerIP
	}
	return true, ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.ipMu.Lock()
	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
	l.ipMu.Unlock()
	l.global.Add(-1)
}

// Current returns the number of held slots.
func (l *ConnectionLimits) Current() int64 {
	return l.global.Load()
}

// Count returns the number of held slots for ip.
func (l *ConnectionLimits) Count(ip string) int {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()
	return l.ips[ip]
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.global.Load()
		if l.globalMax > 0 && current >= l.globalMax {
			return false
		}
		if l.global.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *ConnectionLimits) acquireIP(ip string) bool {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()
	if l.perIPMax > 0 && l.ips[ip] >= l.perIPMax {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ConnectionLimits) allowRate(ip string) bool {
	if l.rate <= 0 {
		return true
	}

	l.rateMu.Lock()
	defer l.rateMu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-limiterIdleTTL)
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.cleanupAt = now.Add(limiterCleanupInterval)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, max(l.burst, 1))}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *ConnectionLimits) activeLimiters() int {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()
	return len(l.limiters)
}

// clientIP returns the peer address of r without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
