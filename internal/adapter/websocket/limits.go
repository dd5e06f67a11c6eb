package websocket

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterSweepEvery   = 5 * time.Minute
	handshakeBurstRatio = 2
)

// globalLimiter caps concurrent connections for the whole instance.
type globalLimiter struct {
	current atomic.Int64
	max     int64
}

func (l *globalLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalLimiter) release() { l.current.Add(-1) }

// ipLimiter caps concurrent connections per remote address.
type ipLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func (l *ipLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
}

func (l *ipLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// handshakeRateLimiter is a token bucket per remote address. Idle buckets are
// swept lazily.
type handshakeRateLimiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[string]*rateEntry
	rate    rate.Limit
	burst   int
	sweepAt time.Time
}

func (l *handshakeRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.sweepAt) {
		cutoff := now.Add(-limiterIdleTTL)
		for key, entry := range l.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(l.entries, key)
			}
		}
		l.sweepAt = now.Add(limiterSweepEvery)
	}

	entry, ok := l.entries[ip]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// LimitReason describes why a handshake was refused.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// Status is the HTTP status a refused handshake is answered with.
func (r LimitReason) Status() int {
	if r == LimitReasonGlobal {
		return http.StatusServiceUnavailable
	}
	return http.StatusTooManyRequests
}

// ConnectionLimits combines the instance cap, the per-IP cap and the per-IP
// handshake rate.
type ConnectionLimits struct {
	global *globalLimiter
	perIP  *ipLimiter
	rate   *handshakeRateLimiter
}

// NewConnectionLimits allows handshakesPerSecond per IP with a burst of twice
// that rate.
func NewConnectionLimits(globalMax, perIPMax int, handshakesPerSecond float64, clock clockwork.Clock) *ConnectionLimits {
	burst := int(handshakesPerSecond * handshakeBurstRatio)
	if burst < 1 {
		burst = 1
	}
	return &ConnectionLimits{
		global: &globalLimiter{max: int64(globalMax)},
		perIP:  &ipLimiter{ips: make(map[string]int), maxPer: perIPMax},
		rate: &handshakeRateLimiter{
			clock:   clock,
			entries: make(map[string]*rateEntry),
			rate:    rate.Limit(handshakesPerSecond),
			burst:   burst,
			sweepAt: clock.Now().Add(limiterSweepEvery),
		},
	}
}

// Acquire takes a slot for ip. On success the caller must Release it.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.rate.allow(ip) {
		return false, LimitReasonRate
	}
	if !l.global.acquire() {
		return false, LimitReasonGlobal
	}
	if !l.perIP.acquire(ip) {
		l.global.release()
		return false, LimitReasonPerIP
	}
	return true, ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.perIP.release(ip)
	l.global.release()
}

// Active returns the number of connections holding a slot.
func (l *ConnectionLimits) Active() int64 { return l.global.current.Load() }

// ActiveFor returns the number of connections holding a slot for ip.
func (l *ConnectionLimits) ActiveFor(ip string) int { return l.perIP.count(ip) }
