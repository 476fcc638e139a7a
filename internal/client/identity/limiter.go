package identity

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// attemptLimiter counts failed credential checks per key. Each failure spends
// a token; with no tokens left every attempt is refused until one refills.
type attemptLimiter struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	byKey map[string]*rate.Limiter
	nowFn func() time.Time
}

func newAttemptLimiter(maxFailures int, refill time.Duration, now func() time.Time) *attemptLimiter {
	if maxFailures < 1 {
		maxFailures = 5
	}
	if refill <= 0 {
		refill = time.Minute
	}
	return &attemptLimiter{
		every: rate.Every(refill),
		burst: maxFailures,
		byKey: make(map[string]*rate.Limiter),
		nowFn: now,
	}
}

func (l *attemptLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.byKey[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.byKey[key] = lim
	}
	return lim
}

// check returns a *RateLimitError when key has no attempts left.
func (l *attemptLimiter) check(key string) error {
	lim := l.get(key)
	now := l.nowFn()
	if lim.TokensAt(now) >= 1 {
		return nil
	}
	r := lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return &RateLimitError{RetryAfter: delay}
}

func (l *attemptLimiter) fail(key string) {
	l.get(key).AllowN(l.nowFn(), 1)
}

func (l *attemptLimiter) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byKey, key)
}
