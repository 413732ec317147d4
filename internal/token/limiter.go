package token

import (
	"sync"
	"time"
)

// RateLimiter is an in-memory sliding-window limiter keyed by client
// identity. A call is admitted when fewer than maxCalls timestamps fall
// inside the trailing window; admitted calls append their own timestamp, so
// a bucket never holds more than maxCalls entries.
type RateLimiter struct {
	maxCalls int
	window   time.Duration

	mu      sync.Mutex
	buckets map[string][]time.Time

	now func() time.Time
}

func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		buckets:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.buckets[key]
	for len(bucket) > 0 && bucket[0].Before(cutoff) {
		bucket = bucket[1:]
	}

	if len(bucket) >= l.maxCalls {
		l.buckets[key] = bucket
		return false
	}

	l.buckets[key] = append(bucket, now)
	return true
}
