package retry

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// baselineRate is the request rate assumed before any traffic is observed
const baselineRate = 1000

// Budget limits retries to a percentage of the observed request rate.
// Retry tokens come from a token bucket whose rate and size are re-derived
// once per second from the number of tracked requests.
type Budget struct {
	limiter     *rate.Limiter
	percent     int          // Percentage of requests that may be retries
	requests    atomic.Int64 // Requests tracked since the last adjustment
	windowStart atomic.Int64 // Unix second of the last adjustment
	clock       func() time.Time
}

// NewBudget creates a new retry budget
// percent: percentage of requests that can be retries (1-100)
func NewBudget(percent int) *Budget {
	return newBudget(percent, time.Now)
}

func newBudget(percent int, clock func() time.Time) *Budget {
	if percent < 1 {
		percent = 1
	}
	if percent > 100 {
		percent = 100
	}

	tokens := baselineRate * percent / 100

	b := &Budget{
		limiter: rate.NewLimiter(rate.Limit(tokens), tokens),
		percent: percent,
		clock:   clock,
	}
	b.windowStart.Store(clock().Unix())
	return b
}

// TryConsume attempts to consume a token for retry
// Returns true if retry is allowed, false if budget exhausted
func (b *Budget) TryConsume() bool {
	now := b.clock()
	b.adapt(now)
	return b.limiter.AllowN(now, 1)
}

// TrackRequest counts a request toward the observed rate
func (b *Budget) TrackRequest() {
	b.requests.Add(1)
}

// GetAvailable returns the number of available tokens
func (b *Budget) GetAvailable() int64 {
	now := b.clock()
	b.adapt(now)
	return int64(b.limiter.TokensAt(now))
}

// adapt resizes the bucket to percent of the observed request rate
func (b *Budget) adapt(now time.Time) {
	sec := now.Unix()
	last := b.windowStart.Load()

	if sec <= last {
		return // Still inside the current window
	}
	if !b.windowStart.CompareAndSwap(last, sec) {
		return // Another goroutine is adjusting
	}

	observed := b.requests.Swap(0) / (sec - last)
	if observed == 0 {
		return // Keep the previous rate through idle periods
	}

	allowed := observed * int64(b.percent) / 100
	if allowed < 1 {
		allowed = 1
	}
	b.limiter.SetLimitAt(now, rate.Limit(allowed))
	b.limiter.SetBurstAt(now, int(allowed))
}
