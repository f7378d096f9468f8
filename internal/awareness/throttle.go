package awareness

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultCursorThrottle and DefaultSelectionThrottle are the recommended,
// non-enforced throttle windows from spec.md §4.5/§6.
const (
	DefaultCursorThrottle    = 100 * time.Millisecond
	DefaultSelectionThrottle = 50 * time.Millisecond
)

// Throttle is a caller-side rate limiter for awareness updates. It is not
// a core invariant (spec.md §4.5 calls it "recommended, caller-side");
// callers that skip it simply send more awareness messages than needed.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle builds a Throttle allowing one update per interval, with a
// burst of 1 (immediate first update, then rate-limited).
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Allow reports whether the caller should send an update now.
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}
