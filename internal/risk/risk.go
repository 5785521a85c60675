// Package risk gates how much size a single trigger may put on and how fast orders may leave.
package risk

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limits caps the sell multiplier a single trigger may carry.
type Limits struct {
	SellMultiplierThreshold int
}

// Allow accepts multipliers up to and including the threshold.
func (l Limits) Allow(multiplier int) bool {
	return multiplier <= l.SellMultiplierThreshold
}

// Throttle bounds order submissions per second across a strategy instance.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows perSecond orders with a burst of one; perSecond <= 0 disables throttling.
func NewThrottle(perSecond float64) *Throttle {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until an order may be sent or ctx ends.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("order throttle: %w", err)
	}
	return nil
}

// Interval reports the spacing enforced between orders (zero when unlimited).
func (t *Throttle) Interval() time.Duration {
	if t == nil || t.limiter.Limit() == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(t.limiter.Limit()))
}
