package storage

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle paces mirror traffic to a byte budget per second. The burst
// is one second of budget. A nil throttle, or one built with a zero
// budget, passes everything through.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle allowing bytesPerSec of traffic.
// Non-positive budgets disable the limit.
func NewThrottle(bytesPerSec int64) *Throttle {
	if bytesPerSec <= 0 {
		return &Throttle{}
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)),
	}
}

// Wait blocks until n bytes of budget are available or ctx is done.
// Requests larger than the burst are drawn in burst-sized slices.
func (t *Throttle) Wait(ctx context.Context, n int64) error {
	if t == nil || t.limiter == nil || n <= 0 {
		return nil
	}
	burst := int64(t.limiter.Burst())
	for n > 0 {
		slice := n
		if slice > burst {
			slice = burst
		}
		if err := t.limiter.WaitN(ctx, int(slice)); err != nil {
			return err
		}
		n -= slice
	}
	return nil
}

// Limit returns the configured bytes per second, zero when unlimited.
func (t *Throttle) Limit() int64 {
	if t == nil || t.limiter == nil {
		return 0
	}
	return int64(t.limiter.Limit())
}
