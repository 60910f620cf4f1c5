package geocode

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"media-index/internal/metrics"
)

// Gate spaces outgoing requests at least interval apart across every caller
// in the process.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate creates a gate admitting one request per interval.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the caller may send a request or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	start := time.Now()
	err := g.limiter.Wait(ctx)
	metrics.GeocodeRateLimitWait.Observe(time.Since(start).Seconds())
	return err
}
