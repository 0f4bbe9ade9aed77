package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outbound calls to one provider.
type Limiter struct {
	l *rate.Limiter
}

// NewRPS allows up to rps operations per second with no burst. rps <= 0
// returns nil, which never blocks.
func NewRPS(rps float64) *Limiter {
	if rps <= 0 {
		return nil
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.l == nil {
		return nil
	}
	return l.l.Wait(ctx)
}
