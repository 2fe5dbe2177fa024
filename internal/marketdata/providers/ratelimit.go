package providers

import (
	"context"

	"golang.org/x/time/rate"

	apperrors "price-analyst/internal/errors"
)

// Free-tier request budgets, requests per minute.
const (
	TwelveDataRPM   = 8
	PolygonRPM      = 5
	FinnhubRPM      = 60
	AlphaVantageRPM = 5
	KiteRPM         = 180
	YahooRPM        = 60
)

// Limiter spaces requests to one provider.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a limiter allowing requestsPerMinute with a burst of a
// tenth of that, at least one.
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1), name: name}
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
		name:    name,
	}
}

// Wait blocks until a request may be sent or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return apperrors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow reports whether a request may be sent now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
