package patterns

import (
	"price-analyst/internal/models"
)

// smallBodyRatio is the largest body/range ratio that still counts as a
// small-bodied candle.
const smallBodyRatio = 0.3

// upperShadow returns the upper shadow length.
func upperShadow(c models.Candle) float64 {
	return c.High - max(c.Open, c.Close)
}

// lowerShadow returns the lower shadow length.
func lowerShadow(c models.Candle) float64 {
	return min(c.Open, c.Close) - c.Low
}

// IsSmallBody reports whether the body is small relative to the range.
// A zero-range candle is a doji and counts as small.
func IsSmallBody(c models.Candle) bool {
	r := c.Range()
	if r <= 0 {
		return true
	}
	return c.Body()/r <= smallBodyRatio
}

// ReversalCandle classifies a small-bodied candle by its dominant shadow.
// A long lower shadow rejects lower prices (bullish), a long upper shadow
// rejects higher prices (bearish). ok is false for candles that are not
// small-bodied.
func ReversalCandle(c models.Candle) (bullish, ok bool) {
	if !IsSmallBody(c) {
		return false, false
	}
	return lowerShadow(c) >= upperShadow(c), true
}
