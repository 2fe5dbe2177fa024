// Package patterns provides swing-point detection, support/resistance
// clustering, chart structure classification and divergence checks.
package patterns

import (
	"price-analyst/internal/models"
)

// SwingPoint represents a swing high or low point.
type SwingPoint struct {
	Index  int
	Price  float64
	Volume int64
	IsHigh bool
}

// SwingWindow is the number of bars on each side that must be strictly
// exceeded for a candle to count as a swing point.
func SwingWindow(n int) int {
	return max(2, n/20)
}

// FindSwings returns swing highs and lows in chronological order using the
// given window. At an index that is both a swing high and a swing low, the
// high comes first.
func FindSwings(candles []models.Candle, window int) []SwingPoint {
	var swings []SwingPoint
	n := len(candles)
	if window < 1 {
		window = 1
	}

	for i := window; i < n-window; i++ {
		isSwingHigh := true
		for j := 1; j <= window; j++ {
			if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
				isSwingHigh = false
				break
			}
		}
		if isSwingHigh {
			swings = append(swings, SwingPoint{
				Index:  i,
				Price:  candles[i].High,
				Volume: candles[i].Volume,
				IsHigh: true,
			})
		}

		isSwingLow := true
		for j := 1; j <= window; j++ {
			if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
				isSwingLow = false
				break
			}
		}
		if isSwingLow {
			swings = append(swings, SwingPoint{
				Index:  i,
				Price:  candles[i].Low,
				Volume: candles[i].Volume,
				IsHigh: false,
			})
		}
	}

	return swings
}

// SwingHighs filters swing highs.
func SwingHighs(swings []SwingPoint) []SwingPoint {
	var highs []SwingPoint
	for _, s := range swings {
		if s.IsHigh {
			highs = append(highs, s)
		}
	}
	return highs
}

// SwingLows filters swing lows.
func SwingLows(swings []SwingPoint) []SwingPoint {
	var lows []SwingPoint
	for _, s := range swings {
		if !s.IsHigh {
			lows = append(lows, s)
		}
	}
	return lows
}

// Alternate collapses consecutive swings of the same kind, keeping the more
// extreme one (higher high, lower low), so highs and lows strictly alternate.
func Alternate(swings []SwingPoint) []SwingPoint {
	out := make([]SwingPoint, 0, len(swings))
	for _, s := range swings {
		if len(out) == 0 {
			out = append(out, s)
			continue
		}
		last := &out[len(out)-1]
		if last.IsHigh != s.IsHigh {
			out = append(out, s)
			continue
		}
		if (s.IsHigh && s.Price > last.Price) || (!s.IsHigh && s.Price < last.Price) {
			*last = s
		}
	}
	return out
}

// seriesBounds returns the literal lowest low and highest high.
func seriesBounds(candles []models.Candle) (low, high float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	low, high = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		low = min(low, c.Low)
		high = max(high, c.High)
	}
	return low, high
}
