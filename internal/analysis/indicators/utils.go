package indicators

import (
	"math"

	"price-analyst/internal/models"
)

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// stdDev is the population standard deviation (divides by n, not n-1).
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// trueRange calculates the true range for a candle.
func trueRange(current, previous models.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return max(highLow, highClose, lowClose)
}

// closePrices extracts close prices from candles.
func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// highPrices extracts high prices from candles.
func highPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

// lowPrices extracts low prices from candles.
func lowPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}

// volumes extracts volumes from candles as floats.
func volumes(candles []models.Candle) []float64 {
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = float64(c.Volume)
	}
	return vols
}

// highest returns the highest value in a slice.
func highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	h := values[0]
	for _, v := range values[1:] {
		if v > h {
			h = v
		}
	}
	return h
}

// lowest returns the lowest value in a slice.
func lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	l := values[0]
	for _, v := range values[1:] {
		if v < l {
			l = v
		}
	}
	return l
}

// rollingMean returns the unrounded simple moving average of values, with
// ok[i] false before the window is full.
func rollingMean(values []float64, period int) (out []float64, ok []bool) {
	out = make([]float64, len(values))
	ok = make([]bool, len(values))
	if period <= 0 || len(values) < period {
		return out, ok
	}
	for i := period - 1; i < len(values); i++ {
		out[i] = mean(values[i-period+1 : i+1])
		ok[i] = true
	}
	return out, ok
}

// emaSeries returns the unrounded EMA of values seeded with the simple
// average of the first period values.
func emaSeries(values []float64, period int) (out []float64, ok []bool) {
	out = make([]float64, len(values))
	ok = make([]bool, len(values))
	if period <= 0 || len(values) < period {
		return out, ok
	}
	k := 2.0 / float64(period+1)
	out[period-1] = mean(values[:period])
	ok[period-1] = true
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
		ok[i] = true
	}
	return out, ok
}

// toLine rounds populated entries into a Line.
func toLine(values []float64, ok []bool, places int32) Line {
	line := newLine(len(values))
	for i := range values {
		if ok[i] {
			line[i] = Some(Round(values[i], places))
		}
	}
	return line
}
