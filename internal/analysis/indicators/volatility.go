package indicators

import (
	"fmt"

	"price-analyst/internal/models"
)

// ATR calculates the Average True Range.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

func (a *ATR) Calculate(candles []models.Candle) Line {
	n := len(candles)
	result := newLine(n)
	if a.period <= 0 || n < a.period {
		return result
	}

	// The first candle has no previous close, so its TR is its own range.
	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	atr := mean(tr[:a.period])
	result[a.period-1] = Some(Round(atr, PricePlaces))

	p := float64(a.period)
	for i := a.period; i < n; i++ {
		atr = (atr*(p-1) + tr[i]) / p
		result[i] = Some(Round(atr, PricePlaces))
	}
	return result
}

// Bollinger output keys.
const (
	BollingerUpper     = "upper"
	BollingerMiddle    = "middle"
	BollingerLower     = "lower"
	BollingerBandwidth = "bandwidth"
	BollingerPercentB  = "percent_b"
)

// BollingerBands calculates Bollinger Bands around an SMA with a population
// standard deviation. Bandwidth is expressed as a percent of the middle band.
type BollingerBands struct {
	period    int
	stdDevMul float64
}

// NewBollingerBands creates a new Bollinger Bands indicator.
func NewBollingerBands(period int, stdDevMul float64) *BollingerBands {
	return &BollingerBands{
		period:    period,
		stdDevMul: stdDevMul,
	}
}

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("BollingerBands_%d_%.1f", b.period, b.stdDevMul)
}

func (b *BollingerBands) Period() int {
	return b.period
}

func (b *BollingerBands) Calculate(candles []models.Candle) map[string]Line {
	n := len(candles)
	middle := newLine(n)
	upper := newLine(n)
	lower := newLine(n)
	bandwidth := newLine(n)
	percentB := newLine(n)
	out := map[string]Line{
		BollingerMiddle:    middle,
		BollingerUpper:     upper,
		BollingerLower:     lower,
		BollingerBandwidth: bandwidth,
		BollingerPercentB:  percentB,
	}
	if b.period <= 0 || b.stdDevMul <= 0 || n < b.period {
		return out
	}

	closes := closePrices(candles)
	for i := b.period - 1; i < n; i++ {
		window := closes[i-b.period+1 : i+1]
		sma := mean(window)
		sd := stdDev(window)
		up := sma + b.stdDevMul*sd
		lo := sma - b.stdDevMul*sd

		middle[i] = Some(Round(sma, PricePlaces))
		upper[i] = Some(Round(up, PricePlaces))
		lower[i] = Some(Round(lo, PricePlaces))
		if sma != 0 {
			bandwidth[i] = Some(Round((up-lo)/sma*100, PricePlaces))
		}
		if up != lo {
			percentB[i] = Some(Round((closes[i]-lo)/(up-lo), PricePlaces))
		}
	}
	return out
}
