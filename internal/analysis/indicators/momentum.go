package indicators

import (
	"fmt"

	"price-analyst/internal/models"
)

// NeutralRSI is reported when a window contains neither gains nor losses.
const NeutralRSI = 50.0

// RSI calculates the Relative Strength Index with Wilder smoothing.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

// Calculate returns null for the first period candles. The first reading is
// seeded with the simple average of the first period gains and losses.
func (r *RSI) Calculate(candles []models.Candle) Line {
	n := len(candles)
	result := newLine(n)
	if r.period <= 0 || n < r.period+1 {
		return result
	}

	closes := closePrices(candles)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := mean(gains[1 : r.period+1])
	avgLoss := mean(losses[1 : r.period+1])
	result[r.period] = Some(rsiValue(avgGain, avgLoss))

	p := float64(r.period)
	for i := r.period + 1; i < n; i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
		result[i] = Some(rsiValue(avgGain, avgLoss))
	}
	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return NeutralRSI
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return Round(100-(100/(1+rs)), RSIPlaces)
}
