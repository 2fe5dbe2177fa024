package indicators

import (
	"fmt"

	"price-analyst/internal/models"
)

// SMA calculates Simple Moving Average of closes.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) Line {
	values, ok := rollingMean(closePrices(candles), s.period)
	return toLine(values, ok, PricePlaces)
}

// EMA calculates Exponential Moving Average of closes.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) Line {
	values, ok := emaSeries(closePrices(candles), e.period)
	return toLine(values, ok, PricePlaces)
}

// MACD output keys.
const (
	MACDLine      = "macd"
	MACDSignal    = "signal"
	MACDHistogram = "histogram"
)

// MACD calculates Moving Average Convergence Divergence.
//
// The signal line is an EMA of the MACD line whose seed is the simple average
// of the first signalPeriod MACD values. The histogram is computed from the
// rounded MACD and signal readings so that histogram = macd - signal holds
// exactly at display precision.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator, conventionally (12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) Period() int {
	return m.slowPeriod + m.signalPeriod - 1
}

func (m *MACD) Calculate(candles []models.Candle) map[string]Line {
	n := len(candles)
	macdLine := newLine(n)
	signalLine := newLine(n)
	histogram := newLine(n)
	out := map[string]Line{
		MACDLine:      macdLine,
		MACDSignal:    signalLine,
		MACDHistogram: histogram,
	}
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.signalPeriod <= 0 || n < m.slowPeriod {
		return out
	}

	closes := closePrices(candles)
	fast, fastOK := emaSeries(closes, m.fastPeriod)
	slow, slowOK := emaSeries(closes, m.slowPeriod)

	start := -1
	raw := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !fastOK[i] || !slowOK[i] {
			continue
		}
		if start < 0 {
			start = i
		}
		diff := fast[i] - slow[i]
		raw = append(raw, diff)
		macdLine[i] = Some(Round(diff, MACDPlaces))
	}
	if start < 0 {
		return out
	}

	signal, signalOK := emaSeries(raw, m.signalPeriod)
	for j := range raw {
		if !signalOK[j] {
			continue
		}
		i := start + j
		s := Round(signal[j], MACDPlaces)
		signalLine[i] = Some(s)
		histogram[i] = Some(Round(macdLine[i].V-s, MACDPlaces))
	}
	return out
}

// DonchianChannels tracks the rolling highest high and lowest low.
type DonchianChannels struct {
	period int
}

// NewDonchianChannels creates a new Donchian Channels indicator.
func NewDonchianChannels(period int) *DonchianChannels {
	return &DonchianChannels{period: period}
}

func (d *DonchianChannels) Name() string {
	return fmt.Sprintf("DonchianChannels_%d", d.period)
}

func (d *DonchianChannels) Period() int {
	return d.period
}

// Donchian output keys.
const (
	DonchianUpper = "upper"
	DonchianLower = "lower"
)

func (d *DonchianChannels) Calculate(candles []models.Candle) map[string]Line {
	n := len(candles)
	upper := newLine(n)
	lower := newLine(n)
	if d.period > 0 && n >= d.period {
		highs := highPrices(candles)
		lows := lowPrices(candles)
		for i := d.period - 1; i < n; i++ {
			upper[i] = Some(Round(highest(highs[i-d.period+1:i+1]), PricePlaces))
			lower[i] = Some(Round(lowest(lows[i-d.period+1:i+1]), PricePlaces))
		}
	}
	return map[string]Line{
		DonchianUpper: upper,
		DonchianLower: lower,
	}
}
