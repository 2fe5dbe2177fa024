package patterns

import (
	"math"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/indicators"
	"price-analyst/internal/models"
)

// Divergence is a disagreement between price and RSI across the two most
// recent swing points of one kind.
type Divergence struct {
	Direction  analysis.Direction
	StartIndex int
	EndIndex   int
	PriceStart float64
	PriceEnd   float64
	RSIStart   float64
	RSIEnd     float64
}

// Gap is the absolute RSI difference between the two swing points.
func (d *Divergence) Gap() float64 {
	return math.Abs(d.RSIEnd - d.RSIStart)
}

// DivergenceDetector detects price/RSI divergences.
type DivergenceDetector struct {
	swingStrength     int // bars on each side for swing confirmation
	minDivergenceBars int // minimum bars between the two swing points
	maxDivergenceBars int // maximum bars between the two swing points
	maxAge            int // the later swing must be at most this many bars old
}

// NewDivergenceDetector creates a new divergence detector.
func NewDivergenceDetector() *DivergenceDetector {
	return &DivergenceDetector{
		swingStrength:     3,
		minDivergenceBars: 5,
		maxDivergenceBars: 50,
		maxAge:            20,
	}
}

func (d *DivergenceDetector) Name() string {
	return "DivergenceDetector"
}

// Detect returns the most recent regular divergence, or nil. Bullish: price
// prints a lower low while RSI prints a higher low. Bearish: price prints a
// higher high while RSI prints a lower high.
func (d *DivergenceDetector) Detect(candles []models.Candle, rsi indicators.Line) *Divergence {
	n := len(candles)
	if n != len(rsi) || n < 2*d.swingStrength+d.minDivergenceBars {
		return nil
	}
	swings := FindSwings(candles, d.swingStrength)

	bull := d.check(SwingLows(swings), rsi, n, analysis.Bullish)
	bear := d.check(SwingHighs(swings), rsi, n, analysis.Bearish)
	switch {
	case bull == nil:
		return bear
	case bear == nil:
		return bull
	case bear.EndIndex > bull.EndIndex:
		return bear
	default:
		return bull
	}
}

func (d *DivergenceDetector) check(points []SwingPoint, rsi indicators.Line, n int, dir analysis.Direction) *Divergence {
	if len(points) < 2 {
		return nil
	}
	p1, p2 := points[len(points)-2], points[len(points)-1]
	span := p2.Index - p1.Index
	if span < d.minDivergenceBars || span > d.maxDivergenceBars || n-1-p2.Index > d.maxAge {
		return nil
	}
	r1, ok1 := rsi.At(p1.Index)
	r2, ok2 := rsi.At(p2.Index)
	if !ok1 || !ok2 {
		return nil
	}

	var diverges bool
	if dir == analysis.Bullish {
		diverges = p2.Price < p1.Price && r2 > r1
	} else {
		diverges = p2.Price > p1.Price && r2 < r1
	}
	if !diverges {
		return nil
	}
	return &Divergence{
		Direction:  dir,
		StartIndex: p1.Index,
		EndIndex:   p2.Index,
		PriceStart: p1.Price,
		PriceEnd:   p2.Price,
		RSIStart:   r1,
		RSIEnd:     r2,
	}
}
