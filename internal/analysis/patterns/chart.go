package patterns

import (
	"price-analyst/internal/analysis"
	"price-analyst/internal/models"
)

// driftThreshold is the minimum net move, as a fraction of the first close,
// for a swingless series to count as trending.
const driftThreshold = 0.02

// Structure describes the swing structure of a series.
type Structure struct {
	Pattern     string
	HigherHighs bool
	HigherLows  bool
	Swings      int
	NetDriftPct float64
	FromSwings  bool
}

// ChartPatternDetector classifies the dominant chart structure.
type ChartPatternDetector struct {
	window int // 0 means SwingWindow(len(candles))
}

// NewChartPatternDetector creates a new chart pattern detector.
func NewChartPatternDetector() *ChartPatternDetector {
	return &ChartPatternDetector{}
}

func (d *ChartPatternDetector) Name() string {
	return "ChartPatternDetector"
}

// Classify labels the series from its last two swing highs and lows:
//
//	higher highs + higher lows  -> Ascending Channel
//	lower highs  + lower lows   -> Descending Channel
//	lower highs  + higher lows  -> Symmetrical Triangle
//	higher highs + lower lows   -> Expanding Wedge
//
// anything else is Consolidation. With fewer than two swings of each kind the
// label comes from net drift confirmed by the indicator vote: Momentum
// Breakout, Momentum Breakdown or Consolidation.
func (d *ChartPatternDetector) Classify(candles []models.Candle, vote analysis.Signal) Structure {
	n := len(candles)
	st := Structure{Pattern: analysis.PatternConsolidation}
	if n < 2 {
		return st
	}
	window := d.window
	if window <= 0 {
		window = SwingWindow(n)
	}

	swings := FindSwings(candles, window)
	st.Swings = len(swings)
	if first := candles[0].Close; first > 0 {
		st.NetDriftPct = (candles[n-1].Close - first) / first * 100
	}

	highs, lows := SwingHighs(swings), SwingLows(swings)
	if len(highs) >= 2 && len(lows) >= 2 {
		st.FromSwings = true
		h1, h2 := highs[len(highs)-2].Price, highs[len(highs)-1].Price
		l1, l2 := lows[len(lows)-2].Price, lows[len(lows)-1].Price
		st.HigherHighs = h2 > h1
		st.HigherLows = l2 > l1
		lowerHighs := h2 < h1
		lowerLows := l2 < l1

		switch {
		case st.HigherHighs && st.HigherLows:
			st.Pattern = analysis.PatternAscendingChannel
		case lowerHighs && lowerLows:
			st.Pattern = analysis.PatternDescendingChannel
		case lowerHighs && st.HigherLows:
			st.Pattern = analysis.PatternSymmetricalTriangle
		case st.HigherHighs && lowerLows:
			st.Pattern = analysis.PatternExpandingWedge
		}
		return st
	}

	switch {
	case st.NetDriftPct >= driftThreshold*100 && vote == analysis.SignalBullish:
		st.Pattern = analysis.PatternMomentumBreakout
	case st.NetDriftPct <= -driftThreshold*100 && vote == analysis.SignalBearish:
		st.Pattern = analysis.PatternMomentumBreakdown
	}
	return st
}
