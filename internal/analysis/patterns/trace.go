package patterns

import (
	"price-analyst/internal/analysis"
	"price-analyst/internal/models"
)

// MaxTracePoints bounds the pattern overlay, anchors included.
const MaxTracePoints = 12

// Trace builds the chronological pattern overlay: the first candle, the
// alternating significant swing highs and lows, and the last candle. When
// there are too many swings the interior is thinned evenly across the series.
func Trace(candles []models.Candle) []analysis.TracePoint {
	n := len(candles)
	if n == 0 {
		return nil
	}
	anchor := func(i int) analysis.TracePoint {
		return analysis.TracePoint{
			Index:     i,
			Timestamp: candles[i].Timestamp,
			Price:     candles[i].Close,
			Kind:      "anchor",
		}
	}
	if n == 1 {
		return []analysis.TracePoint{anchor(0)}
	}

	var interior []analysis.TracePoint
	for _, s := range Alternate(FindSwings(candles, SwingWindow(n))) {
		kind := "low"
		if s.IsHigh {
			kind = "high"
		}
		interior = append(interior, analysis.TracePoint{
			Index:     s.Index,
			Timestamp: candles[s.Index].Timestamp,
			Price:     s.Price,
			Kind:      kind,
		})
	}

	slots := MaxTracePoints - 2
	if m := len(interior); m > slots {
		thinned := make([]analysis.TracePoint, 0, slots)
		for k := 0; k < slots; k++ {
			thinned = append(thinned, interior[(2*k+1)*m/(2*slots)])
		}
		interior = thinned
	}

	points := make([]analysis.TracePoint, 0, len(interior)+2)
	points = append(points, anchor(0))
	points = append(points, interior...)
	points = append(points, anchor(n-1))
	return points
}
