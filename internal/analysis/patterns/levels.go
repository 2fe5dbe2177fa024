package patterns

import (
	"math"
	"sort"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/indicators"
	"price-analyst/internal/models"
)

// Clustering constants.
const (
	clusterTolerancePct = 0.015 // of the full high-low range
	maxLevelsPerSide    = 3
	fallbackStrength    = 10.0
)

// LevelAnalyzer clusters swing points into support and resistance levels.
type LevelAnalyzer struct {
	window int // 0 means SwingWindow(len(candles))
}

// NewLevelAnalyzer creates a new support/resistance level analyzer.
func NewLevelAnalyzer() *LevelAnalyzer {
	return &LevelAnalyzer{}
}

func (l *LevelAnalyzer) Name() string {
	return "LevelAnalyzer"
}

// LevelAnalysisResult contains every cluster and the selected levels on
// each side of the current price.
type LevelAnalysisResult struct {
	Clusters    []analysis.Level
	Supports    []analysis.Level
	Resistances []analysis.Level
	Price       float64
}

type cluster struct {
	price      float64
	touches    int
	volume     float64
	recencySum float64
	highs      int
	lows       int
}

// Cluster merges the series' swing points into levels. Pivots are visited in
// chronological order; each joins the nearest existing cluster whose running
// average lies within tolerance (ties go to the older cluster) or starts a
// new one. The result is in cluster creation order.
func (l *LevelAnalyzer) Cluster(candles []models.Candle) []analysis.Level {
	n := len(candles)
	if n < 3 {
		return nil
	}
	window := l.window
	if window <= 0 {
		window = SwingWindow(n)
	}

	low, high := seriesBounds(candles)
	tolerance := clusterTolerancePct * (high - low)

	var clusters []*cluster
	for _, p := range FindSwings(candles, window) {
		recency := float64(p.Index) / float64(n-1)

		best := -1
		bestDist := math.Inf(1)
		for i, c := range clusters {
			d := math.Abs(p.Price - c.price)
			if d <= tolerance && d < bestDist {
				best, bestDist = i, d
			}
		}

		if best < 0 {
			c := &cluster{price: p.Price, touches: 1, volume: float64(p.Volume), recencySum: recency}
			if p.IsHigh {
				c.highs = 1
			} else {
				c.lows = 1
			}
			clusters = append(clusters, c)
			continue
		}

		c := clusters[best]
		c.touches++
		c.price += (p.Price - c.price) / float64(c.touches)
		c.volume += float64(p.Volume)
		c.recencySum += recency
		if p.IsHigh {
			c.highs++
		} else {
			c.lows++
		}
	}

	maxVolume := 0.0
	for _, c := range clusters {
		maxVolume = max(maxVolume, c.volume)
	}

	levels := make([]analysis.Level, 0, len(clusters))
	for _, c := range clusters {
		recency := c.recencySum / float64(c.touches)
		strength := math.Min(float64(c.touches)*25, 50) + recency*25
		if maxVolume > 0 {
			strength += c.volume / maxVolume * 25
		}
		levels = append(levels, analysis.Level{
			Price:    indicators.Round(c.price, indicators.PricePlaces),
			Type:     clusterType(c),
			Touches:  c.touches,
			Volume:   c.volume,
			Recency:  indicators.Round(recency, 3),
			Strength: indicators.Round(strength, 1),
		})
	}
	return levels
}

func clusterType(c *cluster) analysis.LevelType {
	switch {
	case c.highs > 0 && c.lows > 0:
		return analysis.LevelBoth
	case c.highs > 0:
		return analysis.LevelResistance
	default:
		return analysis.LevelSupport
	}
}

// Analyze clusters the series and selects up to three supports below and
// three resistances above the latest close. Supports are ordered nearest
// first (price descending), resistances nearest first (price ascending).
// A side with no cluster falls back to the series' literal low or high,
// flagged as Fallback.
func (l *LevelAnalyzer) Analyze(candles []models.Candle) *LevelAnalysisResult {
	result := &LevelAnalysisResult{}
	if len(candles) == 0 {
		return result
	}
	price := candles[len(candles)-1].Close
	result.Price = price
	result.Clusters = l.Cluster(candles)

	var below, above []analysis.Level
	for _, lv := range result.Clusters {
		switch {
		case lv.Price < price:
			below = append(below, lv)
		case lv.Price > price:
			above = append(above, lv)
		}
	}

	result.Supports = topByStrength(below, func(a, b analysis.Level) bool { return a.Price > b.Price })
	result.Resistances = topByStrength(above, func(a, b analysis.Level) bool { return a.Price < b.Price })

	low, high := seriesBounds(candles)
	if len(result.Supports) == 0 {
		result.Supports = []analysis.Level{{
			Price:    indicators.Round(low, indicators.PricePlaces),
			Type:     analysis.LevelSupport,
			Strength: fallbackStrength,
			Fallback: true,
		}}
	}
	if len(result.Resistances) == 0 {
		result.Resistances = []analysis.Level{{
			Price:    indicators.Round(high, indicators.PricePlaces),
			Type:     analysis.LevelResistance,
			Strength: fallbackStrength,
			Fallback: true,
		}}
	}
	return result
}

// topByStrength keeps the strongest levels and re-sorts them by proximity.
func topByStrength(levels []analysis.Level, nearer func(a, b analysis.Level) bool) []analysis.Level {
	if len(levels) == 0 {
		return nil
	}
	sorted := make([]analysis.Level, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Strength != sorted[j].Strength {
			return sorted[i].Strength > sorted[j].Strength
		}
		return nearer(sorted[i], sorted[j])
	})
	if len(sorted) > maxLevelsPerSide {
		sorted = sorted[:maxLevelsPerSide]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return nearer(sorted[i], sorted[j])
	})
	return sorted
}
