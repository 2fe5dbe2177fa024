// Package scoring provides confidence scoring and batch scanning.
package scoring

import (
	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/indicators"
	"price-analyst/internal/models"
)

// Bucket caps.
const (
	MaxTrend      = 25
	MaxTechnical  = 25
	MaxVolume     = 20
	MaxRiskReward = 15
	MaxMomentum   = 15
	MaxTotal      = 100
)

// Scorer combines trend alignment, indicator agreement, volume confirmation,
// risk/reward geometry and momentum into one 0-100 confidence.
type Scorer struct{}

// NewScorer creates a new confidence scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score rates how well the latest candle supports a move in dir. A neutral
// direction is scored as bullish. Series shorter than analysis.MinScoredCandles
// and nil sets yield a zero breakdown. Missing indicator values contribute 0
// to their bucket.
func (s *Scorer) Score(candles []models.Candle, set *indicators.Set, dir analysis.Direction) analysis.Breakdown {
	if len(candles) < analysis.MinScoredCandles || set == nil {
		return analysis.Breakdown{}
	}
	bearish := dir == analysis.Bearish
	price := candles[len(candles)-1].Close

	b := analysis.Breakdown{
		Trend:      clamp(trendScore(price, set, bearish), 0, MaxTrend),
		Technical:  clamp(technicalScore(set, bearish), 0, MaxTechnical),
		Volume:     clamp(volumeScore(candles, set), 0, MaxVolume),
		RiskReward: clamp(riskRewardScore(price, set, bearish), 0, MaxRiskReward),
		Momentum:   clamp(momentumScore(set, bearish), 0, MaxMomentum),
	}
	b.Total = clamp(b.Trend+b.Technical+b.Volume+b.RiskReward+b.Momentum, 0, MaxTotal)
	return b
}

// favours reports whether a sits on the scored side of b.
func favours(a, b float64, bearish bool) bool {
	if bearish {
		return a < b
	}
	return a > b
}

func trendScore(price float64, set *indicators.Set, bearish bool) int {
	score := 0
	sma20, ok20 := set.SMA20.Last()
	sma50, ok50 := set.SMA50.Last()
	if ok20 && favours(price, sma20, bearish) {
		score += 8
	}
	if ok50 && favours(price, sma50, bearish) {
		score += 8
	}
	if ok20 && ok50 && favours(sma20, sma50, bearish) {
		score += 9
	}
	return score
}

func technicalScore(set *indicators.Set, bearish bool) int {
	score := 0
	if rsi, ok := set.RSI.Last(); ok {
		if bearish {
			rsi = 100 - rsi
		}
		score += rsiBand(rsi)
	}

	hist, ok := set.MACDHist.Last()
	if !ok {
		return score
	}
	if favours(hist, 0, bearish) {
		score += 6
	}
	if prev, ok := set.MACDHist.Back(3); ok && (hist == prev || favours(hist, prev, bearish)) {
		score += 4
	}
	return score
}

// rsiBand scores RSI for a bullish read; the healthiest zone is 50-70.
func rsiBand(rsi float64) int {
	switch {
	case rsi >= 50 && rsi < 70:
		return 15
	case rsi >= 40 && rsi < 50:
		return 10
	case rsi >= 70 && rsi < 80:
		return 8
	case rsi >= 30 && rsi < 40:
		return 6
	default:
		return 5
	}
}

func volumeScore(candles []models.Candle, set *indicators.Set) int {
	ratio, ok := indicators.VolumeRatio(candles, set.VolumeSMA)
	if !ok {
		return 0
	}
	switch {
	case ratio >= 2:
		return 20
	case ratio >= 1.5:
		return 15
	case ratio >= 1.2:
		return 10
	case ratio >= 1:
		return 8
	case ratio >= 0.8:
		return 3
	default:
		return 0
	}
}

// riskRewardScore tiers the distance to the target band over the distance to
// the stop band. Bullish targets the upper band; bearish targets the lower.
func riskRewardScore(price float64, set *indicators.Set, bearish bool) int {
	upper, okU := set.BBUpper.Last()
	lower, okL := set.BBLower.Last()
	if !okU || !okL {
		return 0
	}
	reward, risk := upper-price, price-lower
	if bearish {
		reward, risk = price-lower, upper-price
	}
	if reward <= 0 {
		return 0
	}
	if risk <= 0 {
		return MaxRiskReward
	}
	switch ratio := reward / risk; {
	case ratio >= 3:
		return 15
	case ratio >= 2:
		return 12
	case ratio >= 1.5:
		return 9
	case ratio >= 1:
		return 6
	case ratio >= 0.5:
		return 3
	default:
		return 0
	}
}

func momentumScore(set *indicators.Set, bearish bool) int {
	score := 0
	if rsi, ok := set.RSI.Last(); ok && favours(rsi, indicators.NeutralRSI, bearish) {
		score += 7
	}
	macd, okM := set.MACD.Last()
	signal, okS := set.MACDSignal.Last()
	if okM && okS && favours(macd, signal, bearish) {
		score += 8
	}
	return score
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
