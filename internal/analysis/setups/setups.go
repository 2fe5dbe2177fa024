// Package setups detects discrete short-term trading setups on the latest
// candle of a series. Each rule emits at most one finding with its own
// confidence formula; findings are never deduplicated across rules.
package setups

import (
	"fmt"
	"math"
	"sort"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/indicators"
	"price-analyst/internal/analysis/patterns"
	"price-analyst/internal/models"
)

// Rule thresholds.
const (
	breakoutProximity  = 0.02
	breakoutVolume     = 1.5
	breakoutRSICeiling = 70.0
	pullbackProximity  = 0.02
	pullbackRSILow     = 40.0
	pullbackRSIHigh    = 55.0
	squeezeBandwidth   = 4.0
	squeezePercentile  = 0.20
	squeezeHistory     = 50
	squeezeVolume      = 1.2
	climaxVolume       = 2.0
	oversoldRSI        = 30.0
	overboughtRSI      = 70.0
	confirmingVolume   = 1.2
)

// Rule is one setup check.
type Rule interface {
	Name() analysis.SetupType
	Check(in *Input) *analysis.Setup
}

// Input carries the series and its indicator set to every rule.
type Input struct {
	Candles []models.Candle
	Set     *indicators.Set

	last        models.Candle
	price       float64
	volumeRatio float64
	hasVolume   bool
}

func newInput(candles []models.Candle, set *indicators.Set) *Input {
	in := &Input{Candles: candles, Set: set}
	in.last = candles[len(candles)-1]
	in.price = in.last.Close
	in.volumeRatio, in.hasVolume = indicators.VolumeRatio(candles, set.VolumeSMA)
	return in
}

// Detector runs the rule bank.
type Detector struct {
	rules []Rule
}

// NewDetector creates a detector with the standard eight rules in a fixed
// order. The order only breaks confidence ties when picking a primary setup.
func NewDetector() *Detector {
	return &Detector{rules: []Rule{
		breakoutRule{},
		pullbackRule{},
		squeezeRule{},
		divergenceRule{detector: patterns.NewDivergenceDetector()},
		volumeClimaxRule{},
		macdCrossoverRule{},
		oversoldBounceRule{},
		overboughtReversalRule{},
	}}
}

// Rules returns the configured rule names in evaluation order.
func (d *Detector) Rules() []analysis.SetupType {
	names := make([]analysis.SetupType, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name()
	}
	return names
}

// Detect evaluates every rule against the latest candle and returns the
// findings sorted by confidence, highest first. Series shorter than
// analysis.MinScoredCandles yield no findings.
func (d *Detector) Detect(candles []models.Candle, set *indicators.Set) []analysis.Setup {
	if len(candles) < analysis.MinScoredCandles || set == nil {
		return nil
	}
	in := newInput(candles, set)

	var findings []analysis.Setup
	for _, r := range d.rules {
		if f := r.Check(in); f != nil {
			f.Confidence = clampConfidence(f.Confidence)
			findings = append(findings, *f)
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Confidence > findings[j].Confidence
	})
	return findings
}

// Primary returns the highest-confidence finding, or nil.
func Primary(findings []analysis.Setup) *analysis.Setup {
	if len(findings) == 0 {
		return nil
	}
	best := findings[0]
	for _, f := range findings[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}
	return &best
}

func clampConfidence(c int) int {
	return max(0, min(100, c))
}

func score(v float64) int {
	return int(math.Round(v))
}

// Breakout: price within 2% of the 20-candle high on at least 1.5x volume
// with RSI still below 70.
type breakoutRule struct{}

func (breakoutRule) Name() analysis.SetupType { return analysis.SetupBreakout }

func (breakoutRule) Check(in *Input) *analysis.Setup {
	high, ok := in.Set.High20.Last()
	rsi, okRSI := in.Set.RSI.Last()
	if !ok || !okRSI || !in.hasVolume || high <= 0 {
		return nil
	}
	if in.price < high*(1-breakoutProximity) || in.volumeRatio < breakoutVolume || rsi >= breakoutRSICeiling {
		return nil
	}
	conf := 60 + math.Min(20, (in.volumeRatio-breakoutVolume)*20)
	if in.price >= high {
		conf += 10
	}
	if rsi >= 50 && rsi <= 65 {
		conf += 5
	}
	return &analysis.Setup{
		Type:        analysis.SetupBreakout,
		Direction:   analysis.Bullish,
		Confidence:  score(math.Min(conf, 95)),
		Description: fmt.Sprintf("Price %.2f is pressing the 20-candle high %.2f on %.1fx average volume", in.price, high, in.volumeRatio),
	}
}

// Pullback: price back within 2% of a rising SMA20 stacked above SMA50 and
// the long-term trend, with RSI cooled into [40, 55].
type pullbackRule struct{}

func (pullbackRule) Name() analysis.SetupType { return analysis.SetupPullback }

func (pullbackRule) Check(in *Input) *analysis.Setup {
	sma20, ok20 := in.Set.SMA20.Last()
	sma50, ok50 := in.Set.SMA50.Last()
	rsi, okRSI := in.Set.RSI.Last()
	if !ok20 || !ok50 || !okRSI || sma20 <= 0 {
		return nil
	}
	dist := math.Abs(in.price-sma20) / sma20
	if dist > pullbackProximity || sma20 <= sma50 || rsi < pullbackRSILow || rsi > pullbackRSIHigh {
		return nil
	}
	conf := 55 + (1-dist/pullbackProximity)*15
	trend := "SMA20 above SMA50"
	if sma200, ok := in.Set.SMA200.Last(); ok {
		if sma50 <= sma200 {
			return nil
		}
		conf += 10
		trend = "SMA20 > SMA50 > SMA200"
	}
	return &analysis.Setup{
		Type:        analysis.SetupPullback,
		Direction:   analysis.Bullish,
		Confidence:  score(math.Min(conf, 85)),
		Description: fmt.Sprintf("Pullback to SMA20 %.2f with %s and RSI %.1f", sma20, trend, rsi),
	}
}

// Squeeze: Bollinger bandwidth below 4% or in the lowest 20th percentile of
// its trailing 50-candle history, with volume starting to expand.
type squeezeRule struct{}

func (squeezeRule) Name() analysis.SetupType { return analysis.SetupSqueeze }

func (squeezeRule) Check(in *Input) *analysis.Setup {
	width := in.Set.BBWidth
	bw, ok := width.Last()
	if !ok || !in.hasVolume || in.volumeRatio < squeezeVolume {
		return nil
	}

	last := len(width) - 1
	var history, below int
	for i := max(0, last-squeezeHistory); i < last; i++ {
		if v, ok := width.At(i); ok {
			history++
			if v <= bw {
				below++
			}
		}
	}
	rank := 1.0
	if history > 0 {
		rank = float64(below) / float64(history)
	}
	tight := bw < squeezeBandwidth
	if !tight && (history == 0 || rank > squeezePercentile) {
		return nil
	}

	conf := 50 + (1-rank)*15 + math.Min(10, (in.volumeRatio-squeezeVolume)*20)
	if tight {
		conf += 10
	}
	dir := analysis.Neutral
	if mid, ok := in.Set.BBMiddle.Last(); ok {
		switch {
		case in.price > mid:
			dir = analysis.Bullish
		case in.price < mid:
			dir = analysis.Bearish
		}
	}
	return &analysis.Setup{
		Type:        analysis.SetupSqueeze,
		Direction:   dir,
		Confidence:  score(math.Min(conf, 85)),
		Description: fmt.Sprintf("Bollinger bandwidth %.2f%% sits in the bottom %.0f%% of the last %d readings", bw, rank*100, history),
	}
}

// RSI Divergence: the two most recent swing lows (highs) disagree with RSI.
type divergenceRule struct {
	detector *patterns.DivergenceDetector
}

func (divergenceRule) Name() analysis.SetupType { return analysis.SetupRSIDivergence }

func (r divergenceRule) Check(in *Input) *analysis.Setup {
	div := r.detector.Detect(in.Candles, in.Set.RSI)
	if div == nil {
		return nil
	}
	desc := fmt.Sprintf("Price made a lower low (%.2f -> %.2f) while RSI rose (%.1f -> %.1f)", div.PriceStart, div.PriceEnd, div.RSIStart, div.RSIEnd)
	if div.Direction == analysis.Bearish {
		desc = fmt.Sprintf("Price made a higher high (%.2f -> %.2f) while RSI fell (%.1f -> %.1f)", div.PriceStart, div.PriceEnd, div.RSIStart, div.RSIEnd)
	}
	return &analysis.Setup{
		Type:        analysis.SetupRSIDivergence,
		Direction:   div.Direction,
		Confidence:  score(55 + math.Min(25, div.Gap())),
		Description: desc,
	}
}

// Volume Climax: at least 2x average volume on a small-bodied reversal candle.
type volumeClimaxRule struct{}

func (volumeClimaxRule) Name() analysis.SetupType { return analysis.SetupVolumeClimax }

func (volumeClimaxRule) Check(in *Input) *analysis.Setup {
	if !in.hasVolume || in.volumeRatio < climaxVolume {
		return nil
	}
	bullish, ok := patterns.ReversalCandle(in.last)
	if !ok {
		return nil
	}
	conf := 50 + math.Min(25, (in.volumeRatio-climaxVolume)*10)
	dir := analysis.Bearish
	if bullish {
		dir = analysis.Bullish
	}
	if rsi, ok := in.Set.RSI.Last(); ok {
		if (bullish && rsi < 40) || (!bullish && rsi > 60) {
			conf += 10
		}
	}
	return &analysis.Setup{
		Type:        analysis.SetupVolumeClimax,
		Direction:   dir,
		Confidence:  score(math.Min(conf, 85)),
		Description: fmt.Sprintf("Climactic %.1fx volume on a small-bodied reversal candle", in.volumeRatio),
	}
}

// MACD Crossover: the histogram changed sign on the latest candle.
type macdCrossoverRule struct{}

func (macdCrossoverRule) Name() analysis.SetupType { return analysis.SetupMACDCrossover }

func (macdCrossoverRule) Check(in *Input) *analysis.Setup {
	cur, ok := in.Set.MACDHist.Last()
	prev, okPrev := in.Set.MACDHist.Back(1)
	if !ok || !okPrev {
		return nil
	}
	var dir analysis.Direction
	switch {
	case prev <= 0 && cur > 0:
		dir = analysis.Bullish
	case prev >= 0 && cur < 0:
		dir = analysis.Bearish
	default:
		return nil
	}

	conf := 55.0
	if in.hasVolume && in.volumeRatio >= 1 {
		conf += 10
	}
	if sma50, ok := in.Set.SMA50.Last(); ok {
		if (dir == analysis.Bullish && in.price > sma50) || (dir == analysis.Bearish && in.price < sma50) {
			conf += 10
		}
	}
	word := "above"
	if dir == analysis.Bearish {
		word = "below"
	}
	return &analysis.Setup{
		Type:        analysis.SetupMACDCrossover,
		Direction:   dir,
		Confidence:  score(conf),
		Description: fmt.Sprintf("MACD crossed %s its signal line (histogram %.3f -> %.3f)", word, prev, cur),
	}
}

// Oversold Bounce: RSI at or below 30 with a green candle.
type oversoldBounceRule struct{}

func (oversoldBounceRule) Name() analysis.SetupType { return analysis.SetupOversoldBounce }

func (oversoldBounceRule) Check(in *Input) *analysis.Setup {
	rsi, ok := in.Set.RSI.Last()
	if !ok || rsi > oversoldRSI || in.last.Close <= in.last.Open {
		return nil
	}
	conf := 50 + math.Min(20, (oversoldRSI-rsi)*1.5)
	if in.hasVolume && in.volumeRatio >= confirmingVolume {
		conf += 10
	}
	return &analysis.Setup{
		Type:        analysis.SetupOversoldBounce,
		Direction:   analysis.Bullish,
		Confidence:  score(conf),
		Description: fmt.Sprintf("RSI %.1f is oversold and the latest candle closed green", rsi),
	}
}

// Overbought Reversal: RSI at or above 70 with a red candle.
type overboughtReversalRule struct{}

func (overboughtReversalRule) Name() analysis.SetupType { return analysis.SetupOverboughtReversal }

func (overboughtReversalRule) Check(in *Input) *analysis.Setup {
	rsi, ok := in.Set.RSI.Last()
	if !ok || rsi < overboughtRSI || in.last.Close >= in.last.Open {
		return nil
	}
	conf := 50 + math.Min(20, (rsi-overboughtRSI)*1.5)
	if in.hasVolume && in.volumeRatio >= confirmingVolume {
		conf += 10
	}
	return &analysis.Setup{
		Type:        analysis.SetupOverboughtReversal,
		Direction:   analysis.Bearish,
		Confidence:  score(conf),
		Description: fmt.Sprintf("RSI %.1f is overbought and the latest candle closed red", rsi),
	}
}
