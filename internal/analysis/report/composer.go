// Package report composes the final analysis record for a series.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/indicators"
	"price-analyst/internal/analysis/patterns"
	"price-analyst/internal/analysis/scoring"
	"price-analyst/internal/analysis/setups"
	"price-analyst/internal/logging"
	"price-analyst/internal/models"
)

// Vote thresholds.
const (
	rsiBullVote  = 55.0
	rsiBearVote  = 45.0
	votesToCall  = 3
	rsLookback   = 20
	engineWorker = 4
)

// Composer assembles reports from the indicator engine, level analyzer,
// chart classifier, setup detector and scorer.
type Composer struct {
	engine   *indicators.Engine
	levels   *patterns.LevelAnalyzer
	chart    *patterns.ChartPatternDetector
	detector *setups.Detector
	scorer   *scoring.Scorer
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

// WithClock sets the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// WithIDFunc sets the report ID generator.
func WithIDFunc(f func() string) Option {
	return func(c *Composer) { c.newID = f }
}

// NewComposer creates a composer with the default analyzers.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{
		engine:   indicators.NewDefaultEngine(engineWorker),
		levels:   patterns.NewLevelAnalyzer(),
		chart:    patterns.NewChartPatternDetector(),
		detector: setups.NewDetector(),
		scorer:   scoring.NewScorer(),
		logger:   zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the report for series. benchmark, when non-empty, adds
// relative strength to the snapshot. Series with fewer than
// analysis.MinCandles candles produce an Insufficient Data report.
func (c *Composer) Compose(series *models.Series, benchmark []models.Candle) *analysis.Report {
	r := c.base(series)
	candles := series.Candles
	if len(candles) < analysis.MinCandles {
		r.Signal = analysis.SignalNeutral
		r.Pattern = analysis.PatternInsufficientData
		r.Narrative = fmt.Sprintf("Only %d candles available for %s; at least %d are needed for an analysis.",
			len(candles), series.Symbol, analysis.MinCandles)
		r.Reasoning = []string{r.Narrative}
		return r
	}

	set, err := c.engine.Compute(context.Background(), candles)
	if err != nil {
		set = indicators.ComputeSet(candles)
	}
	price := candles[len(candles)-1].Close

	bull, bear, votes := vote(price, set)
	r.Signal = analysis.SignalNeutral
	switch {
	case bull >= votesToCall:
		r.Signal = analysis.SignalBullish
	case bear >= votesToCall:
		r.Signal = analysis.SignalBearish
	}

	structure := c.chart.Classify(candles, r.Signal)
	r.Pattern = structure.Pattern
	r.Trace = patterns.Trace(candles)

	levels := c.levels.Analyze(candles)
	r.Supports = levels.Supports
	r.Resistances = levels.Resistances

	r.Setups = c.detector.Detect(candles, set)
	if r.Setups == nil {
		r.Setups = []analysis.Setup{}
	}
	r.PrimarySetup = setups.Primary(r.Setups)
	r.Breakdown = c.scorer.Score(candles, set, r.Signal.Direction())
	r.Confidence = r.Breakdown.Total
	if r.PrimarySetup != nil && r.PrimarySetup.Confidence > r.Confidence {
		r.Confidence = r.PrimarySetup.Confidence
	}

	r.Snapshot = snapshot(candles, set, benchmark)
	r.Reasoning = reasoning(r, structure, votes, bull, bear)
	r.Narrative = ruleNarrative(r)

	logging.LogReport(logging.WithRange(c.logger, string(r.Range)), r.Symbol, string(r.Signal), r.Pattern, r.Confidence)
	return r
}

func (c *Composer) base(series *models.Series) *analysis.Report {
	return &analysis.Report{
		ID:              c.newID(),
		Symbol:          series.Symbol,
		Range:           series.Range,
		NarrativeSource: analysis.NarrativeRuleBased,
		Supports:        []analysis.Level{},
		Resistances:     []analysis.Level{},
		Setups:          []analysis.Setup{},
		Trace:           []analysis.TracePoint{},
		Snapshot:        analysis.Snapshot{Price: series.LastPrice},
		Source:          series.Source,
		Live:            series.Live,
		Candles:         len(series.Candles),
		GeneratedAt:     c.now(),
	}
}

// vote counts bullish and bearish readings across RSI, MACD histogram, price
// vs SMA20, SMA20 vs SMA50 and price vs SMA50. votes lists each reading.
func vote(price float64, set *indicators.Set) (bull, bear int, votes []string) {
	cast := func(name string, up, down bool) {
		switch {
		case up:
			bull++
			votes = append(votes, name+" bullish")
		case down:
			bear++
			votes = append(votes, name+" bearish")
		default:
			votes = append(votes, name+" neutral")
		}
	}

	if rsi, ok := set.RSI.Last(); ok {
		cast("RSI", rsi > rsiBullVote, rsi < rsiBearVote)
	}
	if hist, ok := set.MACDHist.Last(); ok {
		cast("MACD histogram", hist > 0, hist < 0)
	}
	sma20, ok20 := set.SMA20.Last()
	sma50, ok50 := set.SMA50.Last()
	if ok20 {
		cast("price vs SMA20", price > sma20, price < sma20)
	}
	if ok20 && ok50 {
		cast("SMA20 vs SMA50", sma20 > sma50, sma20 < sma50)
	}
	if ok50 {
		cast("price vs SMA50", price > sma50, price < sma50)
	}
	return bull, bear, votes
}

func snapshot(candles []models.Candle, set *indicators.Set, benchmark []models.Candle) analysis.Snapshot {
	last := func(l indicators.Line) *float64 {
		if v, ok := l.Last(); ok {
			return &v
		}
		return nil
	}
	s := analysis.Snapshot{
		Price:      candles[len(candles)-1].Close,
		RSI:        last(set.RSI),
		MACD:       last(set.MACD),
		MACDSignal: last(set.MACDSignal),
		MACDHist:   last(set.MACDHist),
		SMA20:      last(set.SMA20),
		SMA50:      last(set.SMA50),
		SMA200:     last(set.SMA200),
		BBUpper:    last(set.BBUpper),
		BBLower:    last(set.BBLower),
		ATR:        last(set.ATR),
	}
	if ratio, ok := indicators.VolumeRatio(candles, set.VolumeSMA); ok {
		ratio = indicators.Round(ratio, indicators.PricePlaces)
		s.VolumeRatio = &ratio
	}
	if len(benchmark) > 1 {
		period := min(rsLookback, len(candles)-1, len(benchmark)-1)
		if rs, ok := indicators.RelativeStrength(candles, benchmark, period); ok {
			s.RelStrength = &rs
		}
	}
	return s
}
