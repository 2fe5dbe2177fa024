// Package mtf provides multi-range confluence analysis: the same symbol is
// analysed over several ranges and the verdicts are combined.
package mtf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/scoring"
	"price-analyst/internal/models"
)

// DefaultRanges returns the ranges analysed when none are configured,
// shortest first.
func DefaultRanges() []models.RangeTag {
	return []models.RangeTag{models.Range1D, models.Range1W, models.Range3M, models.Range1Y}
}

// Longer ranges carry more weight.
var defaultWeights = map[models.RangeTag]float64{
	models.Range1D: 0.15,
	models.Range1W: 0.20,
	models.Range3M: 0.30,
	models.Range1Y: 0.35,
}

// ConfluenceLevel represents the level of agreement between ranges.
type ConfluenceLevel string

const (
	ConfluenceStrong   ConfluenceLevel = "STRONG"   // 4 agree
	ConfluenceModerate ConfluenceLevel = "MODERATE" // 3 agree
	ConfluenceWeak     ConfluenceLevel = "WEAK"     // 2 agree
	ConfluenceNone     ConfluenceLevel = "NONE"
)

// RangeAnalysis contains the report for a single range.
type RangeAnalysis struct {
	Range  models.RangeTag
	Report *analysis.Report
	Err    error
}

func (r *RangeAnalysis) ok() bool {
	return r != nil && r.Err == nil && r.Report != nil && !r.Report.Insufficient()
}

// Result contains the complete multi-range analysis result.
type Result struct {
	Symbol         string
	Order          []models.RangeTag
	Ranges         map[models.RangeTag]*RangeAnalysis
	Confluence     ConfluenceLevel
	TrendAlignment bool
	OverallSignal  analysis.Signal
	OverallScore   float64 // -100 (all bearish) to 100 (all bullish)
	BullishCount   int
	BearishCount   int
	NeutralCount   int
	Live           bool // every analysed range came from a live provider
}

// Analyzer performs multi-range analysis.
type Analyzer struct {
	source   scoring.SeriesSource
	composer scoring.Analyzer
	ranges   []models.RangeTag
	weights  map[models.RangeTag]float64
	logger   zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRanges sets the ranges to analyse.
func WithRanges(ranges ...models.RangeTag) Option {
	return func(a *Analyzer) {
		if len(ranges) > 0 {
			a.ranges = ranges
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer creates a new multi-range analyzer.
func NewAnalyzer(source scoring.SeriesSource, composer scoring.Analyzer, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:   source,
		composer: composer,
		ranges:   DefaultRanges(),
		weights:  defaultWeights,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze fetches every range and combines the reports. Ranges are fetched
// one after another so provider budgets are shared fairly. It fails only
// when ctx ends or no range could be fetched.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*Result, error) {
	series := make(map[models.RangeTag]*models.Series, len(a.ranges))
	failed := make(map[models.RangeTag]error)
	var errs []error

	for _, tag := range a.ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := a.source.Fetch(ctx, symbol, tag)
		if err != nil {
			a.logger.Warn().Err(err).Str("symbol", symbol).Str("range", string(tag)).Msg("Range fetch failed")
			failed[tag] = err
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
			continue
		}
		series[tag] = s
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("no range could be fetched for %s: %w", symbol, errors.Join(errs...))
	}

	result := a.AnalyzeSeries(symbol, series)
	for tag, err := range failed {
		result.Ranges[tag] = &RangeAnalysis{Range: tag, Err: err}
	}
	a.calculateConfluence(result)
	return result, nil
}

// AnalyzeSeries combines already fetched series. Reports are composed
// concurrently because composition is pure.
func (a *Analyzer) AnalyzeSeries(symbol string, series map[models.RangeTag]*models.Series) *Result {
	result := &Result{
		Symbol: symbol,
		Order:  a.ranges,
		Ranges: make(map[models.RangeTag]*RangeAnalysis),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for tag, s := range series {
		wg.Add(1)
		go func(tag models.RangeTag, s *models.Series) {
			defer wg.Done()

			ra := &RangeAnalysis{Range: tag, Report: a.composer.Compose(s, nil)}
			if ra.Report == nil {
				ra.Err = fmt.Errorf("no report for %s", tag)
			}

			mu.Lock()
			result.Ranges[tag] = ra
			mu.Unlock()
		}(tag, s)
	}

	wg.Wait()

	a.calculateConfluence(result)
	return result
}

// calculateConfluence calculates the confluence level and overall signal.
func (a *Analyzer) calculateConfluence(result *Result) {
	bullish, bearish, neutral := 0, 0, 0
	live := true

	var weighted, totalWeight float64
	for tag, ra := range result.Ranges {
		if !ra.ok() {
			continue
		}
		live = live && ra.Report.Live

		var sign float64
		switch ra.Report.Signal {
		case analysis.SignalBullish:
			bullish++
			sign = 1
		case analysis.SignalBearish:
			bearish++
			sign = -1
		default:
			neutral++
		}

		w := a.weights[tag]
		if w == 0 {
			w = 0.25
		}
		weighted += sign * float64(ra.Report.Confidence) * w
		totalWeight += w
	}

	result.BullishCount = bullish
	result.BearishCount = bearish
	result.NeutralCount = neutral

	total := bullish + bearish + neutral
	if total == 0 {
		result.Confluence = ConfluenceNone
		result.OverallSignal = analysis.SignalNeutral
		result.OverallScore = 0
		result.TrendAlignment = false
		result.Live = false
		return
	}
	result.Live = live

	maxAgreement := max(bullish, bearish)
	switch {
	case maxAgreement >= 4:
		result.Confluence = ConfluenceStrong
	case maxAgreement == 3:
		result.Confluence = ConfluenceModerate
	case maxAgreement == 2:
		result.Confluence = ConfluenceWeak
	default:
		result.Confluence = ConfluenceNone
	}
	result.TrendAlignment = maxAgreement >= 3

	result.OverallScore = weighted / totalWeight
	switch {
	case result.OverallScore >= 15:
		result.OverallSignal = analysis.SignalBullish
	case result.OverallScore <= -15:
		result.OverallSignal = analysis.SignalBearish
	default:
		result.OverallSignal = analysis.SignalNeutral
	}
}

// IsBullishConfluence returns true if at least three ranges are bullish.
func (r *Result) IsBullishConfluence() bool {
	return r.BullishCount >= 3
}

// IsBearishConfluence returns true if at least three ranges are bearish.
func (r *Result) IsBearishConfluence() bool {
	return r.BearishCount >= 3
}

// FormatResult formats the result for display.
func (r *Result) FormatResult() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Multi-Range Analysis: %s\n", r.Symbol))
	sb.WriteString(strings.Repeat("─", 64) + "\n\n")

	sb.WriteString(fmt.Sprintf("%-7s %-9s %-6s %-24s %-12s\n", "Range", "Signal", "Conf", "Pattern", "Source"))
	sb.WriteString(strings.Repeat("-", 64) + "\n")

	for _, tag := range r.Order {
		ra := r.Ranges[tag]
		if !ra.ok() {
			sb.WriteString(fmt.Sprintf("%-7s %-9s\n", tag, "N/A"))
			continue
		}
		rep := ra.Report
		source := rep.Source
		if !rep.Live {
			source += " (not live)"
		}
		sb.WriteString(fmt.Sprintf("%-7s %-9s %-6d %-24s %-12s\n", tag, rep.Signal, rep.Confidence, rep.Pattern, source))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Confluence:      %s\n", r.Confluence))
	sb.WriteString(fmt.Sprintf("  Trend Alignment: %v\n", r.TrendAlignment))
	sb.WriteString(fmt.Sprintf("  Overall Signal:  %s (%.1f)\n", r.OverallSignal, r.OverallScore))
	sb.WriteString(fmt.Sprintf("  Bullish/Bearish/Neutral: %d/%d/%d\n", r.BullishCount, r.BearishCount, r.NeutralCount))

	return sb.String()
}
