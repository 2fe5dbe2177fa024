package scoring

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"price-analyst/internal/analysis"
	"price-analyst/internal/logging"
	"price-analyst/internal/models"
)

// DefaultScanDelay is the pause between two symbols of a scan.
const DefaultScanDelay = 1500 * time.Millisecond

// SeriesSource provides the series for one symbol and range.
type SeriesSource interface {
	Fetch(ctx context.Context, symbol string, tag models.RangeTag) (*models.Series, error)
}

// SeriesSourceFunc adapts a function to SeriesSource.
type SeriesSourceFunc func(ctx context.Context, symbol string, tag models.RangeTag) (*models.Series, error)

func (f SeriesSourceFunc) Fetch(ctx context.Context, symbol string, tag models.RangeTag) (*models.Series, error) {
	return f(ctx, symbol, tag)
}

// Analyzer turns a series into a report. benchmark may be nil.
type Analyzer interface {
	Compose(series *models.Series, benchmark []models.Candle) *analysis.Report
}

// ScanResult is the outcome of scanning one symbol.
type ScanResult struct {
	Symbol string
	Report *analysis.Report
	Err    error
}

// Screener analyses a list of symbols one at a time.
type Screener struct {
	source        SeriesSource
	analyzer      Analyzer
	delay         time.Duration
	benchmark     string
	minConfidence int
	logger        zerolog.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// ScreenerOption configures a Screener.
type ScreenerOption func(*Screener)

// WithDelay sets the fixed pause between symbols.
func WithDelay(d time.Duration) ScreenerOption {
	return func(s *Screener) { s.delay = d }
}

// WithBenchmark enables relative strength against the given symbol.
func WithBenchmark(symbol string) ScreenerOption {
	return func(s *Screener) { s.benchmark = symbol }
}

// WithMinConfidence drops reports below the given confidence.
func WithMinConfidence(c int) ScreenerOption {
	return func(s *Screener) { s.minConfidence = c }
}

// WithScanLogger sets the logger.
func WithScanLogger(logger zerolog.Logger) ScreenerOption {
	return func(s *Screener) { s.logger = logger }
}

// NewScreener creates a new screener.
func NewScreener(source SeriesSource, analyzer Analyzer, opts ...ScreenerOption) *Screener {
	s := &Screener{
		source:   source,
		analyzer: analyzer,
		delay:    DefaultScanDelay,
		logger:   zerolog.Nop(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan fetches and analyses each symbol sequentially, pausing between
// requests. Results are sorted by confidence, highest first, with failed
// symbols last. When ctx is cancelled the results collected so far are
// returned together with ctx.Err().
func (s *Screener) Scan(ctx context.Context, symbols []string, tag models.RangeTag) ([]ScanResult, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	logger := logging.WithRange(logging.WithOperation(s.logger, "scan"), string(tag))

	var bench []models.Candle
	requests := 0
	if s.benchmark != "" {
		series, err := s.source.Fetch(ctx, s.benchmark, tag)
		requests++
		if err != nil {
			logger.Warn().Err(err).Str("benchmark", s.benchmark).Msg("Benchmark unavailable, relative strength disabled")
		} else {
			bench = series.Candles
		}
	}

	results := make([]ScanResult, 0, len(symbols))
	var scanErr error
	for _, symbol := range symbols {
		if requests > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				scanErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			scanErr = err
			break
		}
		requests++

		result := ScanResult{Symbol: symbol}
		series, err := s.source.Fetch(ctx, symbol, tag)
		if err != nil {
			result.Err = err
			l := logging.WithSymbol(logger, symbol)
			l.Warn().Err(err).Msg("Scan fetch failed")
			results = append(results, result)
			continue
		}
		result.Report = s.analyzer.Compose(series, bench)
		if result.Report.Confidence < s.minConfidence {
			continue
		}
		results = append(results, result)
	}

	Rank(results)
	logger.Info().Int("symbols", len(symbols)).Int("results", len(results)).Msg("Scan finished")
	return results, scanErr
}

// Rank sorts results by confidence descending; failures sort last and keep
// their input order.
func Rank(results []ScanResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Report, results[j].Report
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Confidence > b.Confidence
		}
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
