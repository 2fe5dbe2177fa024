package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/indicators"
	"price-analyst/internal/models"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 200.0),
		"High":   gen.Float64Range(100.0, 200.0),
		"Low":    gen.Float64Range(100.0, 200.0),
		"Close":  gen.Float64Range(100.0, 200.0),
		"Volume": gen.Int64Range(0, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		return c
	})
}

// candleSliceGen generates a chronologically ordered slice of candles
func candleSliceGen(size int) gopter.Gen {
	return gen.SliceOfN(size, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for i := range candles {
			candles[i].Timestamp = testStart.Add(time.Duration(i) * time.Hour)
		}
		return candles
	})
}

func TestProperty_ConfidenceIsBoundedInteger(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	scorer := NewScorer()

	properties.Property("total is in [0, 100] and equals the capped bucket sum", prop.ForAll(
		func(candles []models.Candle, bearish bool) bool {
			dir := analysis.Bullish
			if bearish {
				dir = analysis.Bearish
			}
			b := scorer.Score(candles, indicators.ComputeSet(candles), dir)
			if b.Total < 0 || b.Total > MaxTotal {
				return false
			}
			if b.Trend > MaxTrend || b.Technical > MaxTechnical || b.Volume > MaxVolume ||
				b.RiskReward > MaxRiskReward || b.Momentum > MaxMomentum {
				return false
			}
			return b.Total == min(MaxTotal, b.Trend+b.Technical+b.Volume+b.RiskReward+b.Momentum)
		},
		candleSliceGen(80),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

const n = 60

func lastCandle(close float64, volume int64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: testStart.Add(time.Duration(i) * 24 * time.Hour),
			Open:      close, High: close + 1, Low: close - 1, Close: close,
			Volume: 1000,
		}
	}
	out[n-1].Volume = volume
	return out
}

func blankSet() *indicators.Set {
	null := func() indicators.Line { return make(indicators.Line, n) }
	return &indicators.Set{
		RSI: null(), SMA20: null(), SMA50: null(), SMA200: null(),
		EMA12: null(), EMA26: null(), MACD: null(), MACDSignal: null(), MACDHist: null(),
		BBUpper: null(), BBMiddle: null(), BBLower: null(), BBWidth: null(),
		ATR: null(), VolumeSMA: null(), High20: null(), Low20: null(),
	}
}

func setLast(l indicators.Line, v float64) {
	l[len(l)-1] = indicators.Some(v)
}

func strongBullSet() *indicators.Set {
	set := blankSet()
	setLast(set.SMA20, 95)
	setLast(set.SMA50, 90)
	setLast(set.RSI, 60)
	set.MACDHist[n-4] = indicators.Some(0.2)
	setLast(set.MACDHist, 0.5)
	setLast(set.MACD, 1)
	setLast(set.MACDSignal, 0.5)
	setLast(set.VolumeSMA, 1000)
	setLast(set.BBUpper, 130)
	setLast(set.BBLower, 95)
	return set
}

func TestScorer_AllBucketsMaxed(t *testing.T) {
	got := NewScorer().Score(lastCandle(100, 2000), strongBullSet(), analysis.Bullish)
	want := analysis.Breakdown{Trend: 25, Technical: 25, Volume: 20, RiskReward: 15, Momentum: 15, Total: 100}
	if got != want {
		t.Fatalf("Score() = %+v, want %+v", got, want)
	}
}

func TestScorer_BearishMirrorsComparisons(t *testing.T) {
	got := NewScorer().Score(lastCandle(100, 2000), strongBullSet(), analysis.Bearish)
	// RSI 60 mirrors to 40 (10 points); volume is direction-free; the lower
	// band is close so the bearish reward/risk is poor.
	want := analysis.Breakdown{Trend: 0, Technical: 10, Volume: 20, RiskReward: 0, Momentum: 0, Total: 30}
	if got != want {
		t.Fatalf("Score() = %+v, want %+v", got, want)
	}
}

func TestScorer_NeutralScoresAsBullish(t *testing.T) {
	candles := lastCandle(100, 2000)
	s := NewScorer()
	if s.Score(candles, strongBullSet(), analysis.Neutral) != s.Score(candles, strongBullSet(), analysis.Bullish) {
		t.Fatal("neutral direction should score like bullish")
	}
}

func TestScorer_MissingInputsContributeZero(t *testing.T) {
	got := NewScorer().Score(lastCandle(100, 2000), blankSet(), analysis.Bullish)
	if got != (analysis.Breakdown{}) {
		t.Fatalf("Score() = %+v, want zero breakdown", got)
	}
}

func TestScorer_ShortSeries(t *testing.T) {
	candles := lastCandle(100, 2000)[:analysis.MinScoredCandles-1]
	if got := NewScorer().Score(candles, indicators.ComputeSet(candles), analysis.Bullish); got != (analysis.Breakdown{}) {
		t.Fatalf("Score() = %+v, want zero breakdown", got)
	}
}

func TestRiskRewardScore(t *testing.T) {
	tests := []struct {
		name         string
		price        float64
		upper, lower float64
		bearish      bool
		want         int
	}{
		{"three to one", 100, 115, 95, false, 15},
		{"two to one", 100, 110, 95, false, 12},
		{"even", 100, 105, 95, false, 6},
		{"above upper band", 120, 110, 90, false, 0},
		{"below lower band", 80, 110, 90, false, 15},
		{"bearish mirror", 100, 105, 90, true, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := blankSet()
			setLast(set.BBUpper, tt.upper)
			setLast(set.BBLower, tt.lower)
			if got := riskRewardScore(tt.price, set, tt.bearish); got != tt.want {
				t.Errorf("riskRewardScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRSIBand(t *testing.T) {
	tests := map[float64]int{65: 15, 45: 10, 75: 8, 35: 6, 85: 5, 20: 5, 50: 15, 70: 8}
	for rsi, want := range tests {
		if got := rsiBand(rsi); got != want {
			t.Errorf("rsiBand(%v) = %d, want %d", rsi, got, want)
		}
	}
}

// fakeSource serves canned series and records the fetch order.
type fakeSource struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeSource) Fetch(_ context.Context, symbol string, tag models.RangeTag) (*models.Series, error) {
	f.calls = append(f.calls, symbol)
	if f.fail[symbol] {
		return nil, fmt.Errorf("%s: upstream down", symbol)
	}
	return &models.Series{Symbol: symbol, Range: tag, Candles: lastCandle(100, 1000), Live: true}, nil
}

// fakeAnalyzer returns a report whose confidence is looked up by symbol.
type fakeAnalyzer struct {
	confidence map[string]int
	benchmarks int
}

func (f *fakeAnalyzer) Compose(series *models.Series, benchmark []models.Candle) *analysis.Report {
	if benchmark != nil {
		f.benchmarks++
	}
	return &analysis.Report{Symbol: series.Symbol, Confidence: f.confidence[series.Symbol]}
}

func TestScreener_SequentialRankedWithDelay(t *testing.T) {
	src := &fakeSource{fail: map[string]bool{"BAD": true}}
	an := &fakeAnalyzer{confidence: map[string]int{"AAA": 40, "BBB": 80, "CCC": 60}}
	s := NewScreener(src, an, WithDelay(time.Second))
	var sleeps int
	s.sleep = func(context.Context, time.Duration) error { sleeps++; return nil }

	results, err := s.Scan(context.Background(), []string{"AAA", "BAD", "BBB", "CCC"}, models.Range3M)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !reflect.DeepEqual(src.calls, []string{"AAA", "BAD", "BBB", "CCC"}) {
		t.Fatalf("fetch order = %v", src.calls)
	}
	if sleeps != 3 {
		t.Fatalf("slept %d times, want 3", sleeps)
	}
	var order []string
	for _, r := range results {
		order = append(order, r.Symbol)
	}
	if !reflect.DeepEqual(order, []string{"BBB", "CCC", "AAA", "BAD"}) {
		t.Fatalf("ranked order = %v", order)
	}
	if results[3].Err == nil || results[3].Report != nil {
		t.Fatalf("failed symbol should carry its error: %+v", results[3])
	}
}

func TestScreener_BenchmarkAndMinConfidence(t *testing.T) {
	src := &fakeSource{}
	an := &fakeAnalyzer{confidence: map[string]int{"AAA": 40, "BBB": 80}}
	s := NewScreener(src, an, WithBenchmark("SPY"), WithMinConfidence(50))
	var sleeps int
	s.sleep = func(context.Context, time.Duration) error { sleeps++; return nil }

	results, err := s.Scan(context.Background(), []string{"AAA", "BBB"}, models.Range1M)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if src.calls[0] != "SPY" || sleeps != 2 {
		t.Fatalf("calls=%v sleeps=%d", src.calls, sleeps)
	}
	if an.benchmarks != 2 {
		t.Fatalf("benchmark passed %d times, want 2", an.benchmarks)
	}
	if len(results) != 1 || results[0].Symbol != "BBB" {
		t.Fatalf("results = %+v", results)
	}
}

func TestScreener_CancellationReturnsPartialResults(t *testing.T) {
	src := &fakeSource{}
	an := &fakeAnalyzer{confidence: map[string]int{}}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScreener(src, an)
	s.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	results, err := s.Scan(ctx, []string{"AAA", "BBB", "CCC"}, models.Range1M)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan() error = %v, want context.Canceled", err)
	}
	if len(results) != 1 || results[0].Symbol != "AAA" {
		t.Fatalf("results = %+v", results)
	}
}
