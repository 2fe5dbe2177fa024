package report

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"price-analyst/internal/analysis"
	"price-analyst/internal/models"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedComposer() *Composer {
	return NewComposer(
		WithClock(func() time.Time { return testStart }),
		WithIDFunc(func() string { return "report-1" }),
	)
}

func seriesOf(candles []models.Candle) *models.Series {
	s := &models.Series{
		Symbol:  "TEST",
		Range:   models.Range6M,
		Source:  "fixture",
		Candles: candles,
		Live:    true,
	}
	if len(candles) > 0 {
		s.LastPrice = candles[len(candles)-1].Close
	}
	return s
}

func rising(n int, growth float64) []models.Candle {
	out := make([]models.Candle, n)
	price := 100.0
	for i := range out {
		next := price * (1 + growth)
		out[i] = models.Candle{
			Timestamp: testStart.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price, High: math.Max(price, next), Low: math.Min(price, next), Close: next,
			Volume: 1000,
		}
		price = next
	}
	return out
}

func flat(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: testStart.Add(time.Duration(i) * 24 * time.Hour),
			Open:      100, High: 100, Low: 100, Close: 100,
			Volume: 1000,
		}
	}
	return out
}

func TestCompose_InsufficientData(t *testing.T) {
	r := fixedComposer().Compose(seriesOf(rising(4, 0.01)), nil)
	if !r.Insufficient() || r.Signal != analysis.SignalNeutral || r.Confidence != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.ID != "report-1" || !r.GeneratedAt.Equal(testStart) || r.Candles != 4 {
		t.Fatalf("report metadata not set: %+v", r)
	}
	if r.Narrative == "" || len(r.Reasoning) == 0 {
		t.Fatal("insufficient report should still explain itself")
	}
	if r.Supports == nil || r.Setups == nil || r.Trace == nil {
		t.Fatal("collections should be empty, not nil")
	}
}

func TestCompose_Uptrend(t *testing.T) {
	r := fixedComposer().Compose(seriesOf(rising(120, 0.005)), nil)

	if r.Signal != analysis.SignalBullish {
		t.Fatalf("signal = %s, want BULLISH", r.Signal)
	}
	if r.Pattern != analysis.PatternMomentumBreakout && r.Pattern != analysis.PatternAscendingChannel {
		t.Fatalf("pattern = %q", r.Pattern)
	}
	if r.Confidence < 60 {
		t.Fatalf("confidence = %d, want at least 60 (breakdown %+v)", r.Confidence, r.Breakdown)
	}
	if r.Breakdown.Trend != 25 || r.Breakdown.Momentum != 15 {
		t.Fatalf("unexpected breakdown %+v", r.Breakdown)
	}
	if r.Snapshot.RSI == nil || *r.Snapshot.RSI != 100 {
		t.Fatalf("snapshot RSI = %v, want 100", r.Snapshot.RSI)
	}
	if r.NarrativeSource != analysis.NarrativeRuleBased || r.Narrative == "" {
		t.Fatalf("narrative missing: %q (%s)", r.Narrative, r.NarrativeSource)
	}
	if first, last := r.Trace[0], r.Trace[len(r.Trace)-1]; first.Index != 0 || last.Index != 119 {
		t.Fatalf("trace not anchored: %+v", r.Trace)
	}
}

func TestCompose_HundredDayDrift(t *testing.T) {
	// Volume is pinned; a zero-volume series scores below 60.
	candles := rising(100, 0.005)
	for i := range candles {
		candles[i].Volume = 1000
	}
	r := fixedComposer().Compose(seriesOf(candles), nil)

	if r.Signal != analysis.SignalBullish {
		t.Fatalf("signal = %s, want BULLISH", r.Signal)
	}
	if r.Pattern != analysis.PatternMomentumBreakout && r.Pattern != analysis.PatternAscendingChannel {
		t.Fatalf("pattern = %q", r.Pattern)
	}
	if r.Confidence < 60 {
		t.Fatalf("confidence = %d, want at least 60 (breakdown %+v)", r.Confidence, r.Breakdown)
	}
	if r.Candles != 100 {
		t.Errorf("candles = %d", r.Candles)
	}
}

func TestCompose_Downtrend(t *testing.T) {
	r := fixedComposer().Compose(seriesOf(rising(120, -0.005)), nil)
	if r.Signal != analysis.SignalBearish {
		t.Fatalf("signal = %s, want BEARISH", r.Signal)
	}
	if r.Pattern != analysis.PatternMomentumBreakdown && r.Pattern != analysis.PatternDescendingChannel {
		t.Fatalf("pattern = %q", r.Pattern)
	}
	if r.Breakdown.Trend != 25 {
		t.Fatalf("bearish trend bucket = %d, want 25", r.Breakdown.Trend)
	}
}

func TestCompose_FlatSeries(t *testing.T) {
	r := fixedComposer().Compose(seriesOf(flat(60)), nil)
	if r.Signal != analysis.SignalNeutral {
		t.Fatalf("signal = %s, want NEUTRAL", r.Signal)
	}
	if r.Pattern != analysis.PatternConsolidation {
		t.Fatalf("pattern = %q, want Consolidation", r.Pattern)
	}
	if r.Snapshot.RSI == nil || *r.Snapshot.RSI != 50 {
		t.Fatalf("flat RSI = %v, want 50", r.Snapshot.RSI)
	}
	if r.Confidence >= 50 {
		t.Fatalf("flat series confidence = %d, want below 50", r.Confidence)
	}
}

func TestCompose_ConfidenceTakesPrimarySetupWhenHigher(t *testing.T) {
	candles := flat(60)
	// Four red candles drive RSI into oversold, then a green candle prints
	// on heavier volume.
	for i := 55; i < 59; i++ {
		c := candles[i-1].Close - 3
		candles[i] = models.Candle{Timestamp: candles[i].Timestamp, Open: c + 3, High: c + 3, Low: c, Close: c, Volume: 1000}
	}
	candles[59] = models.Candle{Timestamp: candles[59].Timestamp, Open: 88, High: 89.5, Low: 87.5, Close: 89, Volume: 1500}

	r := fixedComposer().Compose(seriesOf(candles), nil)
	if r.PrimarySetup == nil {
		t.Fatalf("expected a primary setup, reasoning: %v", r.Reasoning)
	}
	want := max(r.Breakdown.Total, r.PrimarySetup.Confidence)
	if r.Confidence != want {
		t.Fatalf("confidence = %d, want max(%d, %d)", r.Confidence, r.Breakdown.Total, r.PrimarySetup.Confidence)
	}
}

func TestCompose_RelativeStrength(t *testing.T) {
	r := fixedComposer().Compose(seriesOf(rising(60, 0.01)), flat(60))
	if r.Snapshot.RelStrength == nil || *r.Snapshot.RelStrength <= 0 {
		t.Fatalf("relative strength = %v, want positive", r.Snapshot.RelStrength)
	}
}

func TestCompose_NotLiveNarrative(t *testing.T) {
	s := seriesOf(rising(60, 0.01))
	s.Live = false
	r := fixedComposer().Compose(s, nil)
	if r.Live {
		t.Fatal("report should carry the non-live flag")
	}
	if !strings.HasSuffix(r.Narrative, "Data is not live.") {
		t.Fatalf("narrative should flag non-live data: %q", r.Narrative)
	}
}

func TestProperty_ComposeNeverEmpty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	composer := fixedComposer()

	properties.Property("series with at least 5 candles always get a full report", prop.ForAll(
		func(walk []float64, size int) bool {
			steps := walk[:min(size, len(walk))]
			if len(steps) < analysis.MinCandles {
				return true
			}
			candles := make([]models.Candle, len(steps))
			price := 100.0
			for i, s := range steps {
				open := price
				price = math.Max(1, price+s)
				candles[i] = models.Candle{
					Timestamp: testStart.Add(time.Duration(i) * time.Hour),
					Open:      open,
					High:      math.Max(open, price) + 0.2,
					Low:       math.Max(0.5, math.Min(open, price)-0.2),
					Close:     price,
					Volume:    int64(500 + i%11*150),
				}
			}
			r := composer.Compose(seriesOf(candles), nil)
			if r.Insufficient() || r.Narrative == "" || len(r.Reasoning) == 0 {
				return false
			}
			if r.Confidence < 0 || r.Confidence > 100 {
				return false
			}
			if len(r.Supports) == 0 || len(r.Resistances) == 0 {
				return false
			}
			return len(r.Trace) >= 2 && len(r.Trace) <= 12
		},
		gen.SliceOfN(150, gen.Float64Range(-2, 2)),
		gen.IntRange(analysis.MinCandles, 150),
	))

	properties.TestingRun(t)
}
