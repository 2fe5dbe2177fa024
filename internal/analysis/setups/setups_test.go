package setups

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/indicators"
	"price-analyst/internal/models"
)

const n = 60

func flatSeries(last models.Candle) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      100, High: 100.2, Low: 99.8, Close: 100,
			Volume: 1000,
		}
	}
	last.Timestamp = out[n-1].Timestamp
	out[n-1] = last
	return out
}

// emptySet returns a set whose lines are all null except a volume average of 1000.
func emptySet() *indicators.Set {
	null := func() indicators.Line { return make(indicators.Line, n) }
	set := &indicators.Set{
		RSI: null(), SMA20: null(), SMA50: null(), SMA200: null(),
		EMA12: null(), EMA26: null(), MACD: null(), MACDSignal: null(), MACDHist: null(),
		BBUpper: null(), BBMiddle: null(), BBLower: null(), BBWidth: null(),
		ATR: null(), VolumeSMA: null(), High20: null(), Low20: null(),
	}
	for i := range set.VolumeSMA {
		set.VolumeSMA[i] = indicators.Some(1000)
	}
	return set
}

func setLast(l indicators.Line, v float64) {
	l[len(l)-1] = indicators.Some(v)
}

func only(t *testing.T, findings []analysis.Setup, want analysis.SetupType, dir analysis.Direction, conf int) {
	t.Helper()
	if len(findings) != 1 {
		t.Fatalf("got %d findings %+v, want exactly one %s", len(findings), findings, want)
	}
	f := findings[0]
	if f.Type != want || f.Direction != dir || f.Confidence != conf {
		t.Fatalf("got %+v, want %s/%s/%d", f, want, dir, conf)
	}
	if f.Description == "" {
		t.Fatal("finding has no description")
	}
}

func TestDetect_ShortSeriesYieldsNothing(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000})[:analysis.MinScoredCandles-1]
	if got := NewDetector().Detect(candles, indicators.ComputeSet(candles)); got != nil {
		t.Fatalf("expected no findings, got %+v", got)
	}
}

func TestDetect_Breakout(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 100, High: 100.6, Low: 99.9, Close: 100.5, Volume: 2000})
	set := emptySet()
	setLast(set.High20, 101)
	setLast(set.RSI, 60)
	only(t, NewDetector().Detect(candles, set), analysis.SetupBreakout, analysis.Bullish, 75)
}

func TestDetect_BreakoutRejectedWhenOverbought(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 100, High: 100.6, Low: 99.9, Close: 100.5, Volume: 2000})
	set := emptySet()
	setLast(set.High20, 101)
	setLast(set.RSI, 72)
	for _, f := range NewDetector().Detect(candles, set) {
		if f.Type == analysis.SetupBreakout {
			t.Fatalf("breakout should require RSI below 70: %+v", f)
		}
	}
}

func TestDetect_Pullback(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 100.2, High: 100.3, Low: 99.6, Close: 100, Volume: 1000})
	set := emptySet()
	setLast(set.SMA20, 100.5)
	setLast(set.SMA50, 99)
	setLast(set.SMA200, 97)
	setLast(set.RSI, 45)
	only(t, NewDetector().Detect(candles, set), analysis.SetupPullback, analysis.Bullish, 76)

	setLast(set.SMA200, 99.5)
	if got := NewDetector().Detect(candles, set); len(got) != 0 {
		t.Fatalf("SMA50 below SMA200 should block the pullback, got %+v", got)
	}
}

func TestDetect_Squeeze(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 100, High: 100.6, Low: 99.9, Close: 100.5, Volume: 1500})
	set := emptySet()
	for i := 0; i < n-1; i++ {
		set.BBWidth[i] = indicators.Some(6)
	}
	setLast(set.BBWidth, 3)
	setLast(set.BBMiddle, 99)
	only(t, NewDetector().Detect(candles, set), analysis.SetupSqueeze, analysis.Bullish, 81)
}

func TestDetect_VolumeClimax(t *testing.T) {
	hammer := models.Candle{Open: 100, High: 100.6, Low: 97, Close: 100.4, Volume: 3000}
	candles := flatSeries(hammer)
	set := emptySet()
	setLast(set.RSI, 35)
	only(t, NewDetector().Detect(candles, set), analysis.SetupVolumeClimax, analysis.Bullish, 70)
}

func TestDetect_MACDCrossover(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 99.5, High: 100.2, Low: 99.4, Close: 100, Volume: 1000})
	set := emptySet()
	set.MACDHist[n-2] = indicators.Some(-0.1)
	setLast(set.MACDHist, 0.2)
	setLast(set.SMA50, 99)
	only(t, NewDetector().Detect(candles, set), analysis.SetupMACDCrossover, analysis.Bullish, 75)

	set.MACDHist[n-2] = indicators.Some(0.05)
	if got := NewDetector().Detect(candles, set); len(got) != 0 {
		t.Fatalf("no sign flip, expected nothing, got %+v", got)
	}
}

func TestDetect_OversoldBounce(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 99.5, High: 100.2, Low: 99.4, Close: 100, Volume: 1000})
	set := emptySet()
	setLast(set.RSI, 25)
	only(t, NewDetector().Detect(candles, set), analysis.SetupOversoldBounce, analysis.Bullish, 58)
}

func TestDetect_OverboughtReversal(t *testing.T) {
	candles := flatSeries(models.Candle{Open: 100.5, High: 100.6, Low: 99.9, Close: 100, Volume: 1500})
	set := emptySet()
	setLast(set.RSI, 80)
	only(t, NewDetector().Detect(candles, set), analysis.SetupOverboughtReversal, analysis.Bearish, 75)
}

func TestDetect_FindingsCoexistAndSortByConfidence(t *testing.T) {
	// Overbought red candle that also flips the MACD histogram negative.
	candles := flatSeries(models.Candle{Open: 100.5, High: 100.6, Low: 99.9, Close: 100, Volume: 1500})
	set := emptySet()
	setLast(set.RSI, 90)
	set.MACDHist[n-2] = indicators.Some(0.1)
	setLast(set.MACDHist, -0.1)

	findings := NewDetector().Detect(candles, set)
	if len(findings) != 2 {
		t.Fatalf("expected two findings, got %+v", findings)
	}
	if findings[0].Confidence < findings[1].Confidence {
		t.Fatal("findings not sorted by confidence")
	}
	primary := Primary(findings)
	if primary == nil || primary.Type != analysis.SetupOverboughtReversal || primary.Confidence != 80 {
		t.Fatalf("unexpected primary %+v", primary)
	}
}

func TestPrimary_Empty(t *testing.T) {
	if Primary(nil) != nil {
		t.Fatal("expected nil primary")
	}
}

func TestProperty_ConfidenceWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every finding has confidence in [0, 100]", prop.ForAll(
		func(steps []float64) bool {
			start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			candles := make([]models.Candle, len(steps))
			price := 100.0
			for i, s := range steps {
				open := price
				price = math.Max(1, price+s)
				candles[i] = models.Candle{
					Timestamp: start.Add(time.Duration(i) * time.Hour),
					Open:      open,
					High:      math.Max(open, price) + 0.3,
					Low:       math.Max(0.5, math.Min(open, price)-0.3),
					Close:     price,
					Volume:    int64(1000 + (i%7)*400),
				}
			}
			for _, f := range NewDetector().Detect(candles, indicators.ComputeSet(candles)) {
				if f.Confidence < 0 || f.Confidence > 100 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(120, gen.Float64Range(-2, 2)),
	))

	properties.TestingRun(t)
}
