package mtf

import (
	"context"
	"errors"
	"strings"
	"testing"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/scoring"
	"price-analyst/internal/models"
)

// verdicts maps a range to the report the fake composer returns for it.
type verdicts map[models.RangeTag]analysis.Report

func (v verdicts) Compose(series *models.Series, _ []models.Candle) *analysis.Report {
	r := v[series.Range]
	r.Range = series.Range
	r.Live = series.Live
	return &r
}

func sourceFor(failing ...models.RangeTag) scoring.SeriesSource {
	return scoring.SeriesSourceFunc(func(_ context.Context, symbol string, tag models.RangeTag) (*models.Series, error) {
		for _, f := range failing {
			if f == tag {
				return nil, errors.New("all sources failed")
			}
		}
		return &models.Series{Symbol: symbol, Range: tag, Live: true}, nil
	})
}

func bull(c int) analysis.Report { return analysis.Report{Signal: analysis.SignalBullish, Confidence: c} }
func bear(c int) analysis.Report { return analysis.Report{Signal: analysis.SignalBearish, Confidence: c} }

func TestAnalyze_Confluence(t *testing.T) {
	tests := []struct {
		name       string
		verdicts   verdicts
		want       ConfluenceLevel
		wantSignal analysis.Signal
		aligned    bool
	}{
		{
			name:       "all bullish",
			verdicts:   verdicts{models.Range1D: bull(60), models.Range1W: bull(70), models.Range3M: bull(80), models.Range1Y: bull(75)},
			want:       ConfluenceStrong,
			wantSignal: analysis.SignalBullish,
			aligned:    true,
		},
		{
			name:       "three bearish",
			verdicts:   verdicts{models.Range1D: bull(60), models.Range1W: bear(70), models.Range3M: bear(80), models.Range1Y: bear(75)},
			want:       ConfluenceModerate,
			wantSignal: analysis.SignalBearish,
			aligned:    true,
		},
		{
			name:       "split",
			verdicts:   verdicts{models.Range1D: bull(60), models.Range1W: bear(60), models.Range3M: bear(60), models.Range1Y: bull(60)},
			want:       ConfluenceWeak,
			wantSignal: analysis.SignalNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(sourceFor(), tt.verdicts)
			got, err := a.Analyze(context.Background(), "AAPL")
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got.Confluence != tt.want || got.OverallSignal != tt.wantSignal || got.TrendAlignment != tt.aligned {
				t.Errorf("Analyze() = %s/%s/%v (score %.1f), want %s/%s/%v",
					got.Confluence, got.OverallSignal, got.TrendAlignment, got.OverallScore, tt.want, tt.wantSignal, tt.aligned)
			}
			if !got.Live {
				t.Error("Live = false for live ranges")
			}
		})
	}
}

func TestAnalyze_WeightsFavourLongerRanges(t *testing.T) {
	v := verdicts{models.Range1D: bear(60), models.Range1Y: bull(60)}
	a := NewAnalyzer(sourceFor(), v, WithRanges(models.Range1D, models.Range1Y))

	got, err := a.Analyze(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	// (60*0.35 - 60*0.15) / 0.5 = 24
	if got.OverallScore < 23.9 || got.OverallScore > 24.1 || got.OverallSignal != analysis.SignalBullish {
		t.Errorf("OverallScore = %.2f, signal %s", got.OverallScore, got.OverallSignal)
	}
}

func TestAnalyze_PartialFailure(t *testing.T) {
	v := verdicts{models.Range3M: bull(70), models.Range1Y: bull(65)}
	a := NewAnalyzer(sourceFor(models.Range1D, models.Range1W), v)

	got, err := a.Analyze(context.Background(), "INFY.NS")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Ranges[models.Range1D].Err == nil || got.Ranges[models.Range1W].Err == nil {
		t.Error("failed ranges not recorded")
	}
	if got.BullishCount != 2 || got.Confluence != ConfluenceWeak {
		t.Errorf("counts = %d bullish, confluence %s", got.BullishCount, got.Confluence)
	}
	if !strings.Contains(got.FormatResult(), "N/A") {
		t.Error("FormatResult() does not mark failed ranges")
	}

	if _, err := NewAnalyzer(sourceFor(DefaultRanges()...), v).Analyze(context.Background(), "X"); err == nil {
		t.Error("Analyze() succeeded with every range failing")
	}
}

func TestAnalyze_IgnoresInsufficientReports(t *testing.T) {
	v := verdicts{
		models.Range1D: {Signal: analysis.SignalNeutral, Pattern: analysis.PatternInsufficientData},
		models.Range3M: bull(55),
	}
	got := NewAnalyzer(sourceFor(), v, WithRanges(models.Range1D, models.Range3M)).
		AnalyzeSeries("AAPL", map[models.RangeTag]*models.Series{
			models.Range1D: {Range: models.Range1D},
			models.Range3M: {Range: models.Range3M, Live: true},
		})

	if got.NeutralCount != 0 || got.BullishCount != 1 {
		t.Errorf("counts = %d/%d/%d", got.BullishCount, got.BearishCount, got.NeutralCount)
	}
	if got.Confluence != ConfluenceNone {
		t.Errorf("Confluence = %s, want NONE for a single range", got.Confluence)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAnalyzer(sourceFor(), verdicts{}).Analyze(ctx, "AAPL"); !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}
