package marketdata

import (
	"hash/fnv"
	"math"
	"time"

	"price-analyst/internal/models"
)

// PlaceholderSource is the source tag of synthetic series.
const PlaceholderSource = "placeholder"

// Placeholder builds a deterministic synthetic series for symbol, used when
// no provider and no archive can supply data. The series is never live. The
// same symbol, range and instant always give the same candles.
func Placeholder(symbol string, tag models.RangeTag, now time.Time) *models.Series {
	return PlaceholderFor(symbol, NewPlanner(time.UTC).Plan(tag, now))
}

// PlaceholderFor builds the synthetic series for an existing plan.
func PlaceholderFor(symbol string, plan Plan) *models.Series {
	symbol = NormalizeSymbol(symbol)
	count := plan.ExpectedCount
	if count == 0 {
		count = int(plan.Lookback/(24*time.Hour)) * 5 / 7
	}
	count = max(count, 30)

	h := fnv.New32a()
	h.Write([]byte(symbol))
	seed := h.Sum32()
	base := 50 + float64(seed%450)
	phase := float64(seed%360) * math.Pi / 180

	step := plan.Granularity.Duration()
	end := plan.To.Truncate(time.Second)
	candles := make([]models.Candle, count)
	for i := range candles {
		p := base * (1 + float64(i-count/2)*0.001 + 0.02*math.Sin(phase+float64(i)/6))
		candles[i] = models.Candle{
			Timestamp: end.Add(-time.Duration(count-1-i) * step),
			Open:      round(p * 0.999),
			High:      round(p * 1.005),
			Low:       round(p * 0.995),
			Close:     round(p),
			Volume:    1_000_000 + int64(seed%500_000),
		}
	}

	return &models.Series{
		Symbol:    symbol,
		Range:     plan.Tag,
		Source:    PlaceholderSource,
		LastPrice: candles[count-1].Close,
		Candles:   candles,
		Live:      false,
		FetchedAt: plan.To,
	}
}
