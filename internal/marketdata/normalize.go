package marketdata

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price-analyst/internal/models"
)

// pricePlaces is the rounding applied to every normalized price.
const pricePlaces = 2

// Bar is one provider bar before normalization. Nil prices mark bars the
// provider reported as missing; a nil volume becomes 0.
type Bar struct {
	Time   time.Time
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64
}

// F returns a pointer to v for building bars.
func F(v float64) *float64 {
	return &v
}

// Normalize turns provider bars into candles: it drops bars with missing or
// non-positive prices, rounds prices to 2 decimals, repairs high/low so they
// bound open and close, truncates timestamps to seconds, sorts ascending and
// keeps the last bar for duplicate timestamps.
func Normalize(bars []Bar) []models.Candle {
	out := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		if !usable(b.Open) || !usable(b.High) || !usable(b.Low) || !usable(b.Close) || b.Time.IsZero() {
			continue
		}
		o, h, l, c := round(*b.Open), round(*b.High), round(*b.Low), round(*b.Close)
		var vol int64
		if b.Volume != nil && *b.Volume > 0 && !math.IsInf(*b.Volume, 0) {
			vol = int64(math.Round(*b.Volume))
		}
		out = append(out, models.Candle{
			Timestamp: b.Time.Truncate(time.Second),
			Open:      o,
			High:      max(h, o, c, l),
			Low:       min(l, o, c, h),
			Close:     c,
			Volume:    vol,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	deduped := out[:0]
	for _, c := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(c.Timestamp) {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}
	return deduped
}

func usable(p *float64) bool {
	return p != nil && *p > 0 && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(pricePlaces).InexactFloat64()
}

// NewSeries builds a live series from normalized candles.
func NewSeries(symbol string, plan Plan, source ProviderID, candles []models.Candle, fetchedAt time.Time) *models.Series {
	s := &models.Series{
		Symbol:    symbol,
		Range:     plan.Tag,
		Source:    string(source),
		Candles:   candles,
		Live:      true,
		FetchedAt: fetchedAt,
	}
	if len(candles) > 0 {
		s.LastPrice = candles[len(candles)-1].Close
	}
	return s
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
