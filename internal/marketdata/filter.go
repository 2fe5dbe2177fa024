package marketdata

import (
	"time"

	"price-analyst/internal/models"
)

// FilterPolicy selects which candles of a provider reply are kept.
type FilterPolicy string

const (
	FilterLatestDay   FilterPolicy = "latest-trading-day"
	FilterLastNDays   FilterPolicy = "last-n-trading-days"
	FilterSinceCutoff FilterPolicy = "since-cutoff"
	FilterLastN       FilterPolicy = "last-n-candles"
	FilterAll         FilterPolicy = "keep-all"
)

// Filter is a policy plus its parameter.
type Filter struct {
	Policy FilterPolicy
	N      int
	Cutoff time.Time
}

// Apply returns the kept candles. candles must be sorted ascending; the
// result shares the backing array. Calendar days are taken in loc.
func (f Filter) Apply(candles []models.Candle, loc *time.Location) []models.Candle {
	if len(candles) == 0 {
		return candles
	}
	if loc == nil {
		loc = time.UTC
	}

	switch f.Policy {
	case FilterLatestDay:
		return lastDays(candles, 1, loc)
	case FilterLastNDays:
		return lastDays(candles, f.N, loc)
	case FilterLastN:
		if f.N > 0 && len(candles) > f.N {
			return candles[len(candles)-f.N:]
		}
		return candles
	case FilterSinceCutoff:
		for i, c := range candles {
			if !c.Timestamp.Before(f.Cutoff) {
				return candles[i:]
			}
		}
		return candles[:0]
	default:
		return candles
	}
}

type day struct {
	y int
	m time.Month
	d int
}

func dayOf(t time.Time, loc *time.Location) day {
	y, m, d := t.In(loc).Date()
	return day{y, m, d}
}

// lastDays keeps the candles that fall on the n most recent distinct
// calendar days present in the series.
func lastDays(candles []models.Candle, n int, loc *time.Location) []models.Candle {
	if n <= 0 {
		return candles
	}
	seen := 0
	current := dayOf(candles[len(candles)-1].Timestamp, loc)
	for i := len(candles) - 1; i >= 0; i-- {
		d := dayOf(candles[i].Timestamp, loc)
		if d != current {
			seen++
			current = d
		}
		if seen == n {
			return candles[i+1:]
		}
	}
	return candles
}
