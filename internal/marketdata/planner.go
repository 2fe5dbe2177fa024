// Package marketdata acquires normalized price series from an ordered chain of
// providers: it plans the resolution for a range, filters the returned
// candles, caches fresh series and falls back across providers.
package marketdata

import (
	"time"

	"price-analyst/internal/models"
)

// Class splits ranges into intraday and daily provider orders.
type Class string

const (
	ClassIntraday Class = "intraday"
	ClassDaily    Class = "daily"
)

// Granularity is the candle size requested from a provider.
type Granularity string

const (
	Gran5Min  Granularity = "5m"
	Gran30Min Granularity = "30m"
	GranDay   Granularity = "1d"
	GranWeek  Granularity = "1w"
	GranMonth Granularity = "1mo"
)

// Duration returns the nominal candle length. Months count as 30 days.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Gran5Min:
		return 5 * time.Minute
	case Gran30Min:
		return 30 * time.Minute
	case GranWeek:
		return 7 * 24 * time.Hour
	case GranMonth:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Intraday reports whether the granularity is shorter than a day.
func (g Granularity) Intraday() bool {
	return g == Gran5Min || g == Gran30Min
}

// Plan is the resolution strategy for one range at one instant.
type Plan struct {
	Tag           models.RangeTag
	Class         Class
	Granularity   Granularity
	Lookback      time.Duration
	ExpectedCount int
	From          time.Time
	To            time.Time
	Filter        Filter
	Location      *time.Location
}

// Apply runs the plan's filter over candles.
func (p Plan) Apply(candles []models.Candle) []models.Candle {
	return p.Filter.Apply(candles, p.Location)
}

// Planner maps range tags to plans. It is stateless apart from the location
// used to decide calendar days and the start of the year.
type Planner struct {
	loc *time.Location
}

// NewPlanner creates a planner for the given market location. A nil location
// means UTC.
func NewPlanner(loc *time.Location) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{loc: loc}
}

// Location returns the planner's location.
func (p *Planner) Location() *time.Location {
	return p.loc
}

// Plan returns the plan for tag at now. Unknown tags fall back to
// models.DefaultRange.
func (p *Planner) Plan(tag models.RangeTag, now time.Time) Plan {
	if !tag.Valid() {
		tag = models.DefaultRange
	}
	now = now.In(p.loc)
	plan := Plan{Tag: tag, Class: ClassDaily, Granularity: GranDay, To: now, Location: p.loc}
	days := func(d int) time.Time { return now.AddDate(0, 0, -d) }

	switch tag {
	case models.Range1D:
		plan.Class, plan.Granularity = ClassIntraday, Gran5Min
		plan.From, plan.ExpectedCount = days(7), 78
		plan.Filter = Filter{Policy: FilterLatestDay}
	case models.Range1W:
		plan.Class, plan.Granularity = ClassIntraday, Gran30Min
		plan.From, plan.ExpectedCount = days(14), 65
		plan.Filter = Filter{Policy: FilterLastNDays, N: 5}
	case models.Range1M:
		plan.From, plan.ExpectedCount = days(45), 22
		plan.Filter = Filter{Policy: FilterLastN, N: 22}
	case models.Range3M:
		plan.From, plan.ExpectedCount = days(100), 63
		plan.Filter = Filter{Policy: FilterLastN, N: 63}
	case models.Range6M:
		plan.From, plan.ExpectedCount = days(190), 126
		plan.Filter = Filter{Policy: FilterLastN, N: 126}
	case models.RangeYTD:
		jan1 := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, p.loc)
		plan.From = jan1
		plan.Filter = Filter{Policy: FilterSinceCutoff, Cutoff: jan1}
	case models.Range1Y:
		plan.From, plan.ExpectedCount = days(370), 252
		plan.Filter = Filter{Policy: FilterLastN, N: 252}
	case models.Range5Y:
		plan.Granularity = GranWeek
		plan.From, plan.ExpectedCount = now.AddDate(-5, 0, -7), 260
		plan.Filter = Filter{Policy: FilterSinceCutoff, Cutoff: now.AddDate(-5, 0, 0)}
	case models.RangeAll:
		plan.Granularity = GranMonth
		plan.From, plan.ExpectedCount = now.AddDate(-30, 0, 0), 360
		plan.Filter = Filter{Policy: FilterAll}
	}
	plan.Lookback = plan.To.Sub(plan.From)
	return plan
}
