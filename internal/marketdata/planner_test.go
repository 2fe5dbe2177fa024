package marketdata

import (
	"testing"
	"time"

	"price-analyst/internal/models"
)

var testNow = time.Date(2024, 3, 15, 15, 30, 0, 0, time.UTC)

func TestPlanner_RangeTable(t *testing.T) {
	p := NewPlanner(nil)

	tests := []struct {
		tag      models.RangeTag
		class    Class
		gran     Granularity
		expected int
		policy   FilterPolicy
		n        int
	}{
		{models.Range1D, ClassIntraday, Gran5Min, 78, FilterLatestDay, 0},
		{models.Range1W, ClassIntraday, Gran30Min, 65, FilterLastNDays, 5},
		{models.Range1M, ClassDaily, GranDay, 22, FilterLastN, 22},
		{models.Range3M, ClassDaily, GranDay, 63, FilterLastN, 63},
		{models.Range6M, ClassDaily, GranDay, 126, FilterLastN, 126},
		{models.RangeYTD, ClassDaily, GranDay, 0, FilterSinceCutoff, 0},
		{models.Range1Y, ClassDaily, GranDay, 252, FilterLastN, 252},
		{models.Range5Y, ClassDaily, GranWeek, 260, FilterSinceCutoff, 0},
		{models.RangeAll, ClassDaily, GranMonth, 360, FilterAll, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			plan := p.Plan(tt.tag, testNow)
			if plan.Tag != tt.tag {
				t.Errorf("Tag = %s", plan.Tag)
			}
			if plan.Class != tt.class {
				t.Errorf("Class = %s, want %s", plan.Class, tt.class)
			}
			if plan.Granularity != tt.gran {
				t.Errorf("Granularity = %s, want %s", plan.Granularity, tt.gran)
			}
			if plan.ExpectedCount != tt.expected {
				t.Errorf("ExpectedCount = %d, want %d", plan.ExpectedCount, tt.expected)
			}
			if plan.Filter.Policy != tt.policy || plan.Filter.N != tt.n {
				t.Errorf("Filter = %+v, want %s/%d", plan.Filter, tt.policy, tt.n)
			}
			if !plan.To.Equal(testNow) {
				t.Errorf("To = %v", plan.To)
			}
			if plan.Lookback != plan.To.Sub(plan.From) {
				t.Errorf("Lookback %v does not match From/To", plan.Lookback)
			}
		})
	}
}

func TestPlanner_UnknownTagFallsBack(t *testing.T) {
	plan := NewPlanner(nil).Plan(models.RangeTag("fortnight"), testNow)
	if plan.Tag != models.DefaultRange {
		t.Errorf("Tag = %s, want %s", plan.Tag, models.DefaultRange)
	}
	if plan.ExpectedCount != 63 {
		t.Errorf("ExpectedCount = %d, want 63", plan.ExpectedCount)
	}
}

func TestPlanner_CutoffRanges(t *testing.T) {
	p := NewPlanner(nil)

	ytd := p.Plan(models.RangeYTD, testNow)
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !ytd.From.Equal(jan1) || !ytd.Filter.Cutoff.Equal(jan1) {
		t.Errorf("ytd From=%v Cutoff=%v, want %v", ytd.From, ytd.Filter.Cutoff, jan1)
	}

	five := p.Plan(models.Range5Y, testNow)
	if want := testNow.AddDate(-5, 0, 0); !five.Filter.Cutoff.Equal(want) {
		t.Errorf("5y cutoff = %v, want %v", five.Filter.Cutoff, want)
	}
	if !five.From.Before(five.Filter.Cutoff) {
		t.Errorf("5y From %v should precede cutoff %v", five.From, five.Filter.Cutoff)
	}
}

func TestPlanner_Location(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	p := NewPlanner(loc)
	plan := p.Plan(models.RangeYTD, time.Date(2023, 12, 31, 20, 0, 0, 0, time.UTC))
	// 20:00 UTC on Dec 31 is already Jan 1 in IST.
	if plan.From.Year() != 2024 {
		t.Errorf("ytd From = %v, want Jan 1 2024 IST", plan.From)
	}
	if p.Location() != loc {
		t.Error("Location() did not return the configured zone")
	}
}
