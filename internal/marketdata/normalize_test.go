package marketdata

import (
	"math"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t0 := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	bars := []Bar{
		{Time: t0.Add(10 * time.Minute), Open: F(101.004), High: F(101.5), Low: F(100.9), Close: F(101.256), Volume: F(300)},
		{Time: t0, Open: F(100), High: F(100.5), Low: F(99.5), Close: F(100.2)},
		{Time: t0.Add(5 * time.Minute), Open: F(100.2), High: nil, Low: F(99), Close: F(100)},
		{Time: t0.Add(15 * time.Minute), Open: F(0), High: F(1), Low: F(1), Close: F(1)},
		{Time: t0.Add(20 * time.Minute), Open: F(math.NaN()), High: F(1), Low: F(1), Close: F(1)},
		{Time: t0.Add(10*time.Minute + 300*time.Millisecond), Open: F(102), High: F(101), Low: F(103), Close: F(102.5), Volume: F(-4)},
	}

	got := Normalize(bars)
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2: %+v", len(got), got)
	}

	first := got[0]
	if !first.Timestamp.Equal(t0) || first.Volume != 0 {
		t.Errorf("first = %+v, want t0 with zero volume", first)
	}

	// The duplicate timestamp keeps the later bar, with high/low repaired.
	last := got[1]
	if !last.Timestamp.Equal(t0.Add(10 * time.Minute)) {
		t.Errorf("last timestamp = %v", last.Timestamp)
	}
	if last.Open != 102 || last.Close != 102.5 {
		t.Errorf("last = %+v, want the later duplicate", last)
	}
	if last.High < 103 || last.Low > 101 {
		t.Errorf("high/low not repaired: %+v", last)
	}
	if last.Volume != 0 {
		t.Errorf("negative volume kept: %d", last.Volume)
	}
}

func TestNormalize_RoundsToCents(t *testing.T) {
	got := Normalize([]Bar{{Time: time.Unix(1700000000, 0), Open: F(1.005), High: F(2.3449), Low: F(0.994), Close: F(1.999)}})
	if len(got) != 1 {
		t.Fatalf("got %d candles", len(got))
	}
	c := got[0]
	if c.High != 2.34 || c.Low != 0.99 || c.Close != 2 {
		t.Errorf("rounded candle = %+v", c)
	}
}

func TestNewSeries(t *testing.T) {
	plan := NewPlanner(nil).Plan("1-month", testNow)
	candles := Normalize([]Bar{
		{Time: testNow.AddDate(0, 0, -1), Open: F(10), High: F(11), Low: F(9), Close: F(10.5)},
		{Time: testNow, Open: F(10.5), High: F(12), Low: F(10), Close: F(11.75)},
	})
	s := NewSeries("AAPL", plan, Polygon, candles, testNow)
	if !s.Live || s.Source != "polygon" || s.LastPrice != 11.75 || s.Range != plan.Tag {
		t.Errorf("series = %+v", s)
	}
	if NormalizeSymbol("  msft ") != "MSFT" {
		t.Error("NormalizeSymbol did not trim and upper-case")
	}
}
