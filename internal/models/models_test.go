package models

import "testing"

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want RangeTag
		ok   bool
	}{
		{"1d", Range1D, true},
		{"1W", Range1W, true},
		{" 1m ", Range1M, true},
		{"3m", Range3M, true},
		{"6m", Range6M, true},
		{"ytd", RangeYTD, true},
		{"1y", Range1Y, true},
		{"5y", Range5Y, true},
		{"all", RangeAll, true},
		{"3-month", Range3M, true},
		{"All-Time", RangeAll, true},
		{"2w", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRange(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRange(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRange_AcceptsEveryTag(t *testing.T) {
	for _, tag := range AllRanges() {
		got, ok := ParseRange(string(tag))
		if !ok || got != tag {
			t.Errorf("ParseRange(%q) = %q, %v", tag, got, ok)
		}
	}
}
