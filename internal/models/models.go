// Package models provides the domain models shared by the acquisition pipeline
// and the analysis engine.
package models

import (
	"strings"
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	US  Exchange = "US"
)

// RangeTag is a logical time range requested by a caller.
type RangeTag string

const (
	Range1D  RangeTag = "1-day"
	Range1W  RangeTag = "1-week"
	Range1M  RangeTag = "1-month"
	Range3M  RangeTag = "3-month"
	Range6M  RangeTag = "6-month"
	RangeYTD RangeTag = "ytd"
	Range1Y  RangeTag = "1-year"
	Range5Y  RangeTag = "5-year"
	RangeAll RangeTag = "all-time"
)

// DefaultRange is used when a caller supplies an unknown tag.
const DefaultRange = Range3M

// AllRanges lists every supported range tag, shortest first.
func AllRanges() []RangeTag {
	return []RangeTag{Range1D, Range1W, Range1M, Range3M, Range6M, RangeYTD, Range1Y, Range5Y, RangeAll}
}

// Valid reports whether r is a known range tag.
func (r RangeTag) Valid() bool {
	for _, t := range AllRanges() {
		if t == r {
			return true
		}
	}
	return false
}

var rangeAliases = map[string]RangeTag{
	"1d":  Range1D,
	"1w":  Range1W,
	"1m":  Range1M,
	"3m":  Range3M,
	"6m":  Range6M,
	"ytd": RangeYTD,
	"1y":  Range1Y,
	"5y":  Range5Y,
	"all": RangeAll,
	"max": RangeAll,
}

// ParseRange resolves a short alias such as "3m" or a full tag such as
// "3-month". Matching ignores case and surrounding space.
func ParseRange(s string) (RangeTag, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if tag, ok := rangeAliases[s]; ok {
		return tag, true
	}
	if tag := RangeTag(s); tag.Valid() {
		return tag, true
	}
	return "", false
}

// Intraday reports whether the range is served with sub-daily candles.
func (r RangeTag) Intraday() bool {
	return r == Range1D || r == Range1W
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// IsUp reports whether the candle closed at or above its open.
func (c Candle) IsUp() bool {
	return c.Close >= c.Open
}

// Body is the absolute distance between open and close.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range is the distance between high and low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Series is a chronological candle sequence for one (symbol, range) pair plus
// provenance. A Series is replaced wholesale and never mutated after creation.
type Series struct {
	Symbol    string    `json:"symbol"`
	Range     RangeTag  `json:"range"`
	Source    string    `json:"source"`
	Exchange  string    `json:"exchange,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	LastPrice float64   `json:"last_price"`
	Candles   []Candle  `json:"candles"`
	Live      bool      `json:"live"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Len returns the number of candles.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Candles)
}

// Empty reports whether the series carries no candles.
func (s *Series) Empty() bool {
	return s.Len() == 0
}

// Last returns the most recent candle.
func (s *Series) Last() (Candle, bool) {
	if s.Empty() {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Clone returns a deep copy so callers can never alias cached candles.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	out := *s
	out.Candles = make([]Candle, len(s.Candles))
	copy(out.Candles, s.Candles)
	return &out
}
