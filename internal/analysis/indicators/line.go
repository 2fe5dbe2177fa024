package indicators

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Display precision for indicator outputs.
const (
	PricePlaces = 2
	RSIPlaces   = 1
	MACDPlaces  = 3
)

// Value is one indicator reading; Valid is false until enough history exists.
type Value struct {
	V     float64
	Valid bool
}

// Some wraps a computed reading.
func Some(v float64) Value {
	return Value{V: v, Valid: true}
}

// MarshalJSON renders invalid readings as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.V, 'f', -1, 64), nil
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Line is an indicator output parallel to the candle slice.
type Line []Value

func newLine(n int) Line {
	return make(Line, n)
}

// At returns the reading at index i.
func (l Line) At(i int) (float64, bool) {
	if i < 0 || i >= len(l) || !l[i].Valid {
		return 0, false
	}
	return l[i].V, true
}

// Last returns the most recent reading.
func (l Line) Last() (float64, bool) {
	return l.At(len(l) - 1)
}

// Back returns the reading k positions before the most recent one.
func (l Line) Back(k int) (float64, bool) {
	return l.At(len(l) - 1 - k)
}

// ValidCount returns how many readings are populated.
func (l Line) ValidCount() int {
	n := 0
	for _, v := range l {
		if v.Valid {
			n++
		}
	}
	return n
}

// Round rounds v to the given number of decimal places using decimal
// arithmetic, so 2.675 rounds to 2.68 rather than the binary-float 2.67.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
