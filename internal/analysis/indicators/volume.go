package indicators

import (
	"fmt"

	"price-analyst/internal/models"
)

// VolumeSMA calculates the simple moving average of volume.
type VolumeSMA struct {
	period int
}

// NewVolumeSMA creates a new volume SMA indicator.
func NewVolumeSMA(period int) *VolumeSMA {
	return &VolumeSMA{period: period}
}

func (v *VolumeSMA) Name() string {
	return fmt.Sprintf("VolumeSMA_%d", v.period)
}

func (v *VolumeSMA) Period() int {
	return v.period
}

func (v *VolumeSMA) Calculate(candles []models.Candle) Line {
	values, ok := rollingMean(volumes(candles), v.period)
	return toLine(values, ok, PricePlaces)
}

// VolumeRatio returns the latest volume divided by its average at the same
// index. ok is false when the average is missing or zero.
func VolumeRatio(candles []models.Candle, avg Line) (ratio float64, ok bool) {
	if len(candles) == 0 {
		return 0, false
	}
	a, valid := avg.Last()
	if !valid || a <= 0 {
		return 0, false
	}
	return float64(candles[len(candles)-1].Volume) / a, true
}

// RelativeStrength returns the percentage-point outperformance of series over
// benchmark across the last period candles. ok is false when either series is
// too short or starts from a non-positive close.
func RelativeStrength(series, benchmark []models.Candle, period int) (float64, bool) {
	a, okA := percentChange(series, period)
	b, okB := percentChange(benchmark, period)
	if !okA || !okB {
		return 0, false
	}
	return Round(a-b, PricePlaces), true
}

func percentChange(candles []models.Candle, period int) (float64, bool) {
	n := len(candles)
	if period <= 0 || n < period+1 {
		return 0, false
	}
	base := candles[n-1-period].Close
	if base <= 0 {
		return 0, false
	}
	return (candles[n-1].Close - base) / base * 100, true
}
