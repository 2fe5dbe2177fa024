// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"sync"

	"price-analyst/internal/models"
)

// Indicator defines the interface for single-value technical indicators.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) Line
	Period() int
}

// MultiValueIndicator defines the interface for indicators that return multiple values.
type MultiValueIndicator interface {
	Name() string
	Calculate(candles []models.Candle) map[string]Line
	Period() int
}

// Standard periods used by the analysis engine.
const (
	RSIPeriod       = 14
	ShortSMAPeriod  = 20
	MediumSMAPeriod = 50
	LongSMAPeriod   = 200
	FastEMAPeriod   = 12
	SlowEMAPeriod   = 26
	SignalPeriod    = 9
	BollingerPeriod = 20
	BollingerStdDev = 2.0
	ATRPeriod       = 14
	VolumePeriod    = 20
	ChannelPeriod   = 20
)

// Set is the full indicator set for one series. Every line is parallel to
// the candle slice it was computed from.
type Set struct {
	RSI        Line `json:"rsi14"`
	SMA20      Line `json:"sma20"`
	SMA50      Line `json:"sma50"`
	SMA200     Line `json:"sma200"`
	EMA12      Line `json:"ema12"`
	EMA26      Line `json:"ema26"`
	MACD       Line `json:"macd"`
	MACDSignal Line `json:"macd_signal"`
	MACDHist   Line `json:"macd_histogram"`
	BBUpper    Line `json:"bb_upper"`
	BBMiddle   Line `json:"bb_middle"`
	BBLower    Line `json:"bb_lower"`
	BBWidth    Line `json:"bb_bandwidth"`
	ATR        Line `json:"atr14"`
	VolumeSMA  Line `json:"volume_sma20"`
	High20     Line `json:"high20"`
	Low20      Line `json:"low20"`
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers     int
	indicators  map[string]Indicator
	multiIndics map[string]MultiValueIndicator
	mu          sync.RWMutex
}

// NewEngine creates an indicator engine with no registered indicators.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:     workers,
		indicators:  make(map[string]Indicator),
		multiIndics: make(map[string]MultiValueIndicator),
	}
}

var (
	rsi14     = NewRSI(RSIPeriod)
	sma20     = NewSMA(ShortSMAPeriod)
	sma50     = NewSMA(MediumSMAPeriod)
	sma200    = NewSMA(LongSMAPeriod)
	ema12     = NewEMA(FastEMAPeriod)
	ema26     = NewEMA(SlowEMAPeriod)
	atr14     = NewATR(ATRPeriod)
	volSMA20  = NewVolumeSMA(VolumePeriod)
	macd      = NewMACD(FastEMAPeriod, SlowEMAPeriod, SignalPeriod)
	bollinger = NewBollingerBands(BollingerPeriod, BollingerStdDev)
	channel20 = NewDonchianChannels(ChannelPeriod)
)

// NewDefaultEngine creates an engine with every indicator a Set needs.
func NewDefaultEngine(workers int) *Engine {
	e := NewEngine(workers)
	for _, ind := range []Indicator{rsi14, sma20, sma50, sma200, ema12, ema26, atr14, volSMA20} {
		e.RegisterIndicator(ind)
	}
	for _, ind := range []MultiValueIndicator{macd, bollinger, channel20} {
		e.RegisterMultiIndicator(ind)
	}
	return e
}

// RegisterIndicator registers a single-value indicator.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
}

// RegisterMultiIndicator registers a multi-value indicator.
func (e *Engine) RegisterMultiIndicator(ind MultiValueIndicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiIndics[ind.Name()] = ind
}

// CalculateAll calculates all registered indicators in parallel.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle) (map[string]Line, map[string]map[string]Line, error) {
	e.mu.RLock()
	indicators := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		indicators = append(indicators, ind)
	}
	multiIndics := make([]MultiValueIndicator, 0, len(e.multiIndics))
	for _, ind := range e.multiIndics {
		multiIndics = append(multiIndics, ind)
	}
	e.mu.RUnlock()

	singleResults := make(map[string]Line, len(indicators))
	multiResults := make(map[string]map[string]Line, len(multiIndics))
	var mu sync.Mutex
	var wg sync.WaitGroup

	work := make(chan func(), len(indicators)+len(multiIndics))
	for _, ind := range indicators {
		ind := ind
		work <- func() {
			values := ind.Calculate(candles)
			mu.Lock()
			singleResults[ind.Name()] = values
			mu.Unlock()
		}
	}
	for _, ind := range multiIndics {
		ind := ind
		work <- func() {
			values := ind.Calculate(candles)
			mu.Lock()
			multiResults[ind.Name()] = values
			mu.Unlock()
		}
	}
	close(work)

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				select {
				case <-ctx.Done():
					return
				default:
					job()
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return singleResults, multiResults, nil
}

// Compute calculates the full indicator set. Lines that were not registered
// come back as all-null lines of the right length.
func (e *Engine) Compute(ctx context.Context, candles []models.Candle) (*Set, error) {
	single, multi, err := e.CalculateAll(ctx, candles)
	if err != nil {
		return nil, err
	}
	n := len(candles)
	pick := func(name string) Line {
		if l, ok := single[name]; ok {
			return l
		}
		return newLine(n)
	}
	pickMulti := func(name, key string) Line {
		if m, ok := multi[name]; ok {
			if l, ok := m[key]; ok {
				return l
			}
		}
		return newLine(n)
	}

	return &Set{
		RSI:        pick(rsi14.Name()),
		SMA20:      pick(sma20.Name()),
		SMA50:      pick(sma50.Name()),
		SMA200:     pick(sma200.Name()),
		EMA12:      pick(ema12.Name()),
		EMA26:      pick(ema26.Name()),
		ATR:        pick(atr14.Name()),
		VolumeSMA:  pick(volSMA20.Name()),
		MACD:       pickMulti(macd.Name(), MACDLine),
		MACDSignal: pickMulti(macd.Name(), MACDSignal),
		MACDHist:   pickMulti(macd.Name(), MACDHistogram),
		BBUpper:    pickMulti(bollinger.Name(), BollingerUpper),
		BBMiddle:   pickMulti(bollinger.Name(), BollingerMiddle),
		BBLower:    pickMulti(bollinger.Name(), BollingerLower),
		BBWidth:    pickMulti(bollinger.Name(), BollingerBandwidth),
		High20:     pickMulti(channel20.Name(), DonchianUpper),
		Low20:      pickMulti(channel20.Name(), DonchianLower),
	}, nil
}

// ComputeSet calculates the full indicator set synchronously.
func ComputeSet(candles []models.Candle) *Set {
	set, _ := NewDefaultEngine(1).Compute(context.Background(), candles)
	return set
}
