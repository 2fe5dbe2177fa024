package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
	"price-analyst/internal/security"
)

// DefaultKiteExchange is used for symbols without an exchange prefix or
// suffix.
const DefaultKiteExchange = "NSE"

// Kite fetches historical candles from Zerodha Kite Connect. The credential
// is "api_key:access_token". Instrument tokens come from the exchange
// instrument dump and are cached for the life of the adapter.
type Kite struct {
	baseURL  string
	limiter  *Limiter
	exchange string
	now      func() time.Time

	mu     sync.RWMutex
	tokens map[string]int
	loaded map[string]bool
}

// NewKite creates the Kite adapter.
func NewKite(opts ...Option) *Kite {
	o := buildOptions("", KiteRPM, opts)
	return &Kite{
		baseURL:  o.baseURL,
		limiter:  NewLimiter(string(marketdata.Kite), o.rpm),
		exchange: DefaultKiteExchange,
		now:      o.now,
		tokens:   make(map[string]int),
		loaded:   make(map[string]bool),
	}
}

func (p *Kite) ID() marketdata.ProviderID { return marketdata.Kite }

func (p *Kite) RequiresCredential() bool { return true }

// SetInstrumentToken records a known token so the instrument dump is not
// needed for that symbol.
func (p *Kite) SetInstrumentToken(exchange, symbol string, token int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[exchange+":"+symbol] = token
}

// ParseKiteCredential splits "api_key:access_token".
func ParseKiteCredential(cred string) (apiKey, accessToken string, ok bool) {
	apiKey, accessToken, ok = strings.Cut(strings.TrimSpace(cred), ":")
	if !ok || apiKey == "" || accessToken == "" {
		return "", "", false
	}
	return apiKey, accessToken, true
}

// kiteSymbol resolves "NSE:INFY", "INFY.NS", "RELIANCE.BO" or a bare ticker
// into exchange and trading symbol.
func (p *Kite) kiteSymbol(symbol string) (exchange, tradingSymbol string) {
	if ex, sym, ok := strings.Cut(symbol, ":"); ok {
		return ex, sym
	}
	switch {
	case strings.HasSuffix(symbol, ".NS"):
		return "NSE", strings.TrimSuffix(symbol, ".NS")
	case strings.HasSuffix(symbol, ".BO"):
		return "BSE", strings.TrimSuffix(symbol, ".BO")
	}
	return p.exchange, symbol
}

func kiteInterval(g marketdata.Granularity) (string, bool) {
	switch g {
	case marketdata.Gran5Min:
		return "5minute", true
	case marketdata.Gran30Min:
		return "30minute", true
	case marketdata.GranDay, marketdata.GranWeek:
		return "day", true
	default:
		return "", false
	}
}

func (p *Kite) client(apiKey, accessToken string) *kiteconnect.Client {
	c := kiteconnect.New(apiKey)
	c.SetAccessToken(accessToken)
	if p.baseURL != "" {
		c.SetBaseURI(p.baseURL)
	}
	return c
}

func (p *Kite) Fetch(ctx context.Context, symbol string, plan marketdata.Plan, cred string) (*models.Series, error) {
	apiKey, accessToken, ok := ParseKiteCredential(cred)
	if !ok {
		return nil, missingCredential(p.ID(), symbol)
	}
	interval, ok := kiteInterval(plan.Granularity)
	if !ok {
		return nil, unsupported(p.ID(), symbol, plan.Granularity)
	}

	exchange, tradingSymbol := p.kiteSymbol(symbol)
	client := p.client(apiKey, accessToken)

	token, err := p.instrumentToken(ctx, client, exchange, tradingSymbol)
	if err != nil {
		return nil, apperrors.NewFetchError(string(p.ID()), symbol, kindOf(err), err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewFetchError(string(p.ID()), symbol, apperrors.ErrRateLimited, err)
	}
	data, err := withContext(ctx, func() ([]kiteconnect.HistoricalData, error) {
		return client.GetHistoricalData(token, interval, plan.From, plan.To, false, false)
	})
	if err != nil {
		return nil, apperrors.NewFetchError(string(p.ID()), symbol, apperrors.ErrUpstream, security.RedactError(apperrors.Wrap(err, "historical data")))
	}

	bars := make([]marketdata.Bar, 0, len(data))
	for _, d := range data {
		bars = append(bars, marketdata.Bar{
			Time:   d.Date.Time,
			Open:   marketdata.F(d.Open),
			High:   marketdata.F(d.High),
			Low:    marketdata.F(d.Low),
			Close:  marketdata.F(d.Close),
			Volume: marketdata.F(float64(d.Volume)),
		})
	}
	if plan.Granularity == marketdata.GranWeek {
		bars = weekly(marketdata.Normalize(bars), plan.Location)
	}

	series, err := finish(p.ID(), symbol, plan, bars, p.now())
	if err != nil {
		return nil, err
	}
	series.Exchange = exchange
	series.Currency = "INR"
	return series, nil
}

// instrumentToken returns the cached token, loading the exchange's
// instrument dump once when the symbol is unknown.
func (p *Kite) instrumentToken(ctx context.Context, client *kiteconnect.Client, exchange, symbol string) (int, error) {
	key := exchange + ":" + symbol

	p.mu.RLock()
	token, ok := p.tokens[key]
	loaded := p.loaded[exchange]
	p.mu.RUnlock()
	if ok {
		return token, nil
	}
	if loaded {
		return 0, fmt.Errorf("instrument not found: %s: %w", key, apperrors.ErrNoData)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	instruments, err := withContext(ctx, func() (kiteconnect.Instruments, error) {
		return client.GetInstrumentsByExchange(exchange)
	})
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get instruments")
	}

	p.mu.Lock()
	for _, inst := range instruments {
		p.tokens[inst.Exchange+":"+inst.Tradingsymbol] = inst.InstrumentToken
	}
	p.loaded[exchange] = true
	token, ok = p.tokens[key]
	p.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("instrument not found: %s: %w", key, apperrors.ErrNoData)
	}
	return token, nil
}

func kindOf(err error) error {
	if apperrors.Is(err, apperrors.ErrNoData) {
		return apperrors.ErrNoData
	}
	return apperrors.ErrUpstream
}

// withContext runs a blocking SDK call and gives up when ctx ends. The call
// itself keeps running until the SDK's own HTTP timeout.
func withContext[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// weekly folds daily candles into calendar weeks starting on Monday.
func weekly(daily []models.Candle, loc *time.Location) []marketdata.Bar {
	if loc == nil {
		loc = time.UTC
	}
	var bars []marketdata.Bar
	var cur *models.Candle
	var curWeek time.Time
	flush := func() {
		if cur != nil {
			bars = append(bars, marketdata.Bar{
				Time:   curWeek,
				Open:   marketdata.F(cur.Open),
				High:   marketdata.F(cur.High),
				Low:    marketdata.F(cur.Low),
				Close:  marketdata.F(cur.Close),
				Volume: marketdata.F(float64(cur.Volume)),
			})
		}
	}
	for _, c := range daily {
		t := c.Timestamp.In(loc)
		offset := (int(t.Weekday()) + 6) % 7
		week := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
		if cur == nil || !week.Equal(curWeek) {
			flush()
			c := c
			cur, curWeek = &c, week
			continue
		}
		cur.High = max(cur.High, c.High)
		cur.Low = min(cur.Low, c.Low)
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	flush()
	return bars
}
