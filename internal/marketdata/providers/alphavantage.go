package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
)

const alphaVantageURL = "https://www.alphavantage.co"

// compactSize is the number of bars Alpha Vantage returns without
// outputsize=full.
const compactSize = 100

// AlphaVantage fetches the daily, weekly and monthly time series. Intraday
// data is a premium feature and is refused without a request.
type AlphaVantage struct {
	http    *httpClient
	baseURL string
	now     func() time.Time
}

// NewAlphaVantage creates the Alpha Vantage adapter.
func NewAlphaVantage(opts ...Option) *AlphaVantage {
	o := buildOptions(alphaVantageURL, AlphaVantageRPM, opts)
	return &AlphaVantage{http: newHTTPClient(marketdata.AlphaVantage, o), baseURL: o.baseURL, now: o.now}
}

func (p *AlphaVantage) ID() marketdata.ProviderID { return marketdata.AlphaVantage }

func (p *AlphaVantage) RequiresCredential() bool { return true }

type alphaVantageBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type alphaVantageReply struct {
	Daily       map[string]alphaVantageBar `json:"Time Series (Daily)"`
	Weekly      map[string]alphaVantageBar `json:"Weekly Time Series"`
	Monthly     map[string]alphaVantageBar `json:"Monthly Time Series"`
	Error       string                     `json:"Error Message"`
	Note        string                     `json:"Note"`
	Information string                     `json:"Information"`
}

func (r alphaVantageReply) series(g marketdata.Granularity) map[string]alphaVantageBar {
	switch g {
	case marketdata.GranWeek:
		return r.Weekly
	case marketdata.GranMonth:
		return r.Monthly
	default:
		return r.Daily
	}
}

func alphaVantageFunction(g marketdata.Granularity) string {
	switch g {
	case marketdata.GranWeek:
		return "TIME_SERIES_WEEKLY"
	case marketdata.GranMonth:
		return "TIME_SERIES_MONTHLY"
	default:
		return "TIME_SERIES_DAILY"
	}
}

func (p *AlphaVantage) Fetch(ctx context.Context, symbol string, plan marketdata.Plan, cred string) (*models.Series, error) {
	if cred == "" {
		return nil, missingCredential(p.ID(), symbol)
	}
	if plan.Granularity.Intraday() {
		return nil, unsupported(p.ID(), symbol, plan.Granularity)
	}

	q := url.Values{}
	q.Set("function", alphaVantageFunction(plan.Granularity))
	q.Set("symbol", symbol)
	if plan.Granularity == marketdata.GranDay {
		if plan.ExpectedCount > 0 && plan.ExpectedCount <= compactSize {
			q.Set("outputsize", "compact")
		} else {
			q.Set("outputsize", "full")
		}
	}
	q.Set("apikey", cred)

	var reply alphaVantageReply
	if err := p.http.getJSON(ctx, symbol, p.baseURL+"/query?"+q.Encode(), nil, &reply); err != nil {
		return nil, err
	}
	switch {
	case reply.Error != "":
		return nil, p.http.fail(symbol, apperrors.ErrNoData, fmt.Errorf("%s", reply.Error))
	case reply.Note != "":
		return nil, p.http.fail(symbol, apperrors.ErrRateLimited, fmt.Errorf("%s", reply.Note))
	case reply.Information != "":
		return nil, p.http.fail(symbol, apperrors.ErrUpstream, fmt.Errorf("%s", reply.Information))
	}

	raw := reply.series(plan.Granularity)
	bars := make([]marketdata.Bar, 0, len(raw))
	for day, b := range raw {
		ts, err := parseUTC(day, "2006-01-02")
		if err != nil || ts.Before(plan.From) {
			continue
		}
		bars = append(bars, marketdata.Bar{
			Time:   ts,
			Open:   parseNum(b.Open),
			High:   parseNum(b.High),
			Low:    parseNum(b.Low),
			Close:  parseNum(b.Close),
			Volume: parseNum(b.Volume),
		})
	}
	return finish(p.ID(), symbol, plan, bars, p.now())
}
