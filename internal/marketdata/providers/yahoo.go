package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
)

const yahooURL = "https://query1.finance.yahoo.com"

// Yahoo scrapes the public chart API. It needs no credential. Requests go
// through a pool of relays, rotated per fetch; a relay containing "{url}" is
// a template that receives the escaped chart URL, any other relay replaces
// the chart host. With no relays the chart host is called directly.
type Yahoo struct {
	http    *httpClient
	baseURL string
	relays  []string
	next    atomic.Uint32
	now     func() time.Time
}

// NewYahoo creates the chart scraper.
func NewYahoo(relays []string, opts ...Option) *Yahoo {
	o := buildOptions(yahooURL, YahooRPM, opts)
	var pool []string
	for _, r := range relays {
		if r = strings.TrimSpace(r); r != "" {
			pool = append(pool, strings.TrimRight(r, "/"))
		}
	}
	return &Yahoo{http: newHTTPClient(marketdata.Yahoo, o), baseURL: o.baseURL, relays: pool, now: o.now}
}

func (p *Yahoo) ID() marketdata.ProviderID { return marketdata.Yahoo }

func (p *Yahoo) RequiresCredential() bool { return false }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				ExchangeName       string  `json:"exchangeName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func yahooInterval(g marketdata.Granularity) string {
	switch g {
	case marketdata.Gran5Min:
		return "5m"
	case marketdata.Gran30Min:
		return "30m"
	case marketdata.GranWeek:
		return "1wk"
	case marketdata.GranMonth:
		return "1mo"
	default:
		return "1d"
	}
}

// targets returns the URLs to try for one chart request, starting at the
// next relay in rotation. The chart host itself is always tried last.
func (p *Yahoo) targets(pathAndQuery string) []string {
	direct := p.baseURL + pathAndQuery
	if len(p.relays) == 0 {
		return []string{direct}
	}
	start := int(p.next.Add(1)-1) % len(p.relays)
	out := make([]string, 0, len(p.relays)+1)
	for i := range p.relays {
		relay := p.relays[(start+i)%len(p.relays)]
		if strings.Contains(relay, "{url}") {
			out = append(out, strings.ReplaceAll(relay, "{url}", url.QueryEscape(direct)))
		} else {
			out = append(out, relay+pathAndQuery)
		}
	}
	return append(out, direct)
}

func (p *Yahoo) Fetch(ctx context.Context, symbol string, plan marketdata.Plan, _ string) (*models.Series, error) {
	q := url.Values{}
	q.Set("interval", yahooInterval(plan.Granularity))
	q.Set("period1", strconv.FormatInt(plan.From.Unix(), 10))
	q.Set("period2", strconv.FormatInt(plan.To.Unix(), 10))
	q.Set("includePrePost", "false")
	pathAndQuery := "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()

	var chart yahooChart
	var err error
	for _, target := range p.targets(pathAndQuery) {
		chart = yahooChart{}
		if err = p.http.getJSON(ctx, symbol, target, nil, &chart); err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if e := chart.Chart.Error; e != nil {
		return nil, p.http.fail(symbol, apperrors.ErrNoData, fmt.Errorf("%s: %s", e.Code, e.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, p.http.fail(symbol, apperrors.ErrNoData, nil)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	at := func(xs []*float64, i int) *float64 {
		if i < len(xs) {
			return xs[i]
		}
		return nil
	}
	bars := make([]marketdata.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bars = append(bars, marketdata.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  at(quote.Close, i),
			Volume: at(quote.Volume, i),
		})
	}

	series, err := finish(p.ID(), symbol, plan, bars, p.now())
	if err != nil {
		return nil, err
	}
	series.Currency = result.Meta.Currency
	series.Exchange = result.Meta.ExchangeName
	return series, nil
}
