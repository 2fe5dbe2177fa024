package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
)

const finnhubURL = "https://finnhub.io/api/v1"

// Finnhub fetches the stock/candle endpoint. The key travels in a header.
type Finnhub struct {
	http    *httpClient
	baseURL string
	now     func() time.Time
}

// NewFinnhub creates the Finnhub adapter.
func NewFinnhub(opts ...Option) *Finnhub {
	o := buildOptions(finnhubURL, FinnhubRPM, opts)
	return &Finnhub{http: newHTTPClient(marketdata.Finnhub, o), baseURL: o.baseURL, now: o.now}
}

func (p *Finnhub) ID() marketdata.ProviderID { return marketdata.Finnhub }

func (p *Finnhub) RequiresCredential() bool { return true }

type finnhubReply struct {
	C     []*float64 `json:"c"`
	H     []*float64 `json:"h"`
	L     []*float64 `json:"l"`
	O     []*float64 `json:"o"`
	V     []*float64 `json:"v"`
	T     []int64    `json:"t"`
	S     string     `json:"s"`
	Error string     `json:"error"`
}

func finnhubResolution(g marketdata.Granularity) string {
	switch g {
	case marketdata.Gran5Min:
		return "5"
	case marketdata.Gran30Min:
		return "30"
	case marketdata.GranWeek:
		return "W"
	case marketdata.GranMonth:
		return "M"
	default:
		return "D"
	}
}

func (p *Finnhub) Fetch(ctx context.Context, symbol string, plan marketdata.Plan, cred string) (*models.Series, error) {
	if cred == "" {
		return nil, missingCredential(p.ID(), symbol)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", finnhubResolution(plan.Granularity))
	q.Set("from", strconv.FormatInt(plan.From.Unix(), 10))
	q.Set("to", strconv.FormatInt(plan.To.Unix(), 10))
	header := http.Header{}
	header.Set("X-Finnhub-Token", cred)

	var reply finnhubReply
	if err := p.http.getJSON(ctx, symbol, p.baseURL+"/stock/candle?"+q.Encode(), header, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, p.http.fail(symbol, apperrors.ErrUpstream, fmt.Errorf("%s", reply.Error))
	}
	if reply.S != "ok" {
		return nil, p.http.fail(symbol, apperrors.ErrNoData, fmt.Errorf("status %q", reply.S))
	}

	at := func(xs []*float64, i int) *float64 {
		if i < len(xs) {
			return xs[i]
		}
		return nil
	}
	bars := make([]marketdata.Bar, 0, len(reply.T))
	for i, ts := range reply.T {
		bars = append(bars, marketdata.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(reply.O, i),
			High:   at(reply.H, i),
			Low:    at(reply.L, i),
			Close:  at(reply.C, i),
			Volume: at(reply.V, i),
		})
	}
	return finish(p.ID(), symbol, plan, bars, p.now())
}
