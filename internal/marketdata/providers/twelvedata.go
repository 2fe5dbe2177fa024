package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
)

const twelveDataURL = "https://api.twelvedata.com"

// TwelveData fetches the time_series endpoint.
type TwelveData struct {
	http    *httpClient
	baseURL string
	now     func() time.Time
}

// NewTwelveData creates the Twelve Data adapter.
func NewTwelveData(opts ...Option) *TwelveData {
	o := buildOptions(twelveDataURL, TwelveDataRPM, opts)
	return &TwelveData{http: newHTTPClient(marketdata.TwelveData, o), baseURL: o.baseURL, now: o.now}
}

func (p *TwelveData) ID() marketdata.ProviderID { return marketdata.TwelveData }

func (p *TwelveData) RequiresCredential() bool { return true }

type twelveDataReply struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Currency string `json:"currency"`
		Exchange string `json:"exchange"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func twelveDataInterval(g marketdata.Granularity) string {
	switch g {
	case marketdata.Gran5Min:
		return "5min"
	case marketdata.Gran30Min:
		return "30min"
	case marketdata.GranWeek:
		return "1week"
	case marketdata.GranMonth:
		return "1month"
	default:
		return "1day"
	}
}

func (p *TwelveData) Fetch(ctx context.Context, symbol string, plan marketdata.Plan, cred string) (*models.Series, error) {
	if cred == "" {
		return nil, missingCredential(p.ID(), symbol)
	}

	const layout = "2006-01-02 15:04:05"
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", twelveDataInterval(plan.Granularity))
	q.Set("start_date", plan.From.UTC().Format(layout))
	q.Set("end_date", plan.To.UTC().Format(layout))
	q.Set("timezone", "UTC")
	q.Set("order", "ASC")
	q.Set("outputsize", "5000")
	q.Set("apikey", cred)

	var reply twelveDataReply
	if err := p.http.getJSON(ctx, symbol, p.baseURL+"/time_series?"+q.Encode(), nil, &reply); err != nil {
		return nil, err
	}
	if reply.Status == "error" {
		kind := apperrors.ErrUpstream
		if reply.Code == 400 || reply.Code == 404 {
			kind = apperrors.ErrNoData
		} else if reply.Code == 429 {
			kind = apperrors.ErrRateLimited
		}
		return nil, p.http.fail(symbol, kind, fmt.Errorf("code %d: %s", reply.Code, reply.Message))
	}

	bars := make([]marketdata.Bar, 0, len(reply.Values))
	for _, v := range reply.Values {
		ts, err := parseUTC(v.Datetime, layout, "2006-01-02")
		if err != nil {
			continue
		}
		bars = append(bars, marketdata.Bar{
			Time:   ts,
			Open:   parseNum(v.Open),
			High:   parseNum(v.High),
			Low:    parseNum(v.Low),
			Close:  parseNum(v.Close),
			Volume: parseNum(v.Volume),
		})
	}

	series, err := finish(p.ID(), symbol, plan, bars, p.now())
	if err != nil {
		return nil, err
	}
	series.Currency = reply.Meta.Currency
	series.Exchange = reply.Meta.Exchange
	return series, nil
}

// parseNum parses a decimal string; empty or malformed values are nil.
func parseNum(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseUTC(s string, layouts ...string) (time.Time, error) {
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
