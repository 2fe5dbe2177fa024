package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
)

const polygonURL = "https://api.polygon.io"

// Polygon fetches the aggregates endpoint.
type Polygon struct {
	http    *httpClient
	baseURL string
	now     func() time.Time
}

// NewPolygon creates the Polygon adapter.
func NewPolygon(opts ...Option) *Polygon {
	o := buildOptions(polygonURL, PolygonRPM, opts)
	return &Polygon{http: newHTTPClient(marketdata.Polygon, o), baseURL: o.baseURL, now: o.now}
}

func (p *Polygon) ID() marketdata.ProviderID { return marketdata.Polygon }

func (p *Polygon) RequiresCredential() bool { return true }

type polygonBar struct {
	T int64    `json:"t"`
	O *float64 `json:"o"`
	H *float64 `json:"h"`
	L *float64 `json:"l"`
	C *float64 `json:"c"`
	V *float64 `json:"v"`
}

type polygonReply struct {
	Ticker       string       `json:"ticker"`
	ResultsCount int          `json:"resultsCount"`
	Results      []polygonBar `json:"results"`
	Status       string       `json:"status"`
	Error        string       `json:"error"`
	Message      string       `json:"message"`
}

func polygonSpan(g marketdata.Granularity) (int, string) {
	switch g {
	case marketdata.Gran5Min:
		return 5, "minute"
	case marketdata.Gran30Min:
		return 30, "minute"
	case marketdata.GranWeek:
		return 1, "week"
	case marketdata.GranMonth:
		return 1, "month"
	default:
		return 1, "day"
	}
}

func (p *Polygon) Fetch(ctx context.Context, symbol string, plan marketdata.Plan, cred string) (*models.Series, error) {
	if cred == "" {
		return nil, missingCredential(p.ID(), symbol)
	}

	mult, span := polygonSpan(plan.Granularity)
	path := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%d/%d",
		p.baseURL, url.PathEscape(symbol), mult, span, plan.From.UnixMilli(), plan.To.UnixMilli())
	q := url.Values{}
	q.Set("adjusted", "true")
	q.Set("sort", "asc")
	q.Set("limit", strconv.Itoa(50000))
	q.Set("apiKey", cred)

	var reply polygonReply
	if err := p.http.getJSON(ctx, symbol, path+"?"+q.Encode(), nil, &reply); err != nil {
		return nil, err
	}
	if reply.Status == "ERROR" {
		msg := reply.Error
		if msg == "" {
			msg = reply.Message
		}
		return nil, p.http.fail(symbol, apperrors.ErrUpstream, fmt.Errorf("%s", msg))
	}

	bars := make([]marketdata.Bar, 0, len(reply.Results))
	for _, r := range reply.Results {
		bars = append(bars, marketdata.Bar{
			Time:   time.UnixMilli(r.T).UTC(),
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Close:  r.C,
			Volume: r.V,
		})
	}
	return finish(p.ID(), symbol, plan, bars, p.now())
}
