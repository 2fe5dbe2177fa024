// Package providers holds the price-series adapters behind the fallback
// orchestrator: five typed REST or SDK providers and one unauthenticated
// chart scraper.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/models"
	"price-analyst/internal/security"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 16 << 20
	userAgent          = "Mozilla/5.0 (compatible; price-analyst)"
)

// options are shared by every adapter constructor.
type options struct {
	baseURL string
	client  *http.Client
	rpm     int
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures an adapter.
type Option func(*options)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithRateLimit sets the request budget per minute. Zero or less disables
// limiting.
func WithRateLimit(rpm int) Option {
	return func(o *options) { o.rpm = rpm }
}

// WithLogger sets the adapter logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock stamped on fetched series.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(baseURL string, rpm int, opts []Option) options {
	o := options{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		rpm:     rpm,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// httpClient performs rate-limited JSON GETs for one provider and maps
// transport failures onto fetch error kinds.
type httpClient struct {
	id      marketdata.ProviderID
	client  *http.Client
	limiter *Limiter
	logger  zerolog.Logger
}

func newHTTPClient(id marketdata.ProviderID, o options) *httpClient {
	return &httpClient{
		id:      id,
		client:  o.client,
		limiter: NewLimiter(string(id), o.rpm),
		logger:  o.logger.With().Str("provider", string(id)).Logger(),
	}
}

func (c *httpClient) fail(symbol string, kind, err error) error {
	return apperrors.NewFetchError(string(c.id), symbol, kind, err)
}

// getJSON issues a GET and decodes a 200 reply into out. A reply that does
// not decode is reported as ErrNoData.
func (c *httpClient) getJSON(ctx context.Context, symbol, rawURL string, header http.Header, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(symbol, apperrors.ErrRateLimited, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return c.fail(symbol, apperrors.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(symbol, apperrors.ErrUpstream, security.RedactError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.fail(symbol, apperrors.ErrUpstream, apperrors.Wrap(err, "read body"))
	}
	c.logger.Debug().
		Str("symbol", symbol).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Provider response")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return c.fail(symbol, apperrors.ErrRateLimited, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return c.fail(symbol, apperrors.ErrUpstream, fmt.Errorf("status %d: %w", resp.StatusCode, apperrors.ErrCredentialAccess))
	case resp.StatusCode == http.StatusNotFound:
		return c.fail(symbol, apperrors.ErrNoData, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return c.fail(symbol, apperrors.ErrUpstream, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return c.fail(symbol, apperrors.ErrNoData, apperrors.Wrap(err, "decode"))
	}
	return nil
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// finish normalizes bars, applies the plan filter and builds the series.
func finish(id marketdata.ProviderID, symbol string, plan marketdata.Plan, bars []marketdata.Bar, now time.Time) (*models.Series, error) {
	candles := plan.Apply(marketdata.Normalize(bars))
	if len(candles) == 0 {
		return nil, apperrors.NewFetchError(string(id), symbol, apperrors.ErrNoData, nil)
	}
	return marketdata.NewSeries(symbol, plan, id, candles, now), nil
}

func missingCredential(id marketdata.ProviderID, symbol string) error {
	return apperrors.NewFetchError(string(id), symbol, apperrors.ErrMissingCredential, nil)
}

func unsupported(id marketdata.ProviderID, symbol string, g marketdata.Granularity) error {
	return apperrors.NewFetchError(string(id), symbol, apperrors.ErrUnsupportedGranularity, fmt.Errorf("granularity %s", g))
}
