package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/logging"
	"price-analyst/internal/models"
	"price-analyst/internal/resilience"
)

// DefaultAttemptTimeout bounds a single provider attempt.
const DefaultAttemptTimeout = 10 * time.Second

// Default provider orders. The scrape provider is always tried last and is
// not part of either list.
var (
	DefaultIntradayOrder = []ProviderID{TwelveData, Polygon, Finnhub, Kite}
	DefaultDailyOrder    = []ProviderID{TwelveData, Polygon, Finnhub, AlphaVantage, Kite}
)

// Orchestrator fetches a series by trying providers strictly in order until
// one returns candles.
type Orchestrator struct {
	planner   *Planner
	providers map[ProviderID]Provider
	intraday  []ProviderID
	daily     []ProviderID
	scraper   Provider
	cache     Cache
	timeout   time.Duration
	breakers  *resilience.CircuitBreakerRegistry
	metrics   *Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrder sets the intraday and daily provider orders.
func WithOrder(intraday, daily []ProviderID) OrchestratorOption {
	return func(o *Orchestrator) {
		if len(intraday) > 0 {
			o.intraday = intraday
		}
		if len(daily) > 0 {
			o.daily = daily
		}
	}
}

// WithScraper sets the unauthenticated provider tried after every typed one.
func WithScraper(p Provider) OrchestratorOption {
	return func(o *Orchestrator) { o.scraper = p }
}

// WithCache sets the freshness cache. A nil cache disables caching.
func WithCache(c Cache) OrchestratorOption {
	return func(o *Orchestrator) { o.cache = c }
}

// WithAttemptTimeout sets the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBreakers enables per-provider circuit breakers.
func WithBreakers(r *resilience.CircuitBreakerRegistry) OrchestratorOption {
	return func(o *Orchestrator) { o.breakers = r }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithPlanner sets the resolution planner.
func WithPlanner(p *Planner) OrchestratorOption {
	return func(o *Orchestrator) { o.planner = p }
}

// WithClock sets the clock used for planning and fetch timestamps.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator over the given typed providers.
func NewOrchestrator(providers []Provider, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		planner:   NewPlanner(time.UTC),
		providers: make(map[ProviderID]Provider, len(providers)),
		intraday:  DefaultIntradayOrder,
		daily:     DefaultDailyOrder,
		cache:     NewMemoryCache(),
		timeout:   DefaultAttemptTimeout,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, p := range providers {
		o.providers[p.ID()] = p
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Planner returns the orchestrator's planner.
func (o *Orchestrator) Planner() *Planner {
	return o.planner
}

// Order returns the provider chain tried for tag, the scraper included.
func (o *Orchestrator) Order(tag models.RangeTag) []ProviderID {
	plan := o.planner.Plan(tag, o.now())
	list := o.daily
	if plan.Class == ClassIntraday {
		list = o.intraday
	}
	chain := make([]ProviderID, 0, len(list)+1)
	seen := make(map[ProviderID]bool, len(list)+1)
	for _, id := range list {
		if !seen[id] {
			seen[id] = true
			chain = append(chain, id)
		}
	}
	if o.scraper != nil && !seen[o.scraper.ID()] {
		chain = append(chain, o.scraper.ID())
	}
	return chain
}

func (o *Orchestrator) provider(id ProviderID) (Provider, bool) {
	if o.scraper != nil && o.scraper.ID() == id {
		return o.scraper, true
	}
	p, ok := o.providers[id]
	return p, ok
}

// Fetch returns the series for symbol and tag. A fresh cached series is
// returned without any attempt. Otherwise providers are tried one at a time
// in the configured order, each under its own deadline; providers without a
// credential are skipped. When every provider fails the error is an
// *errors.AllSourcesFailedError listing each attempt. Cancelling ctx aborts
// the chain with ctx.Err().
func (o *Orchestrator) Fetch(ctx context.Context, symbol string, tag models.RangeTag, creds Credentials) (*models.Series, error) {
	res, err := o.Resolve(ctx, symbol, tag, creds)
	if err != nil {
		return nil, err
	}
	return res.Series, nil
}

// FetchResult is a resolved series and whether it came from the cache.
type FetchResult struct {
	Series *models.Series
	Cached bool
}

// Resolve behaves like Fetch and also reports whether the series was served
// from the cache rather than a provider.
func (o *Orchestrator) Resolve(ctx context.Context, symbol string, tag models.RangeTag, creds Credentials) (FetchResult, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return FetchResult{}, apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	plan := o.planner.Plan(tag, o.now())
	logger := logging.WithRange(logging.WithSymbol(o.logger, symbol), string(plan.Tag))

	if o.cache != nil {
		if s, ok := o.cache.Get(symbol, plan.Tag); ok {
			o.metrics.observeCache(true)
			logger.Debug().Str("source", s.Source).Msg("Cache hit")
			return FetchResult{Series: s, Cached: true}, nil
		}
		o.metrics.observeCache(false)
	}

	var attempts []apperrors.Attempt
	for _, id := range o.Order(plan.Tag) {
		p, ok := o.provider(id)
		if !ok {
			continue
		}
		cred := creds.Get(id)
		if p.RequiresCredential() && cred == "" {
			attempts = append(attempts, apperrors.Attempt{
				Provider: string(id),
				Err:      apperrors.NewFetchError(string(id), symbol, apperrors.ErrMissingCredential, nil),
			})
			o.metrics.observeAttempt(id, OutcomeSkipped, 0)
			continue
		}

		series, err := o.attempt(ctx, p, symbol, plan, cred)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return FetchResult{}, ctxErr
		}
		if err != nil {
			attempts = append(attempts, apperrors.Attempt{Provider: string(id), Err: err})
			continue
		}

		if o.cache != nil {
			o.cache.Set(symbol, plan.Tag, series)
		}
		logger.Info().Str("source", series.Source).Int("candles", series.Len()).Int("failed_attempts", len(attempts)).Msg("Series fetched")
		return FetchResult{Series: series}, nil
	}

	o.metrics.observeExhausted(string(plan.Tag))
	failure := apperrors.NewAllSourcesFailedError(symbol, string(plan.Tag), attempts)
	logger.Warn().Err(failure).Msg("All sources failed")
	return FetchResult{}, failure
}

// attempt runs one provider call under the attempt deadline and maps its
// outcome to a typed error.
func (o *Orchestrator) attempt(ctx context.Context, p Provider, symbol string, plan Plan, cred string) (*models.Series, error) {
	id := p.ID()
	logger := logging.WithProvider(o.logger, string(id))

	var cb *resilience.CircuitBreaker
	if o.breakers != nil {
		cb = o.breakers.Get(string(id))
		if err := cb.Allow(); err != nil {
			o.metrics.observeAttempt(id, OutcomeSkipped, 0)
			return nil, apperrors.NewFetchError(string(id), symbol, apperrors.ErrCircuitOpen, err)
		}
	}

	actx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	series, err := p.Fetch(actx, symbol, plan, cred)
	elapsed := time.Since(start)

	switch {
	case err == nil && (series == nil || series.Empty()):
		err = apperrors.NewFetchError(string(id), symbol, apperrors.ErrNoData, nil)
	case err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded):
		err = apperrors.NewFetchError(string(id), symbol, apperrors.ErrNetworkTimeout, err)
	case err != nil && !isFetchError(err):
		err = apperrors.NewFetchError(string(id), symbol, apperrors.ErrUpstream, err)
	}

	if err != nil {
		if ctx.Err() == nil {
			outcome := OutcomeFailure
			if errors.Is(err, apperrors.ErrNetworkTimeout) {
				outcome = OutcomeTimeout
			}
			o.metrics.observeAttempt(id, outcome, elapsed)
			if cb != nil && countsAgainstProvider(err) {
				cb.RecordFailure()
			}
		}
		logging.LogFetchAttempt(logger, string(id), 0, elapsed, err)
		return nil, err
	}

	if cb != nil {
		cb.RecordSuccess()
	}
	o.metrics.observeAttempt(id, OutcomeSuccess, elapsed)
	series.Symbol = symbol
	series.Range = plan.Tag
	series.Source = string(id)
	series.Live = true
	if series.FetchedAt.IsZero() {
		series.FetchedAt = o.now()
	}
	if series.LastPrice == 0 {
		series.LastPrice = series.Candles[len(series.Candles)-1].Close
	}
	logging.LogFetchAttempt(logger, string(id), series.Len(), elapsed, nil)
	return series, nil
}

func isFetchError(err error) bool {
	var fe *apperrors.FetchError
	return errors.As(err, &fe)
}

// countsAgainstProvider reports whether a failure says something about the
// provider's health. Local refusals such as a missing credential or an
// unsupported granularity do not trip the breaker.
func countsAgainstProvider(err error) bool {
	return !errors.Is(err, apperrors.ErrMissingCredential) && !errors.Is(err, apperrors.ErrUnsupportedGranularity)
}
