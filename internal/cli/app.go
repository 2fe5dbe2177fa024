package cli

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"price-analyst/internal/analysis/report"
	"price-analyst/internal/config"
	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/logging"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/marketdata/providers"
	"price-analyst/internal/models"
	"price-analyst/internal/narrative"
	"price-analyst/internal/notify"
	"price-analyst/internal/resilience"
	"price-analyst/internal/security"
	"price-analyst/internal/store"
)

// App holds the application dependencies. They are built on first use so
// that `version` and `config path` work without a usable configuration.
type App struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Store        store.DataStore
	Registry     *prometheus.Registry
	Metrics      *marketdata.Metrics
	Breakers     *resilience.CircuitBreakerRegistry
	Orchestrator *marketdata.Orchestrator
	Composer     *report.Composer
	Notifier     *notify.MultiNotifier

	providers   []marketdata.Provider
	scraper     marketdata.Provider
	loggerSet   bool
	storeSet    bool
	now         func() time.Time
	initialized bool
}

// AppOption configures an App before initialization.
type AppOption func(*App)

// WithConfig uses cfg instead of loading one from disk.
func WithConfig(cfg *config.Config) AppOption {
	return func(a *App) { a.Config = cfg }
}

// WithAppLogger sets the logger.
func WithAppLogger(logger zerolog.Logger) AppOption {
	return func(a *App) {
		a.Logger = logger
		a.loggerSet = true
	}
}

// WithProviders replaces the HTTP adapters. The scraper may be nil.
func WithProviders(scraper marketdata.Provider, ps ...marketdata.Provider) AppOption {
	return func(a *App) {
		a.providers = ps
		a.scraper = scraper
	}
}

// WithStore sets the data store. A nil store disables persistence.
func WithStore(s store.DataStore) AppOption {
	return func(a *App) {
		a.Store = s
		a.storeSet = true
	}
}

// WithAppClock sets the clock.
func WithAppClock(now func() time.Time) AppOption {
	return func(a *App) { a.now = now }
}

// NewApp creates an uninitialized App.
func NewApp(opts ...AppOption) *App {
	a := &App{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// init loads configuration and wires the pipeline.
func (a *App) init(cmd *cobra.Command) error {
	if a.initialized {
		return nil
	}

	if a.Config == nil {
		dir, _ := cmd.Flags().GetString("config")
		if dir == "" {
			dir = config.DefaultConfigDir()
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		a.Config = cfg
	}

	if !a.loggerSet {
		a.Logger = logging.NewLoggerWithConfig(a.Config.LogConfig())
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	if !a.storeSet {
		a.Store = a.openStore()
	}

	a.Registry = prometheus.NewRegistry()
	a.Metrics = marketdata.NewMetrics(a.Registry)
	a.Breakers = resilience.NewCircuitBreakerRegistry(resilience.DefaultCircuitBreakerConfig())

	if a.providers == nil {
		a.providers, a.scraper = a.buildProviders()
	}

	intraday, daily := a.Config.Orders()
	opts := []marketdata.OrchestratorOption{
		marketdata.WithOrder(intraday, daily),
		marketdata.WithAttemptTimeout(a.Config.Data.AttemptTimeout),
		marketdata.WithBreakers(a.Breakers),
		marketdata.WithMetrics(a.Metrics),
		marketdata.WithLogger(a.Logger),
		marketdata.WithPlanner(marketdata.NewPlanner(a.Config.Location())),
		marketdata.WithClock(a.now),
	}
	if a.scraper != nil {
		opts = append(opts, marketdata.WithScraper(a.scraper))
	}
	if a.Config.Cache.Enabled {
		opts = append(opts, marketdata.WithCache(marketdata.NewMemoryCache(
			marketdata.WithTTL(a.Config.Cache.IntradayTTL, a.Config.Cache.DailyTTL),
			marketdata.WithCapacity(a.Config.Cache.Capacity),
			marketdata.WithCacheClock(a.now),
		)))
	} else {
		opts = append(opts, marketdata.WithCache(nil))
	}
	a.Orchestrator = marketdata.NewOrchestrator(a.providers, opts...)

	a.Composer = report.NewComposer(report.WithLogger(a.Logger), report.WithClock(a.now))
	a.Notifier = notify.NewMultiNotifier(a.Config.Notifications)

	a.initialized = true
	return nil
}

func (a *App) openStore() store.DataStore {
	var opts []store.Option
	if key := a.Config.Credentials.Security.MasterKey; key != "" {
		sealer, err := security.NewSealer(key)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Invalid master key, stored credentials stay unsealed")
		} else {
			opts = append(opts, store.WithSealer(sealer))
		}
	}
	s, err := store.NewSQLiteStore(a.Config.StorePath(), opts...)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize store, archive and history are unavailable")
		return nil
	}
	a.Logger.Debug().Str("path", a.Config.StorePath()).Msg("SQLite store initialized")
	return s
}

func (a *App) buildProviders() ([]marketdata.Provider, marketdata.Provider) {
	with := func(id marketdata.ProviderID, def int) []providers.Option {
		return []providers.Option{
			providers.WithRateLimit(a.Config.RateLimit(id, def)),
			providers.WithLogger(a.Logger),
			providers.WithClock(a.now),
		}
	}

	ps := []marketdata.Provider{
		providers.NewTwelveData(with(marketdata.TwelveData, providers.TwelveDataRPM)...),
		providers.NewPolygon(with(marketdata.Polygon, providers.PolygonRPM)...),
		providers.NewFinnhub(with(marketdata.Finnhub, providers.FinnhubRPM)...),
		providers.NewAlphaVantage(with(marketdata.AlphaVantage, providers.AlphaVantageRPM)...),
		providers.NewKite(with(marketdata.Kite, providers.KiteRPM)...),
	}

	var scraper marketdata.Provider
	if a.Config.Data.Scraper {
		scraper = providers.NewYahoo(a.Config.Data.YahooRelays, with(marketdata.Yahoo, providers.YahooRPM)...)
	}
	return ps, scraper
}

// Close releases a store the app opened itself.
func (a *App) Close() error {
	if a.Store == nil || a.storeSet {
		return nil
	}
	return a.Store.Close()
}

// credentials merges configured credentials with keys saved in the store.
// Stored keys win.
func (a *App) credentials(ctx context.Context) marketdata.Credentials {
	creds := a.Config.ProviderCredentials()
	if a.Store == nil {
		return creds
	}
	stored, err := a.Store.Credentials(ctx)
	if err != nil {
		a.Logger.Warn().Err(security.RedactError(err)).Msg("Some stored credentials could not be read")
	}
	for name, value := range stored {
		if id, ok := marketdata.ParseProviderID(name); ok && value != "" {
			creds[id] = value
		}
	}
	return creds
}

// openAIKey returns the OpenAI key from the store or configuration.
func (a *App) openAIKey(ctx context.Context) string {
	if a.Store != nil {
		if key, err := a.Store.Credential(ctx, "openai"); err == nil && key != "" {
			return key
		}
	}
	return a.Config.Credentials.OpenAI.APIKey
}

// narrator returns an OpenAI narrator, or nil when no key is configured.
func (a *App) narrator(ctx context.Context) narrative.Narrator {
	key := a.openAIKey(ctx)
	if key == "" {
		return nil
	}
	nc := a.Config.Narrative
	client := narrative.NewOpenAIClient(key, nc.Model,
		narrative.WithBaseURL(nc.BaseURL),
		narrative.WithMaxTokens(nc.MaxTokens),
		narrative.WithTemperature(nc.Temperature),
	)
	return narrative.NewOpenAINarrator(client, narrative.WithTimeout(nc.Timeout))
}

// fetchSeries runs the provider chain. When every source fails it falls back
// to the archived series and then to placeholder data; both are marked not
// live. Only validation errors and cancellation are returned.
func (a *App) fetchSeries(ctx context.Context, symbol string, tag models.RangeTag) (*models.Series, error) {
	symbol, err := security.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	logger := logging.WithRange(logging.WithSymbol(a.Logger, symbol), string(tag))

	res, err := a.Orchestrator.Resolve(ctx, symbol, tag, a.credentials(ctx))
	if err == nil {
		// Cached series were archived when first fetched.
		if a.Store != nil && a.Config.Store.Archive && !res.Cached && res.Series.Live {
			if err := a.Store.SaveSeries(ctx, res.Series); err != nil {
				logger.Warn().Err(err).Msg("Failed to archive series")
			}
		}
		return res.Series, nil
	}

	var failed *apperrors.AllSourcesFailedError
	if !errors.As(err, &failed) {
		return nil, err
	}
	for _, at := range failed.Attempts {
		logger.Debug().Str("provider", at.Provider).Err(security.RedactError(at.Err)).Msg("Attempt failed")
	}

	if a.Store != nil {
		archived, aerr := a.Store.LoadSeries(ctx, symbol, tag)
		if aerr == nil {
			logger.Warn().Time("fetched_at", archived.FetchedAt).Msg("Using archived series")
			return archived, nil
		}
		if !errors.Is(aerr, apperrors.ErrDataNotFound) {
			logger.Warn().Err(aerr).Msg("Archive lookup failed")
		}
	}

	logger.Warn().Msg("Using placeholder series")
	return marketdata.PlaceholderFor(symbol, a.Orchestrator.Planner().Plan(tag, a.now())), nil
}
