// Package integration runs the fetch, analyze and record pipeline end to end
// against fake provider endpoints.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/report"
	"price-analyst/internal/config"
	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/marketdata"
	"price-analyst/internal/marketdata/providers"
	"price-analyst/internal/models"
	"price-analyst/internal/notify"
	"price-analyst/internal/resilience"
	"price-analyst/internal/store"
)

var now = time.Date(2026, 6, 12, 21, 0, 0, 0, time.UTC)

type endpoint struct {
	srv  *httptest.Server
	hits atomic.Int32
	down atomic.Bool
}

func newEndpoint(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *endpoint {
	t.Helper()
	e := &endpoint{}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.hits.Add(1)
		if e.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(e.srv.Close)
	return e
}

// polygonBars serves 250 daily aggregates climbing towards now.
func polygonBars(w http.ResponseWriter, _ *http.Request) {
	type bar struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
		V float64 `json:"v"`
	}
	const n = 250
	bars := make([]bar, n)
	for i := range bars {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, i-n)
		base := 150 + float64(i)*0.3
		if i%9 == 0 {
			base -= 2
		}
		bars[i] = bar{T: day.UnixMilli(), O: base, H: base + 1.5, L: base - 1.2, C: base + 0.6, V: float64(2_000_000 + i*1000)}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ticker": "AAPL", "status": "OK", "resultsCount": n, "results": bars,
	})
}

type pipeline struct {
	orch     *marketdata.Orchestrator
	composer *report.Composer
	store    *store.SQLiteStore
	registry *prometheus.Registry
	creds    marketdata.Credentials
}

func newPipeline(t *testing.T, twelve, polygon *endpoint) *pipeline {
	t.Helper()
	clock := func() time.Time { return now }
	opts := func(e *endpoint) []providers.Option {
		return []providers.Option{providers.WithBaseURL(e.srv.URL), providers.WithRateLimit(0), providers.WithClock(clock)}
	}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "analyst.db"), store.WithClock(clock))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	order := []marketdata.ProviderID{marketdata.TwelveData, marketdata.Polygon}
	orch := marketdata.NewOrchestrator(
		[]marketdata.Provider{providers.NewTwelveData(opts(twelve)...), providers.NewPolygon(opts(polygon)...)},
		marketdata.WithOrder(order, order),
		marketdata.WithScraper(nil),
		marketdata.WithCache(marketdata.NewMemoryCache(marketdata.WithCacheClock(clock))),
		marketdata.WithBreakers(resilience.NewCircuitBreakerRegistry(resilience.DefaultCircuitBreakerConfig())),
		marketdata.WithMetrics(marketdata.NewMetrics(reg)),
		marketdata.WithClock(clock),
	)

	return &pipeline{
		orch:     orch,
		composer: report.NewComposer(report.WithClock(clock)),
		store:    st,
		registry: reg,
		creds:    marketdata.Credentials{marketdata.TwelveData: "td-key", marketdata.Polygon: "pg-key"},
	}
}

func TestPipeline_FallbackToReport(t *testing.T) {
	ctx := context.Background()
	twelve := newEndpoint(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	polygon := newEndpoint(t, polygonBars)
	p := newPipeline(t, twelve, polygon)

	series, err := p.orch.Fetch(ctx, "aapl", models.Range1Y, p.creds)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if series.Source != string(marketdata.Polygon) || !series.Live || series.Len() == 0 {
		t.Fatalf("series = %s live=%v candles=%d", series.Source, series.Live, series.Len())
	}

	// Served from cache the second time.
	if _, err := p.orch.Fetch(ctx, "AAPL", models.Range1Y, p.creds); err != nil {
		t.Fatalf("cached Fetch() error = %v", err)
	}
	if twelve.hits.Load() != 1 || polygon.hits.Load() != 1 {
		t.Errorf("provider hits = %d/%d, want 1/1", twelve.hits.Load(), polygon.hits.Load())
	}
	if n, err := testutil.GatherAndCount(p.registry); err != nil || n == 0 {
		t.Errorf("GatherAndCount() = %d, %v", n, err)
	}

	rep := p.composer.Compose(series, nil)
	if rep.Insufficient() || !rep.Live || rep.Source != string(marketdata.Polygon) {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Confidence < 0 || rep.Confidence > 100 {
		t.Errorf("confidence = %d", rep.Confidence)
	}
	b := rep.Breakdown
	if b.Trend+b.Technical+b.Volume+b.RiskReward+b.Momentum != b.Total {
		t.Errorf("breakdown %+v does not add up", b)
	}

	if err := p.store.SaveSeries(ctx, series); err != nil {
		t.Fatalf("SaveSeries() error = %v", err)
	}
	if err := p.store.SaveReport(ctx, rep); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	history, err := p.store.RecentReports(ctx, "AAPL", 5)
	if err != nil || len(history) != 1 || history[0].Signal != string(rep.Signal) {
		t.Errorf("RecentReports() = %+v, %v", history, err)
	}
}

func TestPipeline_OutageFallsBackToArchiveAndAlerts(t *testing.T) {
	ctx := context.Background()
	twelve := newEndpoint(t, nil)
	twelve.down.Store(true)
	polygon := newEndpoint(t, polygonBars)
	p := newPipeline(t, twelve, polygon)

	var (
		mu     sync.Mutex
		alerts []notify.Notification
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n notify.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("decoding alert: %v", err)
		}
		mu.Lock()
		alerts = append(alerts, n)
		mu.Unlock()
	}))
	defer hook.Close()
	notifier := notify.NewMultiNotifier(config.NotificationConfig{
		Enabled: true,
		Level:   "all",
		Webhook: config.WebhookConfig{Enabled: true, URL: hook.URL},
	})
	tracker := notify.NewSignalTracker()

	observe := func(rep *analysis.Report) {
		for _, n := range tracker.Observe(rep) {
			if err := notifier.Send(ctx, n); err != nil {
				t.Errorf("Send() error = %v", err)
			}
		}
	}

	live, err := p.orch.Fetch(ctx, "AAPL", models.Range1Y, p.creds)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if err := p.store.SaveSeries(ctx, live); err != nil {
		t.Fatalf("SaveSeries() error = %v", err)
	}
	observe(p.composer.Compose(live, nil))

	polygon.down.Store(true)
	_, err = p.orch.Fetch(ctx, "MSFT", models.Range1Y, p.creds)
	var failed *apperrors.AllSourcesFailedError
	if !errors.As(err, &failed) || len(failed.Attempts) != 2 {
		t.Fatalf("Fetch() error = %v, want both attempts recorded", err)
	}

	// A cache miss for AAPL now lands on the archive.
	p2 := newPipeline(t, twelve, polygon)
	_, err = p2.orch.Fetch(ctx, "AAPL", models.Range1Y, p2.creds)
	if !errors.As(err, &failed) {
		t.Fatalf("Fetch() error = %v", err)
	}
	archived, err := p.store.LoadSeries(ctx, "AAPL", models.Range1Y)
	if err != nil {
		t.Fatalf("LoadSeries() error = %v", err)
	}
	if archived.Live || archived.Len() != live.Len() {
		t.Fatalf("archived series live=%v candles=%d, want %d", archived.Live, archived.Len(), live.Len())
	}
	observe(p.composer.Compose(archived, nil))

	mu.Lock()
	defer mu.Unlock()
	if len(alerts) != 1 || alerts[0].Type != notify.NotificationNotLive {
		t.Fatalf("alerts = %+v", alerts)
	}
	if got := fmt.Sprint(alerts[0].Data["symbol"]); got != "AAPL" {
		t.Errorf("alert symbol = %s", got)
	}
}
