package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"price-analyst/internal/analysis/scoring"
	"price-analyst/internal/models"
	"price-analyst/internal/notify"
	"price-analyst/internal/resilience"
	"price-analyst/internal/security"
)

func addWatchCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWatchCmd(app))
}

// watcher rescans a watchlist on a schedule.
type watcher struct {
	app      *App
	output   *Output
	screener *scoring.Screener
	symbols  []string
	tag      models.RangeTag
	tracker  *notify.SignalTracker // nil disables alerts
	running  atomic.Bool
	lastRun  atomic.Int64 // unix nanoseconds of the last completed scan
}

// last returns when the last scan completed, zero before the first.
func (w *watcher) last() time.Time {
	ns := w.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// tick runs one scan. Overlapping ticks are skipped.
func (w *watcher) tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.app.Logger.Warn().Msg("Previous scan still running, skipping tick")
		return
	}
	defer w.running.Store(false)

	start := w.app.now()
	results, err := w.screener.Scan(ctx, w.symbols, w.tag)
	if err != nil {
		w.app.Logger.Warn().Err(err).Int("completed", len(results)).Msg("Scan interrupted")
		return
	}

	notLive := 0
	for _, r := range results {
		if r.Err != nil {
			w.app.Logger.Warn().Str("symbol", r.Symbol).Err(security.RedactError(r.Err)).Msg("Symbol failed")
			w.alert(ctx, notify.Notification{
				Type:    notify.NotificationError,
				Title:   r.Symbol + " scan failed",
				Message: security.Redact(r.Err.Error()),
				Data:    map[string]interface{}{"symbol": r.Symbol, "range": w.tag},
			})
			continue
		}
		w.app.record(ctx, r.Report)
		if w.tracker != nil {
			for _, n := range w.tracker.Observe(r.Report) {
				w.alert(ctx, n)
			}
		}
		if !r.Report.Live {
			notLive++
		}
		if !w.output.IsJSON() {
			w.output.Printf("%s  %-12s %s  %3d  %s\n", w.output.DimText(w.app.now().Format("15:04:05")),
				r.Symbol, w.output.Signal(r.Report.Signal), r.Report.Confidence, w.output.LiveTag(r.Report.Live, r.Report.Source))
		}
	}
	if w.output.IsJSON() {
		rows := make([]scanRow, 0, len(results))
		for _, r := range results {
			row := scanRow{Symbol: r.Symbol, Report: r.Report}
			if r.Err != nil {
				row.Error = security.Redact(r.Err.Error())
			}
			rows = append(rows, row)
		}
		_ = w.output.JSON(rows)
	}

	w.lastRun.Store(w.app.now().UnixNano())
	w.app.Logger.Info().
		Int("symbols", len(w.symbols)).
		Int("not_live", notLive).
		Dur("duration", w.app.now().Sub(start)).
		Msg("Scan complete")
}

func (w *watcher) alert(ctx context.Context, n notify.Notification) {
	if w.tracker == nil || w.app.Notifier == nil {
		return
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = w.app.now()
	}
	if err := w.app.Notifier.Send(ctx, n); err != nil {
		w.app.Logger.Warn().Err(security.RedactError(err)).Str("type", string(n.Type)).Msg("Notification failed")
	}
}

// healthMonitor registers the watch mode health checks.
func (w *watcher) healthMonitor(interval time.Duration) *resilience.HealthMonitor {
	m := resilience.NewHealthMonitor(5 * time.Second)
	if w.app.Store != nil {
		m.RegisterComponent("store", resilience.DatabaseHealthCheck(w.app.Store.Ping))
	}
	m.RegisterComponent("providers", resilience.ProviderHealthCheck(w.app.Breakers))
	m.RegisterComponent("scan", resilience.FreshnessHealthCheck(w.last, 2*interval+time.Minute))
	return m
}

// scheduleInterval estimates the gap between two runs of sched.
func scheduleInterval(sched cron.Schedule, now time.Time) time.Duration {
	next := sched.Next(now)
	return sched.Next(next).Sub(next)
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [symbol]...",
		Short: "Rescan a watchlist on a schedule",
		Long: `Scan the given symbols (or watch.symbols from config) on a cron schedule
and record every report. Prometheus metrics are served on /metrics and a
health summary on /healthz.`,
		Example: `  analyst watch AAPL MSFT --schedule "*/5 9-16 * * 1-5"
  analyst watch --addr :9200 --range 1w`,
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			raw := args
			if len(raw) == 0 {
				raw = app.Config.Watch.Symbols
			}
			if len(raw) == 0 {
				return errors.New("no symbols: pass them as arguments or set watch.symbols")
			}
			symbols, err := security.ValidateSymbols(raw)
			if err != nil {
				return err
			}

			tag := app.Config.WatchRange()
			if cmd.Flags().Changed("range") {
				if tag, err = rangeFlag(cmd, app); err != nil {
					return err
				}
			}

			spec, _ := cmd.Flags().GetString("schedule")
			if spec == "" {
				spec = app.Config.Watch.Schedule
			}
			if !strings.HasPrefix(spec, "CRON_TZ=") && !strings.HasPrefix(spec, "TZ=") {
				spec = "CRON_TZ=" + app.Config.Location().String() + " " + spec
			}
			sched, err := cron.ParseStandard(spec)
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Watch.MetricsAddr
			}
			once, _ := cmd.Flags().GetBool("once")

			w := &watcher{
				app:      app,
				output:   output,
				screener: app.screener(app.Config.Scan.Benchmark, app.Config.Scan.MinConfidence),
				symbols:  symbols,
				tag:      tag,
			}
			if app.Notifier.Enabled() {
				w.tracker = notify.NewSignalTracker()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if once {
				w.tick(ctx)
				return nil
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
			mux.Handle("/healthz", w.healthMonitor(scheduleInterval(sched, app.now())).HealthHTTPHandler())
			server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			go func() {
				app.Logger.Info().Str("addr", addr).Msg("Serving metrics and health")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					app.Logger.Error().Err(err).Msg("Metrics server failed")
				}
			}()

			c := cron.New(cron.WithLocation(app.Config.Location()))
			c.Schedule(sched, cron.FuncJob(func() { w.tick(ctx) }))
			c.Start()
			app.Logger.Info().Str("schedule", spec).Strs("symbols", symbols).Str("range", string(tag)).Msg("Watch started")

			// First scan immediately rather than waiting for the schedule.
			go w.tick(ctx)

			<-ctx.Done()
			app.Logger.Info().Msg("Shutting down watch")

			<-c.Stop().Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}),
	}
	addRangeFlag(cmd)
	cmd.Flags().String("schedule", "", "cron schedule, five fields (default from config)")
	cmd.Flags().String("addr", "", "listen address for /metrics and /healthz (default from config)")
	cmd.Flags().Bool("once", false, "run a single scan and exit")
	return cmd
}
