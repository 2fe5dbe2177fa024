package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/mtf"
	"price-analyst/internal/analysis/scoring"
	"price-analyst/internal/logging"
	"price-analyst/internal/models"
	"price-analyst/internal/narrative"
	"price-analyst/internal/security"
)

const commandTimeout = 2 * time.Minute

// addAnalysisCommands adds the fetch and analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newMTFCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

// rangeFlag reads --range, falling back to the configured default.
func rangeFlag(cmd *cobra.Command, app *App) (models.RangeTag, error) {
	raw, _ := cmd.Flags().GetString("range")
	if raw == "" {
		return app.Config.DefaultRange(), nil
	}
	tag, ok := models.ParseRange(raw)
	if !ok {
		return "", fmt.Errorf("invalid range %q: use 1d, 1w, 1m, 3m, 6m, ytd, 1y, 5y or all", raw)
	}
	return tag, nil
}

func addRangeFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("range", "r", "", "range: 1d, 1w, 1m, 3m, 6m, ytd, 1y, 5y, all (default from config)")
}

// analyzeResult is the JSON form of `analyze`.
type analyzeResult struct {
	Report   *analysis.Report `json:"report"`
	Currency string           `json:"currency,omitempty"`
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Technical report for a symbol",
		Long: `Fetch a series and build a technical report: indicators, support and
resistance levels, trade setups, a confidence breakdown and an overall signal.

With --ai (or narrative.enabled in config) an OpenAI model writes the pattern
name and narrative; on any failure the rule-based narrative is kept.`,
		Example: `  analyst analyze AAPL
  analyst analyze RELIANCE.NS --range 1y
  analyst analyze MSFT -r 1d --ai --json`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			tag, err := rangeFlag(cmd, app)
			if err != nil {
				return err
			}

			if !output.IsJSON() {
				output.Dim("Analyzing %s over %s...", strings.ToUpper(args[0]), tag)
			}
			series, err := app.fetchSeries(ctx, args[0], tag)
			if err != nil {
				return err
			}

			rep := app.Composer.Compose(series, nil)

			useAI, _ := cmd.Flags().GetBool("ai")
			if useAI || app.Config.Narrative.Enabled {
				n := app.narrator(ctx)
				if n == nil && useAI {
					output.Warning("No OpenAI key configured, using the rule-based narrative")
				}
				rep = narrative.Enrich(ctx, n, rep, app.Logger)
			}

			app.record(ctx, rep)

			if output.IsJSON() {
				return output.JSON(analyzeResult{Report: rep, Currency: series.Currency})
			}
			renderReport(output, rep, series.Currency)
			return nil
		}),
	}
	addRangeFlag(cmd)
	cmd.Flags().Bool("ai", false, "ask the configured OpenAI model for the narrative")
	return cmd
}

// record counts a report and appends it to history.
func (a *App) record(ctx context.Context, rep *analysis.Report) {
	a.Metrics.ObserveReport(string(rep.Signal), rep.Live)
	logging.LogReport(a.Logger, rep.Symbol, string(rep.Signal), rep.Pattern, rep.Confidence)
	if a.Store == nil || !a.Config.Store.History {
		return
	}
	if err := a.Store.SaveReport(ctx, rep); err != nil {
		a.Logger.Warn().Err(err).Str("symbol", rep.Symbol).Msg("Failed to save report")
	}
}

func renderReport(output *Output, rep *analysis.Report, currency string) {
	output.Printf("%s  %s  %s\n", output.BoldText(rep.Symbol), output.DimText(strings.ToUpper(string(rep.Range))), output.LiveTag(rep.Live, rep.Source))
	output.Println()

	if rep.Insufficient() {
		output.Warning("Not enough data for analysis (%d candles)", rep.Candles)
		output.Println(rep.Narrative)
		return
	}

	snap := rep.Snapshot
	output.Printf("  Price:       %s\n", FormatPrice(snap.Price, currency))
	output.Printf("  Signal:      %s\n", output.Signal(rep.Signal))
	output.Printf("  Confidence:  %s\n", FormatConfidence(rep.Confidence))
	output.Printf("  Pattern:     %s\n", rep.Pattern)
	output.Println()

	ind := []string{
		"RSI(14)     " + optional(snap.RSI, 1),
		"MACD        " + optional(snap.MACD, 2) + " / " + optional(snap.MACDSignal, 2),
		"SMA 20/50   " + optional(snap.SMA20, 2) + " / " + optional(snap.SMA50, 2),
		"SMA 200     " + optional(snap.SMA200, 2),
		"Bollinger   " + optional(snap.BBLower, 2) + " - " + optional(snap.BBUpper, 2),
		"ATR(14)     " + optional(snap.ATR, 2),
		"Volume      " + optional(snap.VolumeRatio, 2) + "x avg",
	}
	if snap.RelStrength != nil {
		ind = append(ind, "Rel. str.   "+FormatPercent(*snap.RelStrength))
	}
	output.Box("Indicators", ind)
	output.Println()

	levels := NewTable(output, "LEVEL", "PRICE", "TOUCHES", "STRENGTH")
	for _, l := range rep.Resistances {
		levels.AddRow(output.Red(levelName("Resistance", l)), FormatPrice(l.Price, currency), strconv.Itoa(l.Touches), fmt.Sprintf("%.0f", l.Strength))
	}
	for _, l := range rep.Supports {
		levels.AddRow(output.Green(levelName("Support", l)), FormatPrice(l.Price, currency), strconv.Itoa(l.Touches), fmt.Sprintf("%.0f", l.Strength))
	}
	levels.Render()
	output.Println()

	b := rep.Breakdown
	output.Bold("Score breakdown")
	output.Printf("  Trend %d/%d  Technical %d/%d  Volume %d/%d  Risk/Reward %d/%d  Momentum %d/%d  = %d\n",
		b.Trend, scoring.MaxTrend, b.Technical, scoring.MaxTechnical, b.Volume, scoring.MaxVolume,
		b.RiskReward, scoring.MaxRiskReward, b.Momentum, scoring.MaxMomentum, b.Total)
	output.Println()

	if len(rep.Setups) > 0 {
		setups := NewTable(output, "SETUP", "DIRECTION", "CONF", "DETAIL")
		for _, s := range rep.Setups {
			setups.AddRow(string(s.Type), directionText(output, s.Direction), strconv.Itoa(s.Confidence), TruncateString(s.Description, 60))
		}
		setups.Render()
		output.Println()
	}

	output.Bold("Narrative (%s)", rep.NarrativeSource)
	output.Println("  " + rep.Narrative)
	if len(rep.Reasoning) > 0 {
		output.Println()
		for _, r := range rep.Reasoning {
			output.Dim("  • %s", r)
		}
	}
	if !rep.Live {
		output.Println()
		output.Warning("Data is not live: every provider failed. Figures above are illustrative only.")
	}
}

func levelName(kind string, l analysis.Level) string {
	if l.Fallback {
		return kind + " (range)"
	}
	return kind
}

func directionText(output *Output, d analysis.Direction) string {
	switch d {
	case analysis.Bullish:
		return output.Green(string(d))
	case analysis.Bearish:
		return output.Red(string(d))
	default:
		return output.Yellow(string(d))
	}
}

func optional(v *float64, prec int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <symbol>",
		Short: "Fetch a price series",
		Long: `Fetch an OHLCV series through the provider chain and print the candles.
The source provider is shown; archived and placeholder data are marked NOT LIVE.`,
		Example: `  analyst fetch AAPL --range 1w
  analyst fetch INFY.NS --json`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			tag, err := rangeFlag(cmd, app)
			if err != nil {
				return err
			}
			series, err := app.fetchSeries(ctx, args[0], tag)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(series)
			}

			limit, _ := cmd.Flags().GetInt("limit")
			output.Printf("%s  %s  %s  %d candles, fetched %s\n",
				output.BoldText(series.Symbol), strings.ToUpper(string(series.Range)),
				output.LiveTag(series.Live, series.Source), series.Len(), FormatAge(series.FetchedAt, app.now()))
			output.Println()

			candles := series.Candles
			if limit > 0 && len(candles) > limit {
				candles = candles[len(candles)-limit:]
			}
			loc := app.Config.Location()
			layout := "2006-01-02"
			if tag.Intraday() {
				layout = "01-02 15:04"
			}

			table := NewTable(output, "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
			for _, c := range candles {
				closeText := FormatPrice(c.Close, series.Currency)
				if c.IsUp() {
					closeText = output.Green(closeText)
				} else {
					closeText = output.Red(closeText)
				}
				table.AddRow(
					c.Timestamp.In(loc).Format(layout),
					FormatPrice(c.Open, series.Currency),
					FormatPrice(c.High, series.Currency),
					FormatPrice(c.Low, series.Currency),
					closeText,
					FormatVolume(c.Volume, series.Currency),
				)
			}
			table.Render()
			return nil
		}),
	}
	addRangeFlag(cmd)
	cmd.Flags().Int("limit", 20, "show only the last N candles (0 for all)")
	return cmd
}

// scanRow is the JSON form of one scan result.
type scanRow struct {
	Symbol string           `json:"symbol"`
	Report *analysis.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <symbol>...",
		Short: "Analyze several symbols and rank them",
		Long: `Analyze each symbol in turn, pausing between requests to respect provider
limits, and rank the results by confidence. With --benchmark the report
includes relative strength against that symbol.`,
		Example: `  analyst scan AAPL MSFT NVDA
  analyst scan RELIANCE.NS TCS.NS INFY.NS --benchmark ^NSEI --range 6m`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			symbols, err := security.ValidateSymbols(args)
			if err != nil {
				return err
			}
			tag, err := rangeFlag(cmd, app)
			if err != nil {
				return err
			}
			benchmark, _ := cmd.Flags().GetString("benchmark")
			if benchmark == "" {
				benchmark = app.Config.Scan.Benchmark
			}
			minConf, _ := cmd.Flags().GetInt("min-confidence")
			if !cmd.Flags().Changed("min-confidence") {
				minConf = app.Config.Scan.MinConfidence
			}

			timeout := commandTimeout + time.Duration(len(symbols))*(app.Config.Scan.Delay+app.Config.Data.AttemptTimeout)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			results, scanErr := app.screener(benchmark, minConf).Scan(ctx, symbols, tag)
			for _, r := range results {
				if r.Report != nil {
					app.record(ctx, r.Report)
				}
			}

			if output.IsJSON() {
				rows := make([]scanRow, 0, len(results))
				for _, r := range results {
					row := scanRow{Symbol: r.Symbol, Report: r.Report}
					if r.Err != nil {
						row.Error = security.Redact(r.Err.Error())
					}
					rows = append(rows, row)
				}
				if err := output.JSON(rows); err != nil {
					return err
				}
				return scanErr
			}

			table := NewTable(output, "#", "SYMBOL", "SIGNAL", "CONF", "PATTERN", "SETUP", "SOURCE")
			for i, r := range results {
				if r.Err != nil {
					table.AddRow(strconv.Itoa(i+1), r.Symbol, output.Red("error"), "", TruncateString(security.Redact(r.Err.Error()), 40), "", "")
					continue
				}
				rep := r.Report
				setup := "-"
				if rep.PrimarySetup != nil {
					setup = string(rep.PrimarySetup.Type)
				}
				table.AddRow(strconv.Itoa(i+1), rep.Symbol, output.Signal(rep.Signal), strconv.Itoa(rep.Confidence),
					TruncateString(rep.Pattern, 24), setup, output.LiveTag(rep.Live, rep.Source))
			}
			table.Render()
			return scanErr
		}),
	}
	addRangeFlag(cmd)
	cmd.Flags().String("benchmark", "", "benchmark symbol for relative strength (default from config)")
	cmd.Flags().Int("min-confidence", 0, "drop results below this confidence")
	return cmd
}

// errBenchmarkNotLive keeps placeholder candles out of relative strength.
var errBenchmarkNotLive = errors.New("benchmark data is not live")

// screener builds a screener over the fallback-aware fetch path.
func (a *App) screener(benchmark string, minConfidence int) *scoring.Screener {
	bench := strings.ToUpper(strings.TrimSpace(benchmark))
	source := scoring.SeriesSourceFunc(func(ctx context.Context, symbol string, tag models.RangeTag) (*models.Series, error) {
		s, err := a.fetchSeries(ctx, symbol, tag)
		if err != nil {
			return nil, err
		}
		if bench != "" && s.Symbol == bench && !s.Live {
			return nil, errBenchmarkNotLive
		}
		return s, nil
	})

	opts := []scoring.ScreenerOption{
		scoring.WithDelay(a.Config.Scan.Delay),
		scoring.WithMinConfidence(minConfidence),
		scoring.WithScanLogger(a.Logger),
	}
	if bench != "" {
		opts = append(opts, scoring.WithBenchmark(bench))
	}
	return scoring.NewScreener(source, a.Composer, opts...)
}

func newMTFCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mtf <symbol>",
		Short: "Multi-range confluence analysis",
		Long: `Analyze a symbol over several ranges (1d, 1w, 3m and 1y by default) and
combine the verdicts. Longer ranges carry more weight.`,
		Example: `  analyst mtf AAPL
  analyst mtf TCS.NS --ranges 1w,3m,1y`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, err := security.ValidateSymbol(args[0])
			if err != nil {
				return err
			}

			var ranges []models.RangeTag
			raw, _ := cmd.Flags().GetStringSlice("ranges")
			for _, r := range raw {
				tag, ok := models.ParseRange(r)
				if !ok {
					return fmt.Errorf("invalid range %q", r)
				}
				ranges = append(ranges, tag)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			source := scoring.SeriesSourceFunc(app.fetchSeries)
			analyzer := mtf.NewAnalyzer(source, app.Composer, mtf.WithRanges(ranges...), mtf.WithLogger(app.Logger))
			result, err := analyzer.Analyze(ctx, symbol)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(mtfView(result))
			}
			output.Println(result.FormatResult())
			if !result.Live {
				output.Warning("Some ranges are not live.")
			}
			return nil
		}),
	}
	cmd.Flags().StringSlice("ranges", nil, "ranges to combine (default 1d,1w,3m,1y)")
	return cmd
}

func mtfView(r *mtf.Result) map[string]interface{} {
	ranges := make(map[string]interface{}, len(r.Ranges))
	for tag, ra := range r.Ranges {
		if ra.Err != nil {
			ranges[string(tag)] = map[string]string{"error": security.Redact(ra.Err.Error())}
			continue
		}
		ranges[string(tag)] = ra.Report
	}
	return map[string]interface{}{
		"symbol":          r.Symbol,
		"confluence":      r.Confluence,
		"trend_alignment": r.TrendAlignment,
		"signal":          r.OverallSignal,
		"score":           r.OverallScore,
		"bullish":         r.BullishCount,
		"bearish":         r.BearishCount,
		"neutral":         r.NeutralCount,
		"live":            r.Live,
		"ranges":          ranges,
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [symbol]",
		Short: "Show recent reports",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.New("store unavailable: check store.path in config")
			}

			symbol := ""
			if len(args) == 1 {
				s, err := security.ValidateSymbol(args[0])
				if err != nil {
					return err
				}
				symbol = s
			}
			limit, _ := cmd.Flags().GetInt("limit")

			rows, err := app.Store.RecentReports(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Dim("No reports recorded yet.")
				return nil
			}

			table := NewTable(output, "WHEN", "SYMBOL", "RANGE", "SIGNAL", "CONF", "PATTERN", "SOURCE")
			for _, r := range rows {
				table.AddRow(FormatAge(r.GeneratedAt, app.now()), r.Symbol, strings.ToUpper(string(r.Range)),
					output.Signal(analysis.Signal(r.Signal)), strconv.Itoa(r.Confidence), TruncateString(r.Pattern, 24),
					output.LiveTag(r.Live, r.Source))
			}
			table.Render()
			return nil
		}),
	}
	cmd.Flags().Int("limit", 20, "number of reports")
	return cmd
}
