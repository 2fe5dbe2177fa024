package report

import (
	"fmt"
	"math"
	"strings"

	"price-analyst/internal/analysis"
	"price-analyst/internal/analysis/patterns"
)

// reasoning builds the per-indicator interpretation trail.
func reasoning(r *analysis.Report, st patterns.Structure, votes []string, bull, bear int) []string {
	s := r.Snapshot
	var out []string

	if s.RSI != nil {
		rsi := *s.RSI
		switch {
		case rsi >= 70:
			out = append(out, fmt.Sprintf("RSI %.1f is overbought", rsi))
		case rsi <= 30:
			out = append(out, fmt.Sprintf("RSI %.1f is oversold", rsi))
		case rsi > rsiBullVote:
			out = append(out, fmt.Sprintf("RSI %.1f shows bullish momentum", rsi))
		case rsi < rsiBearVote:
			out = append(out, fmt.Sprintf("RSI %.1f shows bearish momentum", rsi))
		default:
			out = append(out, fmt.Sprintf("RSI %.1f is neutral", rsi))
		}
	} else {
		out = append(out, "RSI unavailable: not enough history")
	}

	if s.MACD != nil && s.MACDSignal != nil && s.MACDHist != nil {
		rel := "above"
		if *s.MACD < *s.MACDSignal {
			rel = "below"
		}
		out = append(out, fmt.Sprintf("MACD %.3f is %s its signal %.3f (histogram %.3f)", *s.MACD, rel, *s.MACDSignal, *s.MACDHist))
	}

	if s.SMA20 != nil && s.SMA50 != nil {
		switch {
		case s.Price > *s.SMA20 && *s.SMA20 > *s.SMA50:
			out = append(out, fmt.Sprintf("Price %.2f above SMA20 %.2f above SMA50 %.2f: trend aligned up", s.Price, *s.SMA20, *s.SMA50))
		case s.Price < *s.SMA20 && *s.SMA20 < *s.SMA50:
			out = append(out, fmt.Sprintf("Price %.2f below SMA20 %.2f below SMA50 %.2f: trend aligned down", s.Price, *s.SMA20, *s.SMA50))
		default:
			out = append(out, fmt.Sprintf("Moving averages mixed: price %.2f, SMA20 %.2f, SMA50 %.2f", s.Price, *s.SMA20, *s.SMA50))
		}
	}
	if s.SMA200 != nil {
		side := "above"
		if s.Price < *s.SMA200 {
			side = "below"
		}
		out = append(out, fmt.Sprintf("Price is %s the 200-period average %.2f", side, *s.SMA200))
	}

	if s.BBUpper != nil && s.BBLower != nil {
		switch {
		case s.Price >= *s.BBUpper:
			out = append(out, fmt.Sprintf("Price is riding the upper Bollinger band %.2f", *s.BBUpper))
		case s.Price <= *s.BBLower:
			out = append(out, fmt.Sprintf("Price is pressing the lower Bollinger band %.2f", *s.BBLower))
		default:
			out = append(out, fmt.Sprintf("Price inside Bollinger bands %.2f-%.2f", *s.BBLower, *s.BBUpper))
		}
	}

	if s.VolumeRatio != nil {
		out = append(out, fmt.Sprintf("Volume is %.2fx its 20-period average", *s.VolumeRatio))
	}
	if s.RelStrength != nil {
		verb := "Outperforming"
		if *s.RelStrength < 0 {
			verb = "Underperforming"
		}
		out = append(out, fmt.Sprintf("%s the benchmark by %.2f points", verb, math.Abs(*s.RelStrength)))
	}

	if st.FromSwings {
		out = append(out, fmt.Sprintf("Swing structure (%d swings, higher highs=%t, higher lows=%t) reads as %s",
			st.Swings, st.HigherHighs, st.HigherLows, r.Pattern))
	} else {
		out = append(out, fmt.Sprintf("No confirmed swing structure; net drift %.2f%% reads as %s", st.NetDriftPct, r.Pattern))
	}

	if len(r.Supports) > 0 && len(r.Resistances) > 0 {
		out = append(out, fmt.Sprintf("Nearest support %.2f, nearest resistance %.2f", r.Supports[0].Price, r.Resistances[0].Price))
	}

	out = append(out, fmt.Sprintf("Indicator vote %d bullish / %d bearish (%s) -> %s", bull, bear, strings.Join(votes, ", "), r.Signal))

	for _, f := range r.Setups {
		out = append(out, fmt.Sprintf("Setup %s (%s, %d%%): %s", f.Type, f.Direction, f.Confidence, f.Description))
	}
	b := r.Breakdown
	out = append(out, fmt.Sprintf("Score trend %d + technical %d + volume %d + risk/reward %d + momentum %d = %d",
		b.Trend, b.Technical, b.Volume, b.RiskReward, b.Momentum, b.Total))
	return out
}

// ruleNarrative is the narrative used when no AI narrative is available.
func ruleNarrative(r *analysis.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s shows a %s on the %s view with a %s bias at %d%% confidence.",
		r.Symbol, r.Pattern, r.Range, strings.ToLower(string(r.Signal)), r.Confidence)
	if len(r.Supports) > 0 && len(r.Resistances) > 0 {
		fmt.Fprintf(&b, " Support sits near %.2f and resistance near %.2f.", r.Supports[0].Price, r.Resistances[0].Price)
	}
	if p := r.PrimarySetup; p != nil {
		fmt.Fprintf(&b, " Primary setup: %s (%s).", p.Type, p.Direction)
	}
	if !r.Live {
		b.WriteString(" Data is not live.")
	}
	return b.String()
}
