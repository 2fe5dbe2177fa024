// Package narrative asks a language model for a pattern name and a short
// narrative on top of a finished rule-based report.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"price-analyst/internal/analysis"
	apperrors "price-analyst/internal/errors"
)

const (
	// DefaultTimeout bounds one narrative request.
	DefaultTimeout = 20 * time.Second

	maxPatternLen   = 48
	maxNarrativeLen = 1200
)

// Narration is the parsed model answer.
type Narration struct {
	Pattern   string
	Narrative string
}

// Narrator produces a narration for a report.
type Narrator interface {
	Narrate(ctx context.Context, report *analysis.Report) (*Narration, error)
}

// OpenAINarrator builds a prompt from the report and its indicator
// snapshot and parses PATTERN: and NARRATIVE: lines from the answer.
type OpenAINarrator struct {
	llm     Completer
	model   string
	timeout time.Duration
}

// NarratorOption configures an OpenAINarrator.
type NarratorOption func(*OpenAINarrator)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) NarratorOption {
	return func(n *OpenAINarrator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithModelName labels errors with the model name.
func WithModelName(model string) NarratorOption {
	return func(n *OpenAINarrator) { n.model = model }
}

// NewOpenAINarrator creates a narrator on top of llm.
func NewOpenAINarrator(llm Completer, opts ...NarratorOption) *OpenAINarrator {
	n := &OpenAINarrator{llm: llm, model: "openai", timeout: DefaultTimeout}
	if c, ok := llm.(*OpenAIClient); ok {
		n.model = c.Model()
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

const systemPrompt = `You are a technical analyst writing a short note on a price chart.
You are given indicator readings, support and resistance levels and a rule-based verdict.
Do not give financial advice or price targets that are not in the data.
Your response must be in the following exact format:
PATTERN: <chart pattern name, at most five words>
NARRATIVE: <two to four sentences on trend, momentum and the key levels>`

// Narrate asks the model for a narration. Errors are *errors.NarrativeError.
func (n *OpenAINarrator) Narrate(ctx context.Context, report *analysis.Report) (*Narration, error) {
	if report == nil || report.Insufficient() {
		return nil, apperrors.NewNarrativeError(n.model, "narrate", apperrors.ErrInputValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	response, err := n.llm.CompleteWithSystem(ctx, systemPrompt, BuildPrompt(report))
	if err != nil {
		return nil, apperrors.NewNarrativeError(n.model, "complete", err)
	}

	narration, ok := ParseResponse(response)
	if !ok {
		return nil, apperrors.NewNarrativeError(n.model, "parse", apperrors.ErrNoData)
	}
	return narration, nil
}

// BuildPrompt renders the report facts the model is allowed to use.
func BuildPrompt(r *analysis.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Symbol: %s\n", r.Symbol))
	sb.WriteString(fmt.Sprintf("Range: %s (%d candles)\n", r.Range, r.Candles))
	sb.WriteString(fmt.Sprintf("Current Price: %.2f\n", r.Snapshot.Price))
	sb.WriteString(fmt.Sprintf("Rule-based verdict: %s, confidence %d, pattern %q\n\n", r.Signal, r.Confidence, r.Pattern))

	sb.WriteString("Indicators:\n")
	s := r.Snapshot
	for _, ind := range []struct {
		name string
		v    *float64
	}{
		{"RSI(14)", s.RSI},
		{"MACD", s.MACD},
		{"MACD signal", s.MACDSignal},
		{"MACD histogram", s.MACDHist},
		{"SMA20", s.SMA20},
		{"SMA50", s.SMA50},
		{"SMA200", s.SMA200},
		{"Bollinger upper", s.BBUpper},
		{"Bollinger lower", s.BBLower},
		{"ATR(14)", s.ATR},
		{"Volume ratio", s.VolumeRatio},
		{"Relative strength", s.RelStrength},
	} {
		if ind.v != nil {
			sb.WriteString(fmt.Sprintf("  - %s: %.2f\n", ind.name, *ind.v))
		}
	}
	sb.WriteString("\n")

	writeLevels(&sb, "Supports", r.Supports)
	writeLevels(&sb, "Resistances", r.Resistances)

	if len(r.Setups) > 0 {
		sb.WriteString("Setups:\n")
		for _, st := range r.Setups {
			sb.WriteString(fmt.Sprintf("  - %s (%s, %d): %s\n", st.Type, st.Direction, st.Confidence, st.Description))
		}
		sb.WriteString("\n")
	}

	if len(r.Reasoning) > 0 {
		sb.WriteString("Rule notes:\n")
		for _, line := range r.Reasoning {
			sb.WriteString("  - " + line + "\n")
		}
	}
	return sb.String()
}

func writeLevels(sb *strings.Builder, title string, levels []analysis.Level) {
	if len(levels) == 0 {
		return
	}
	sb.WriteString(title + ":\n")
	for _, l := range levels {
		sb.WriteString(fmt.Sprintf("  - %.2f (touches %d)\n", l.Price, l.Touches))
	}
	sb.WriteString("\n")
}

// ParseResponse extracts the PATTERN and NARRATIVE lines. A narrative may
// continue on the lines after its label. It reports false when no
// narrative was found.
func ParseResponse(response string) (*Narration, bool) {
	n := &Narration{}
	var narrative []string
	inNarrative := false

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*_"))
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "PATTERN:"):
			n.Pattern = strings.Trim(labelValue(line, "PATTERN:"), `"' `)
			inNarrative = false
		case strings.HasPrefix(upper, "NARRATIVE:"):
			narrative = append(narrative[:0], labelValue(line, "NARRATIVE:"))
			inNarrative = true
		case inNarrative && line != "":
			narrative = append(narrative, line)
		}
	}

	n.Narrative = truncate(strings.TrimSpace(strings.Join(narrative, " ")), maxNarrativeLen)
	if utf8.RuneCountInString(n.Pattern) > maxPatternLen {
		n.Pattern = ""
	}
	return n, n.Narrative != ""
}

// labelValue returns the text after label with any emphasis markers that
// closed the label removed.
func labelValue(line, label string) string {
	return strings.TrimSpace(strings.TrimLeft(line[len(label):], "*_ "))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}

// Enrich returns a copy of report carrying the model narration. When n is
// nil or the request fails the rule-based report is returned unchanged.
func Enrich(ctx context.Context, n Narrator, report *analysis.Report, logger zerolog.Logger) *analysis.Report {
	if n == nil || report == nil {
		return report
	}

	narration, err := n.Narrate(ctx, report)
	if err != nil {
		logger.Warn().Err(err).Str("symbol", report.Symbol).Msg("Narrative unavailable, keeping rule-based report")
		return report
	}

	out := *report
	out.Narrative = narration.Narrative
	out.NarrativeSource = analysis.NarrativeAI
	if narration.Pattern != "" {
		out.Pattern = narration.Pattern
	}
	return &out
}
