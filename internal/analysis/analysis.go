// Package analysis provides the shared types of the technical-analysis engine:
// support/resistance levels, setup findings, score breakdowns and reports.
package analysis

import (
	"time"

	"price-analyst/internal/models"
)

// MinCandles is the shortest series that gets a full report.
const MinCandles = 5

// MinScoredCandles is the shortest series the setup detector and scorer act on.
const MinScoredCandles = 50

// Direction is the expected direction of a setup or report.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Signal is the directional verdict of a report.
type Signal string

const (
	SignalBullish Signal = "BULLISH"
	SignalBearish Signal = "BEARISH"
	SignalNeutral Signal = "NEUTRAL"
)

// Direction converts a report signal into a setup direction.
func (s Signal) Direction() Direction {
	switch s {
	case SignalBullish:
		return Bullish
	case SignalBearish:
		return Bearish
	default:
		return Neutral
	}
}

// LevelType represents the type of price level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
	LevelBoth       LevelType = "both"
)

// Level is a clustered support or resistance level. Fallback marks a level
// taken from the series' literal high or low because no cluster existed on
// that side of price.
type Level struct {
	Price    float64   `json:"price"`
	Type     LevelType `json:"type"`
	Touches  int       `json:"touches"`
	Volume   float64   `json:"volume"`
	Recency  float64   `json:"recency"`
	Strength float64   `json:"strength"`
	Fallback bool      `json:"fallback,omitempty"`
}

// SetupType names a rule-detected setup.
type SetupType string

const (
	SetupBreakout           SetupType = "Breakout"
	SetupPullback           SetupType = "Pullback"
	SetupSqueeze            SetupType = "Squeeze"
	SetupRSIDivergence      SetupType = "RSI Divergence"
	SetupVolumeClimax       SetupType = "Volume Climax"
	SetupMACDCrossover      SetupType = "MACD Crossover"
	SetupOversoldBounce     SetupType = "Oversold Bounce"
	SetupOverboughtReversal SetupType = "Overbought Reversal"
)

// Setup is one finding emitted by the setup detector.
type Setup struct {
	Type        SetupType `json:"type"`
	Direction   Direction `json:"direction"`
	Confidence  int       `json:"confidence"`
	Description string    `json:"description"`
}

// Breakdown is the per-bucket result of the confidence scorer.
type Breakdown struct {
	Trend      int `json:"trend"`
	Technical  int `json:"technical"`
	Volume     int `json:"volume"`
	RiskReward int `json:"risk_reward"`
	Momentum   int `json:"momentum"`
	Total      int `json:"total"`
}

// Pattern labels produced by the report composer.
const (
	PatternAscendingChannel    = "Ascending Channel"
	PatternDescendingChannel   = "Descending Channel"
	PatternSymmetricalTriangle = "Symmetrical Triangle"
	PatternExpandingWedge      = "Expanding Wedge"
	PatternConsolidation       = "Consolidation"
	PatternMomentumBreakout    = "Momentum Breakout"
	PatternMomentumBreakdown   = "Momentum Breakdown"
	PatternInsufficientData    = "Insufficient Data"
)

// TracePoint is one vertex of the pattern overlay.
type TracePoint struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Kind      string    `json:"kind"` // high, low or anchor
}

// Snapshot holds the latest readings that fed the report.
type Snapshot struct {
	Price       float64  `json:"price"`
	RSI         *float64 `json:"rsi,omitempty"`
	MACD        *float64 `json:"macd,omitempty"`
	MACDSignal  *float64 `json:"macd_signal,omitempty"`
	MACDHist    *float64 `json:"macd_histogram,omitempty"`
	SMA20       *float64 `json:"sma20,omitempty"`
	SMA50       *float64 `json:"sma50,omitempty"`
	SMA200      *float64 `json:"sma200,omitempty"`
	BBUpper     *float64 `json:"bb_upper,omitempty"`
	BBLower     *float64 `json:"bb_lower,omitempty"`
	ATR         *float64 `json:"atr,omitempty"`
	VolumeRatio *float64 `json:"volume_ratio,omitempty"`
	RelStrength *float64 `json:"relative_strength,omitempty"`
}

// Narrative sources.
const (
	NarrativeRuleBased = "rule-based"
	NarrativeAI        = "ai"
)

// Report is the terminal analysis record for one series.
type Report struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Range           models.RangeTag `json:"range"`
	Signal          Signal          `json:"signal"`
	Confidence      int             `json:"confidence"`
	Pattern         string          `json:"pattern"`
	Narrative       string          `json:"narrative"`
	NarrativeSource string          `json:"narrative_source"`
	Supports        []Level         `json:"supports"`
	Resistances     []Level         `json:"resistances"`
	Breakdown       Breakdown       `json:"breakdown"`
	Setups          []Setup         `json:"setups"`
	PrimarySetup    *Setup          `json:"primary_setup,omitempty"`
	Trace           []TracePoint    `json:"trace"`
	Reasoning       []string        `json:"reasoning"`
	Snapshot        Snapshot        `json:"snapshot"`
	Source          string          `json:"source"`
	Live            bool            `json:"live"`
	Candles         int             `json:"candles"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// Insufficient reports whether the report was produced without enough candles.
func (r *Report) Insufficient() bool {
	return r.Pattern == PatternInsufficientData
}
