package notify

import (
	"fmt"
	"sync"

	"price-analyst/internal/analysis"
)

type lastSeen struct {
	signal analysis.Signal
	live   bool
}

// SignalTracker remembers the last report per symbol and range and turns
// changes into notifications. The first report for a key only primes it.
type SignalTracker struct {
	mu   sync.Mutex
	last map[string]lastSeen
}

// NewSignalTracker creates an empty tracker.
func NewSignalTracker() *SignalTracker {
	return &SignalTracker{last: make(map[string]lastSeen)}
}

// Observe records rep and returns the notifications it triggers.
func (t *SignalTracker) Observe(rep *analysis.Report) []Notification {
	if rep == nil || rep.Insufficient() {
		return nil
	}
	key := rep.Symbol + "|" + string(rep.Range)

	t.mu.Lock()
	prev, seen := t.last[key]
	t.last[key] = lastSeen{signal: rep.Signal, live: rep.Live}
	t.mu.Unlock()

	if !seen {
		return nil
	}

	var out []Notification
	if prev.live && !rep.Live {
		out = append(out, Notification{
			Type:    NotificationNotLive,
			Title:   rep.Symbol + " data is no longer live",
			Message: fmt.Sprintf("Every provider failed for %s %s; reports now use %s data.", rep.Symbol, rep.Range, rep.Source),
			Data:    map[string]interface{}{"symbol": rep.Symbol, "range": rep.Range, "source": rep.Source},
		})
	}
	// Flips computed from non-live data are not actionable.
	if rep.Live && prev.signal != rep.Signal {
		out = append(out, Notification{
			Type:  NotificationSignal,
			Title: fmt.Sprintf("%s turned %s", rep.Symbol, rep.Signal),
			Message: fmt.Sprintf("%s %s: %s -> %s at %d%% confidence (%s).",
				rep.Symbol, rep.Range, prev.signal, rep.Signal, rep.Confidence, rep.Pattern),
			Data: map[string]interface{}{
				"symbol":     rep.Symbol,
				"range":      rep.Range,
				"from":       prev.signal,
				"to":         rep.Signal,
				"confidence": rep.Confidence,
				"price":      rep.Snapshot.Price,
				"report_id":  rep.ID,
			},
		})
	}
	return out
}
