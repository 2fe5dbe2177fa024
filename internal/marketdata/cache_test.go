package marketdata

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"price-analyst/internal/models"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time         { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func seriesFor(symbol string, tag models.RangeTag) *models.Series {
	return &models.Series{
		Symbol:  symbol,
		Range:   tag,
		Source:  string(Polygon),
		Candles: []models.Candle{{Timestamp: testNow, Open: 1, High: 1, Low: 1, Close: 1}},
		Live:    true,
	}
}

func TestMemoryCache_RoundTripAndTTL(t *testing.T) {
	clock := &manualClock{t: testNow}
	c := NewMemoryCache(WithCacheClock(clock.now))

	daily := seriesFor("AAPL", models.Range3M)
	intraday := seriesFor("AAPL", models.Range1D)
	c.Set("AAPL", models.Range3M, daily)
	c.Set("AAPL", models.Range1D, intraday)

	if got, ok := c.Get("AAPL", models.Range3M); !ok || got != daily {
		t.Fatal("daily series not returned")
	}
	if _, ok := c.Get("MSFT", models.Range3M); ok {
		t.Fatal("unexpected hit for unknown symbol")
	}

	clock.advance(DefaultIntradayTTL - time.Second)
	if _, ok := c.Get("AAPL", models.Range1D); !ok {
		t.Fatal("intraday entry expired early")
	}

	clock.advance(time.Second)
	if _, ok := c.Get("AAPL", models.Range1D); ok {
		t.Fatal("intraday entry served at its TTL")
	}
	if _, ok := c.Get("AAPL", models.Range3M); !ok {
		t.Fatal("daily entry expired with the intraday TTL")
	}

	clock.advance(DefaultDailyTTL)
	if _, ok := c.Get("AAPL", models.Range3M); ok {
		t.Fatal("daily entry served after its TTL")
	}

	stats := c.Stats()
	if stats.Hits != 3 || stats.Misses != 3 {
		t.Errorf("stats = %+v, want 3 hits and 3 misses", stats)
	}
}

func TestMemoryCache_EvictsOldestInsertion(t *testing.T) {
	c := NewMemoryCache(WithCapacity(3))

	c.Set("A", models.Range3M, seriesFor("A", models.Range3M))
	c.Set("B", models.Range3M, seriesFor("B", models.Range3M))
	c.Set("C", models.Range3M, seriesFor("C", models.Range3M))
	// Re-setting A makes B the oldest insertion.
	c.Set("A", models.Range3M, seriesFor("A", models.Range3M))
	c.Set("D", models.Range3M, seriesFor("D", models.Range3M))

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if _, ok := c.Get("B", models.Range3M); ok {
		t.Error("B should have been evicted")
	}
	for _, s := range []string{"A", "C", "D"} {
		if _, ok := c.Get(s, models.Range3M); !ok {
			t.Errorf("%s missing", s)
		}
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestMemoryCache_ResetRefreshesTTL(t *testing.T) {
	clock := &manualClock{t: testNow}
	c := NewMemoryCache(WithCacheClock(clock.now), WithTTL(time.Minute, time.Minute))

	c.Set("A", models.Range3M, seriesFor("A", models.Range3M))
	clock.advance(50 * time.Second)
	c.Set("A", models.Range3M, seriesFor("A", models.Range3M))
	clock.advance(50 * time.Second)

	if _, ok := c.Get("A", models.Range3M); !ok {
		t.Error("re-set entry expired on its original timestamp")
	}
}

func TestMemoryCache_NeverExceedsCapacity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("entries stay within capacity", prop.ForAll(
		func(keys []int, capacity int) bool {
			c := NewMemoryCache(WithCapacity(capacity))
			for _, k := range keys {
				sym := string(rune('A' + k))
				c.Set(sym, models.Range3M, seriesFor(sym, models.Range3M))
				if c.Len() > capacity {
					return false
				}
			}
			if len(keys) == 0 {
				return true
			}
			last := string(rune('A' + keys[len(keys)-1]))
			_, ok := c.Get(last, models.Range3M)
			return ok
		},
		gen.SliceOf(gen.IntRange(0, 20)),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
