package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "price-analyst/internal/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newCircuitBreaker("polygon", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Minute}, clock.now)

	for i := 0; i < 2; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("attempt %d rejected: %v", i, err)
		}
		cb.RecordFailure()
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, apperrors.ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}

	clock.t = clock.t.Add(2 * time.Minute)
	if err := cb.Allow(); err != nil {
		t.Fatalf("probe rejected after cooldown: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %s, want CLOSED", cb.State())
	}

	stats := cb.Stats()
	if stats.TotalRejected != 1 || stats.TotalFailures != 2 || stats.TotalSuccesses != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := newCircuitBreaker("finnhub", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Second}, clock.now)
	cb.RecordFailure()
	clock.t = clock.t.Add(2 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatal(err)
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("yahoo", CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatalf("non-consecutive failures should not open the circuit")
	}
}

func TestRegistry_OpenAndHealth(t *testing.T) {
	reg := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	if reg.Get("a") != reg.Get("a") {
		t.Fatal("registry should reuse breakers")
	}
	reg.Get("b")
	reg.Get("b").RecordFailure()

	if open := reg.Open(); len(open) != 1 || open[0] != "b" {
		t.Fatalf("Open() = %v", open)
	}
	if h := ProviderHealthCheck(reg)(context.Background()); h.Status != HealthStatusDegraded {
		t.Fatalf("provider health = %s, want DEGRADED", h.Status)
	}
	reg.Get("a").RecordFailure()
	if h := ProviderHealthCheck(reg)(context.Background()); h.Status != HealthStatusUnhealthy {
		t.Fatalf("provider health = %s, want UNHEALTHY", h.Status)
	}
	reg.ResetAll()
	if len(reg.Open()) != 0 {
		t.Fatal("ResetAll should close every circuit")
	}
}

func TestHealthHTTPHandler(t *testing.T) {
	m := NewHealthMonitor(time.Second)
	m.RegisterComponent("store", DatabaseHealthCheck(func(context.Context) error { return nil }))
	m.RegisterComponent("watch", FreshnessHealthCheck(func() time.Time { return time.Now().Add(-time.Hour) }, time.Minute))

	rec := httptest.NewRecorder()
	m.HealthHTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200 for a degraded system", rec.Code)
	}
	var body SystemHealth
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != HealthStatusDegraded || len(body.Components) != 2 || body.Components[0].Name != "store" {
		t.Fatalf("unexpected body %+v", body)
	}

	m.RegisterComponent("store", DatabaseHealthCheck(func(context.Context) error { return errors.New("locked") }))
	rec = httptest.NewRecorder()
	m.HealthHTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want 503", rec.Code)
	}
}
