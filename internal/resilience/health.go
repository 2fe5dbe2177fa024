package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency"`
}

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) ComponentHealth

// HealthMonitor runs registered component checks on demand.
type HealthMonitor struct {
	mu         sync.RWMutex
	startTime  time.Time
	timeout    time.Duration
	components map[string]HealthCheck
}

// NewHealthMonitor creates a new health monitor. Each check run is bounded by
// timeout.
func NewHealthMonitor(timeout time.Duration) *HealthMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{
		startTime:  time.Now(),
		timeout:    timeout,
		components: make(map[string]HealthCheck),
	}
}

// RegisterComponent registers a health check for a component.
func (m *HealthMonitor) RegisterComponent(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = check
}

// Check runs every registered check and aggregates the result. Any unhealthy
// component makes the system unhealthy; any degraded one makes it degraded.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(m.components))
	for name, c := range m.components {
		checks[name] = c
	}
	m.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	health := SystemHealth{
		Status:    HealthStatusHealthy,
		StartTime: m.startTime,
		Uptime:    time.Since(m.startTime).Round(time.Second).String(),
	}
	for _, name := range names {
		start := time.Now()
		c := checks[name](ctx)
		c.Name = name
		c.LastCheck = time.Now()
		if c.Latency == 0 {
			c.Latency = time.Since(start)
		}
		health.Components = append(health.Components, c)

		switch c.Status {
		case HealthStatusUnhealthy:
			health.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		}
	}
	return health
}

// SystemHealth represents overall system health.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	StartTime  time.Time         `json:"start_time"`
	Uptime     string            `json:"uptime"`
	Components []ComponentHealth `json:"components"`
}

// HealthHTTPHandler returns an HTTP handler for health checks. Degraded
// systems still answer 200.
func (m *HealthMonitor) HealthHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := m.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	}
}

// DatabaseHealthCheck creates a health check for database connections.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		var health ComponentHealth

		start := time.Now()
		err := ping(ctx)
		health.Latency = time.Since(start)

		if err != nil {
			health.Status = HealthStatusUnhealthy
			health.Message = fmt.Sprintf("Database ping failed: %v", err)
			return health
		}
		if health.Latency > 100*time.Millisecond {
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("Database slow: %v", health.Latency)
			return health
		}
		health.Status = HealthStatusHealthy
		health.Message = "Database reachable"
		return health
	}
}

// ProviderHealthCheck reports providers whose circuit is open. The system is
// degraded while some providers are skipped and unhealthy when all known
// providers are.
func ProviderHealthCheck(registry *CircuitBreakerRegistry) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		stats := registry.AllStats()
		open := registry.Open()

		switch {
		case len(stats) == 0:
			return ComponentHealth{Status: HealthStatusUnknown, Message: "No provider attempts yet"}
		case len(open) == 0:
			return ComponentHealth{Status: HealthStatusHealthy, Message: fmt.Sprintf("%d providers available", len(stats))}
		case len(open) == len(stats):
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: "All providers tripped: " + strings.Join(open, ", ")}
		default:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "Providers tripped: " + strings.Join(open, ", ")}
		}
	}
}

// FreshnessHealthCheck degrades when the last successful run is older than
// maxAge.
func FreshnessHealthCheck(lastRun func() time.Time, maxAge time.Duration) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		last := lastRun()
		if last.IsZero() {
			return ComponentHealth{Status: HealthStatusUnknown, Message: "No completed run yet"}
		}
		if age := time.Since(last); age > maxAge {
			return ComponentHealth{Status: HealthStatusDegraded, Message: fmt.Sprintf("Last run %v ago", age.Round(time.Second))}
		}
		return ComponentHealth{Status: HealthStatusHealthy, Message: "Last run " + last.Format(time.RFC3339)}
	}
}
