package marketdata

import (
	"context"
	"strings"

	"price-analyst/internal/models"
)

// ProviderID names a data provider.
type ProviderID string

const (
	TwelveData   ProviderID = "twelvedata"
	Polygon      ProviderID = "polygon"
	Finnhub      ProviderID = "finnhub"
	AlphaVantage ProviderID = "alphavantage"
	Kite         ProviderID = "kite"
	Yahoo        ProviderID = "yahoo"
)

// AllProviders lists every known provider ID.
func AllProviders() []ProviderID {
	return []ProviderID{TwelveData, Polygon, Finnhub, AlphaVantage, Kite, Yahoo}
}

// ParseProviderID normalizes a configured provider name.
func ParseProviderID(s string) (ProviderID, bool) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllProviders() {
		if id == known {
			return id, true
		}
	}
	return "", false
}

// Provider fetches one series for a plan. Failures are *errors.FetchError
// values whose kind is one of the fetch sentinels.
type Provider interface {
	ID() ProviderID
	// RequiresCredential reports whether Fetch needs a non-empty credential.
	RequiresCredential() bool
	Fetch(ctx context.Context, symbol string, plan Plan, cred string) (*models.Series, error)
}

// Credentials maps providers to their API credential.
type Credentials map[ProviderID]string

// Get returns the trimmed credential for id.
func (c Credentials) Get(id ProviderID) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[id])
}

// Configured lists the providers that have a credential, in canonical order.
func (c Credentials) Configured() []ProviderID {
	var ids []ProviderID
	for _, id := range AllProviders() {
		if c.Get(id) != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
