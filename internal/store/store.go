// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"price-analyst/internal/analysis"
	"price-analyst/internal/models"
)

// CredentialStore persists provider API keys. A missing key is not an
// error: Credential returns "".
type CredentialStore interface {
	SetCredential(ctx context.Context, provider, value string) error
	Credential(ctx context.Context, provider string) (string, error)
	DeleteCredential(ctx context.Context, provider string) error
	Credentials(ctx context.Context) (map[string]string, error)
}

// SeriesArchive keeps the last successful series per symbol and range so it
// can stand in when every provider fails.
type SeriesArchive interface {
	SaveSeries(ctx context.Context, series *models.Series) error
	LoadSeries(ctx context.Context, symbol string, tag models.RangeTag) (*models.Series, error)
}

// ReportHistory records produced reports.
type ReportHistory interface {
	SaveReport(ctx context.Context, report *analysis.Report) error
	RecentReports(ctx context.Context, symbol string, limit int) ([]ReportSummary, error)
}

// DataStore is the full persistence surface.
type DataStore interface {
	CredentialStore
	SeriesArchive
	ReportHistory
	Ping(ctx context.Context) error
	Close() error
}

// ReportSummary is one row of report history.
type ReportSummary struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Range       models.RangeTag `json:"range"`
	Signal      string          `json:"signal"`
	Confidence  int             `json:"confidence"`
	Pattern     string          `json:"pattern"`
	Live        bool            `json:"live"`
	Source      string          `json:"source"`
	GeneratedAt time.Time       `json:"generated_at"`
}
