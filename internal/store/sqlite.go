package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"price-analyst/internal/analysis"
	apperrors "price-analyst/internal/errors"
	"price-analyst/internal/models"
	"price-analyst/internal/security"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	sealer *security.Sealer
	now    func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithSealer encrypts credentials at rest. Without a sealer values are
// stored as given and sealed values cannot be read.
func WithSealer(s *security.Sealer) Option {
	return func(st *SQLiteStore) { st.sealer = s }
}

// WithClock sets the clock used for updated_at columns.
func WithClock(now func() time.Time) Option {
	return func(st *SQLiteStore) { st.now = now }
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		provider TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		sealed INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	-- Last successful series per symbol and range
	CREATE TABLE IF NOT EXISTS series (
		symbol TEXT NOT NULL,
		range_tag TEXT NOT NULL,
		source TEXT NOT NULL,
		exchange TEXT,
		currency TEXT,
		last_price REAL NOT NULL,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (symbol, range_tag)
	);

	CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		range_tag TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		UNIQUE(symbol, range_tag, timestamp)
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		range_tag TEXT NOT NULL,
		signal TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		pattern TEXT,
		live INTEGER NOT NULL,
		source TEXT,
		body TEXT NOT NULL,
		generated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_series ON candles(symbol, range_tag, timestamp);
	CREATE INDEX IF NOT EXISTS idx_reports_symbol ON reports(symbol, generated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================================
// Credentials
// ============================================================================

func normalizeProvider(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// SetCredential stores value for provider, sealing it when a sealer is set.
func (s *SQLiteStore) SetCredential(ctx context.Context, provider, value string) error {
	provider = normalizeProvider(provider)
	if err := security.ValidateCredential(provider, value); err != nil {
		return err
	}
	value = strings.TrimSpace(value)

	sealed := 0
	if s.sealer != nil {
		v, err := s.sealer.Seal(value)
		if err != nil {
			return err
		}
		value, sealed = v, 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (provider, value, sealed, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET value = excluded.value, sealed = excluded.sealed, updated_at = excluded.updated_at
	`, provider, value, sealed, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w: %v", apperrors.ErrDatabaseError, err)
	}
	return nil
}

// Credential returns the stored value for provider, or "" when none is set.
func (s *SQLiteStore) Credential(ctx context.Context, provider string) (string, error) {
	var value string
	var sealed bool
	err := s.db.QueryRowContext(ctx, `SELECT value, sealed FROM credentials WHERE provider = ?`,
		normalizeProvider(provider)).Scan(&value, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w: %v", apperrors.ErrDatabaseError, err)
	}
	return s.open(provider, value, sealed)
}

func (s *SQLiteStore) open(provider, value string, sealed bool) (string, error) {
	if !sealed {
		return value, nil
	}
	if s.sealer == nil {
		return "", apperrors.NewSecurityError("open_credential", provider+" is sealed and no master key is set", apperrors.ErrCredentialAccess)
	}
	return s.sealer.Open(value)
}

// DeleteCredential removes provider's credential. Deleting a missing key
// is not an error.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE provider = ?`, normalizeProvider(provider))
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w: %v", apperrors.ErrDatabaseError, err)
	}
	return nil
}

// Credentials returns every readable credential. Values that cannot be
// opened are left out and reported in the joined error.
func (s *SQLiteStore) Credentials(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT provider, value, sealed FROM credentials ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w: %v", apperrors.ErrDatabaseError, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	var errs []error
	for rows.Next() {
		var provider, value string
		var sealed bool
		if err := rows.Scan(&provider, &value, &sealed); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		plain, err := s.open(provider, value, sealed)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[provider] = plain
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}
	return out, errors.Join(errs...)
}

// ============================================================================
// Series archive
// ============================================================================

// SaveSeries replaces the archived series for its symbol and range.
func (s *SQLiteStore) SaveSeries(ctx context.Context, series *models.Series) error {
	if series.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO series (symbol, range_tag, source, exchange, currency, last_price, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, series.Symbol, string(series.Range), series.Source, series.Exchange, series.Currency, series.LastPrice, series.FetchedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save series: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE symbol = ? AND range_tag = ?`,
		series.Symbol, string(series.Range)); err != nil {
		return fmt.Errorf("failed to clear candles: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, range_tag, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range series.Candles {
		if _, err := stmt.ExecContext(ctx, series.Symbol, string(series.Range), c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadSeries returns the archived series. It is never live. A missing
// series is reported as ErrDataNotFound.
func (s *SQLiteStore) LoadSeries(ctx context.Context, symbol string, tag models.RangeTag) (*models.Series, error) {
	series := &models.Series{Symbol: symbol, Range: tag}
	var exchange, currency sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT source, exchange, currency, last_price, fetched_at
		FROM series WHERE symbol = ? AND range_tag = ?
	`, symbol, string(tag)).Scan(&series.Source, &exchange, &currency, &series.LastPrice, &series.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewDataError("series", symbol, "no archived series for "+string(tag), apperrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	series.Exchange, series.Currency = exchange.String, currency.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND range_tag = ?
		ORDER BY timestamp ASC
	`, symbol, string(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		series.Candles = append(series.Candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}
	return series, nil
}

// ============================================================================
// Reports
// ============================================================================

// SaveReport stores a report and its JSON body.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *analysis.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (id, symbol, range_tag, signal, confidence, pattern, live, source, body, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.Symbol, string(report.Range), string(report.Signal), report.Confidence,
		report.Pattern, report.Live, report.Source, string(body), report.GeneratedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// RecentReports returns up to limit reports, newest first. An empty symbol
// matches every symbol.
func (s *SQLiteStore) RecentReports(ctx context.Context, symbol string, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, symbol, range_tag, signal, confidence, pattern, live, source, generated_at FROM reports`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY generated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var r ReportSummary
		var pattern, source sql.NullString
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Range, &r.Signal, &r.Confidence, &pattern, &r.Live, &source, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.Pattern, r.Source = pattern.String, source.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return out, nil
}
