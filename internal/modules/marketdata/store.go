package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/quantfolio/quantfolio/internal/database"
	"github.com/quantfolio/quantfolio/internal/domain"
)

// Store persists cache entries to SQLite so a restart keeps warm history.
// Series are stored as msgpack blobs keyed by (symbol, period).
type Store struct {
	db *database.DB
}

// storedPoint mirrors domain.PricePoint with a compact wire encoding.
type storedPoint struct {
	Date  int64   `msgpack:"d"` // unix seconds
	Close float64 `msgpack:"c"`
}

// NewStore creates the store and its schema.
func NewStore(db *database.DB) (*Store, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS price_cache (
			symbol     TEXT NOT NULL,
			period     TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			series     BLOB NOT NULL,
			PRIMARY KEY (symbol, period)
		)`
	if _, err := db.Conn().Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create price_cache table: %w", err)
	}
	return &Store{db: db}, nil
}

// Put upserts a cache entry.
func (s *Store) Put(symbol, period string, series domain.PriceSeries, fetchedAt time.Time) error {
	points := make([]storedPoint, len(series.Points))
	for i, p := range series.Points {
		points[i] = storedPoint{Date: p.Date.Unix(), Close: p.Close}
	}

	blob, err := msgpack.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode series for %s: %w", symbol, err)
	}

	_, err = s.db.Conn().Exec(`
		INSERT INTO price_cache (symbol, period, fetched_at, series)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, period) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			series     = excluded.series`,
		symbol, period, fetchedAt.Unix(), blob)
	if err != nil {
		return fmt.Errorf("failed to store series for %s: %w", symbol, err)
	}
	return nil
}

// Get loads a cache entry. The boolean is false on a miss.
func (s *Store) Get(symbol, period string) (domain.PriceSeries, time.Time, bool, error) {
	var fetchedAt int64
	var blob []byte
	err := s.db.Conn().QueryRow(`
		SELECT fetched_at, series FROM price_cache
		WHERE symbol = ? AND period = ?`,
		symbol, period).Scan(&fetchedAt, &blob)
	if err == sql.ErrNoRows {
		return domain.PriceSeries{}, time.Time{}, false, nil
	}
	if err != nil {
		return domain.PriceSeries{}, time.Time{}, false, fmt.Errorf("failed to load series for %s: %w", symbol, err)
	}

	var points []storedPoint
	if err := msgpack.Unmarshal(blob, &points); err != nil {
		return domain.PriceSeries{}, time.Time{}, false, fmt.Errorf("failed to decode series for %s: %w", symbol, err)
	}

	series := domain.PriceSeries{Symbol: symbol, Points: make([]domain.PricePoint, len(points))}
	for i, p := range points {
		series.Points[i] = domain.PricePoint{Date: time.Unix(p.Date, 0).UTC(), Close: p.Close}
	}

	return series, time.Unix(fetchedAt, 0).UTC(), true, nil
}

// Flush removes every cached entry.
func (s *Store) Flush() error {
	if _, err := s.db.Conn().Exec(`DELETE FROM price_cache`); err != nil {
		return fmt.Errorf("failed to flush price cache: %w", err)
	}
	return nil
}
