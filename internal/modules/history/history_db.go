// Package history provides access to historical daily price data and derived
// return series. It is the default market-data provider of the risk engine;
// any other provider can be substituted through the risk.MarketDataProvider
// interface.
package history

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// DailyPrice represents one daily close
type DailyPrice struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Close float64 `json:"close"`
}

// Open opens (or creates) a history database at the given path and ensures
// the schema exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			close  REAL NOT NULL,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol ON daily_prices(symbol, date);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// SaveDailyPrice upserts one daily close.
func (h *HistoryDB) SaveDailyPrice(symbol, date string, close float64) error {
	_, err := h.db.Exec(`
		INSERT INTO daily_prices (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close
	`, symbol, date, close)
	if err != nil {
		return fmt.Errorf("failed to save daily price: %w", err)
	}
	return nil
}

// GetDailyPrices fetches daily closes for a symbol, newest first.
// limit <= 0 means no limit.
func (h *HistoryDB) GetDailyPrices(symbol string, limit int) ([]DailyPrice, error) {
	query := `
		SELECT date, close
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
	`
	args := []interface{}{symbol}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// DailyReturns returns the simple daily returns for a symbol over the given
// lookback window, oldest first. Non-positive closes are treated as missing
// and produce a zero return, matching the behaviour of the covariance
// builder. An empty result means no usable history exists; callers should
// fall back to estimates rather than treat this as an error.
func (h *HistoryDB) DailyReturns(symbol string, lookbackDays int) ([]float64, error) {
	// Fetch one extra close so that lookbackDays returns can be formed.
	prices, err := h.GetDailyPrices(symbol, lookbackDays+1)
	if err != nil {
		return nil, err
	}
	if len(prices) < 2 {
		return nil, nil
	}

	// GetDailyPrices returns newest first; walk backwards for oldest first.
	returns := make([]float64, 0, len(prices)-1)
	for i := len(prices) - 1; i > 0; i-- {
		prev := prices[i].Close
		curr := prices[i-1].Close
		if prev > 0 && !math.IsNaN(curr) && !math.IsNaN(prev) {
			returns = append(returns, (curr-prev)/prev)
		} else {
			returns = append(returns, 0.0)
		}
	}
	return returns, nil
}

// LatestPrice returns the most recent close for a symbol. A zero price with
// nil error means no data exists.
func (h *HistoryDB) LatestPrice(symbol string) (float64, error) {
	var close float64
	err := h.db.QueryRow(`
		SELECT close FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`, symbol).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query latest price: %w", err)
	}
	return close, nil
}
