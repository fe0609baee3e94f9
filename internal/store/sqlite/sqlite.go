package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"coindata/internal/provider"
	"coindata/internal/store"
)

// Store is a SQLite-backed store.Store. WAL mode keeps readers from
// blocking the single writer.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (and if needed creates) the database at path.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS coin_configs (
			symbol    TEXT PRIMARY KEY,
			name      TEXT NOT NULL DEFAULT '',
			exchange  TEXT NOT NULL DEFAULT '',
			native_id TEXT NOT NULL DEFAULT '',
			enabled   INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol     TEXT NOT NULL,
			price_date TEXT NOT NULL,
			price      REAL NOT NULL,
			PRIMARY KEY (symbol, price_date)
		);
	`)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// CoinConfigs returns enabled instruments ordered by symbol.
func (s *Store) CoinConfigs(ctx context.Context) ([]provider.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, name, exchange, native_id
		FROM coin_configs
		WHERE enabled = 1
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query coin_configs: %w", err)
	}
	defer rows.Close()

	var coins []provider.Instrument
	for rows.Next() {
		var c provider.Instrument
		if err := rows.Scan(&c.Symbol, &c.Name, &c.Exchange, &c.NativeID); err != nil {
			return nil, fmt.Errorf("sqlite scan coin_configs: %w", err)
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite scan settings: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// LatestDailyPrices returns the newest persisted price per symbol.
// Dates are ISO strings, so MAX() orders them correctly.
func (s *Store) LatestDailyPrices(ctx context.Context, symbols []string) (map[string]store.DailyPrice, error) {
	query := `
		SELECT d.symbol, d.price, d.price_date
		FROM daily_prices d
		JOIN (
			SELECT symbol, MAX(price_date) AS latest
			FROM daily_prices
			GROUP BY symbol
		) m ON d.symbol = m.symbol AND d.price_date = m.latest
	`
	var args []any
	if len(symbols) > 0 {
		query += ` WHERE d.symbol IN (?` + strings.Repeat(",?", len(symbols)-1) + `)`
		for _, sym := range symbols {
			args = append(args, sym)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query daily_prices: %w", err)
	}
	defer rows.Close()

	out := make(map[string]store.DailyPrice)
	for rows.Next() {
		var sym string
		var dp store.DailyPrice
		if err := rows.Scan(&sym, &dp.Price, &dp.PriceDate); err != nil {
			return nil, fmt.Errorf("sqlite scan daily_prices: %w", err)
		}
		out[sym] = dp
	}
	return out, rows.Err()
}

func (s *Store) UpsertDailyPrice(ctx context.Context, symbol string, price float64, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_prices (symbol, price_date, price)
		VALUES (?, ?, ?)
		ON CONFLICT (symbol, price_date) DO UPDATE SET price = excluded.price
	`, symbol, date, price)
	if err != nil {
		return fmt.Errorf("sqlite upsert daily_price: %w", err)
	}
	return nil
}

// UpsertCoinConfig adds or updates an instrument. Used by cmd/seed and tests;
// the market-data core itself only reads configs.
func (s *Store) UpsertCoinConfig(ctx context.Context, coin provider.Instrument, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coin_configs (symbol, name, exchange, native_id, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			name = excluded.name,
			exchange = excluded.exchange,
			native_id = excluded.native_id,
			enabled = excluded.enabled
	`, coin.Symbol, coin.Name, coin.Exchange, coin.NativeID, boolToInt(enabled))
	if err != nil {
		return fmt.Errorf("sqlite upsert coin_config: %w", err)
	}
	return nil
}

// SetSetting writes one settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite set setting: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
