package store

import (
    "context"

    "coindata/internal/provider"
)

// DailyPrice is one persisted closing price.
type DailyPrice struct {
    Price     float64 `json:"price"`
    PriceDate string  `json:"price_date"` // YYYY-MM-DD
}

// Store is the persistence surface the market-data core consumes.
// It is a plain key-value/time-series sink: the core never writes coin
// configs or settings, only daily prices.
type Store interface {
    // CoinConfigs returns the configured instrument universe.
    CoinConfigs(ctx context.Context) ([]provider.Instrument, error)
    // Settings returns the flat settings map (trading window bounds live here).
    Settings(ctx context.Context) (map[string]string, error)
    // LatestDailyPrices returns the most recent persisted price per symbol.
    // An empty symbols slice means all symbols.
    LatestDailyPrices(ctx context.Context, symbols []string) (map[string]DailyPrice, error)
    // UpsertDailyPrice writes the closing price for (symbol, date).
    // Idempotent: a second write for the same key overwrites the price.
    UpsertDailyPrice(ctx context.Context, symbol string, price float64, date string) error
}
