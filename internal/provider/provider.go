package provider

import (
    "context"
    "sort"
    "strings"
)

// Source values carried by a Quote to mark where the price came from.
const (
    SourceLive         = "live"
    SourceClosing      = "closing"
    SourceLiveFallback = "live_fallback"
    SourcePreviousLive = "previous_live"
)

// Instrument is a tracked asset as configured in the store.
// NativeID is the provider-specific identifier (e.g. a coingecko id);
// adapters that need something else derive it from Symbol.
type Instrument struct {
    Symbol   string `json:"symbol"`
    Name     string `json:"name"`
    Exchange string `json:"exchange"`
    NativeID string `json:"native_id"`
}

// Quote is the normalized price record returned by all providers.
// A Price of 0 means "unresolved": the aggregator never treats it as a
// real quote and adapters must omit the symbol instead of emitting it.
type Quote struct {
    Symbol    string  `json:"symbol"`
    Price     float64 `json:"price"`
    Name      string  `json:"name"`
    Exchange  string  `json:"exchange"`
    Change24h float64 `json:"change_24h"`
    Source    string  `json:"source,omitempty"`
    PriceDate string  `json:"price_date,omitempty"`
}

// DisplayName falls back to the symbol when no name is configured.
func (i Instrument) DisplayName() string {
    if i.Name != "" { return i.Name }
    return i.Symbol
}

// DisplayExchange falls back to the generic CRYPTO tag.
func (i Instrument) DisplayExchange() string {
    if i.Exchange != "" { return i.Exchange }
    return "CRYPTO"
}

// PricePoint is one sample of a historical series.
type PricePoint struct {
    Timestamp int64   `json:"timestamp"` // unix milliseconds
    Price     float64 `json:"price"`
}

// Provider fetches current quotes for a set of instruments.
// Missing or unpriceable symbols are simply absent from the result;
// a non-nil error means the whole call failed and nothing was priced.
type Provider interface {
    Name() string
    Fetch(ctx context.Context, coins []Instrument) (map[string]Quote, error)
}

// HistoryProvider fetches a historical price series for one instrument,
// restricted to the most recent count points.
type HistoryProvider interface {
    FetchHistory(ctx context.Context, coin Instrument, count int) ([]PricePoint, error)
}

// CacheKey fingerprints an instrument set for the quote cache:
// sorted symbols joined with '_', prefixed so keys are self-describing
// in shared backends.
func CacheKey(coins []Instrument) string {
    syms := make([]string, 0, len(coins))
    for _, c := range coins { syms = append(syms, c.Symbol) }
    sort.Strings(syms)
    return "prices_" + strings.Join(syms, "_")
}
