package aggregate

import (
    "context"
    "sort"

    "github.com/rs/zerolog"
    "golang.org/x/sync/singleflight"

    "coindata/internal/cache"
    "coindata/internal/provider"
)

// Entry registers one provider with its fallback priority.
// Lower priority is tried first. Disabled entries are skipped entirely.
type Entry struct {
    Provider provider.Provider
    Priority int
    Enabled  bool
}

// LastKnownFunc looks up the last live quote recorded for a symbol.
type LastKnownFunc func(symbol string) (provider.Quote, bool)

// Aggregator resolves a quote per instrument by walking providers in
// priority order, forwarding only the instruments the previous providers
// left unresolved. Routing is strictly priority-ordered: provider health
// never reorders the list.
type Aggregator struct {
    providers []Entry
    cache     cache.Cache[map[string]provider.Quote]
    lastKnown LastKnownFunc
    group     singleflight.Group
    log       zerolog.Logger
}

func New(entries []Entry, c cache.Cache[map[string]provider.Quote], lastKnown LastKnownFunc, log zerolog.Logger) *Aggregator {
    sorted := make([]Entry, len(entries))
    copy(sorted, entries)
    sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
    if lastKnown == nil {
        lastKnown = func(string) (provider.Quote, bool) { return provider.Quote{}, false }
    }
    return &Aggregator{providers: sorted, cache: c, lastKnown: lastKnown, log: log}
}

// CurrentPrices returns exactly one Quote per requested instrument.
// Instruments no provider could price carry the last known live price,
// or the 0 sentinel when there is none. Callers must not mutate the
// returned map: it is shared with the cache.
func (a *Aggregator) CurrentPrices(ctx context.Context, coins []provider.Instrument) map[string]provider.Quote {
    if len(coins) == 0 {
        return map[string]provider.Quote{}
    }

    key := provider.CacheKey(coins)
    if cached, ok := a.cache.Get(key); ok {
        return cached
    }

    // Concurrent requests for the identical set share one aggregation.
    v, _, _ := a.group.Do(key, func() (any, error) {
        if cached, ok := a.cache.Get(key); ok {
            return cached, nil
        }
        prices := a.aggregate(ctx, coins)
        a.cache.Put(key, prices)
        return prices, nil
    })
    return v.(map[string]provider.Quote)
}

func (a *Aggregator) aggregate(ctx context.Context, coins []provider.Instrument) map[string]provider.Quote {
    prices := make(map[string]provider.Quote, len(coins))
    missing := make([]provider.Instrument, len(coins))
    copy(missing, coins)

    for _, e := range a.providers {
        if !e.Enabled { continue }
        if len(missing) == 0 { break }

        fetched, err := e.Provider.Fetch(ctx, missing)
        if err != nil {
            a.log.Warn().Err(err).Str("provider", e.Provider.Name()).Msg("provider fetch failed")
            // fetched may still hold partial results; fall through
        }
        for sym, q := range fetched {
            // only a strictly positive price resolves a symbol
            if q.Price <= 0 { continue }
            if _, done := prices[sym]; done { continue }
            prices[sym] = q
        }
        missing = unresolved(missing, prices)
    }

    // Fill what every provider missed with the last known live price,
    // else the 0 sentinel. Never drop a requested instrument.
    for _, coin := range missing {
        q := provider.Quote{
            Symbol:   coin.Symbol,
            Name:     coin.DisplayName(),
            Exchange: coin.DisplayExchange(),
        }
        if last, ok := a.lastKnown(coin.Symbol); ok && last.Price > 0 {
            q.Price = last.Price
        }
        prices[coin.Symbol] = q
    }
    return prices
}

func unresolved(coins []provider.Instrument, prices map[string]provider.Quote) []provider.Instrument {
    out := coins[:0]
    for _, c := range coins {
        if _, ok := prices[c.Symbol]; !ok {
            out = append(out, c)
        }
    }
    return out
}
