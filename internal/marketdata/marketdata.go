package marketdata

import (
    "context"
    "time"

    "github.com/rs/zerolog"

    "coindata/internal/aggregate"
    "coindata/internal/provider"
    "coindata/internal/store"
    "coindata/internal/window"
)

const dateLayout = "2006-01-02"

// MarketData is the thin per-symbol view served by GetMarketData.
// The upstream tickers queried for fallback do not expose 24h extremes
// uniformly, so high/low degrade to the current price.
type MarketData struct {
    CurrentPrice float64 `json:"current_price"`
    High24h      float64 `json:"high_24h"`
    Low24h       float64 `json:"low_24h"`
}

// Service is the public market-data surface. It owns the trading-window
// policy: inside the window live aggregation is authoritative, outside it
// the persisted closing price is.
type Service struct {
    store store.Store
    agg   *aggregate.Aggregator
    state *window.State
    now   func() time.Time
    log   zerolog.Logger
}

func New(st store.Store, agg *aggregate.Aggregator, state *window.State, log zerolog.Logger) *Service {
    return &Service{store: st, agg: agg, state: state, now: time.Now, log: log}
}

// SetClock replaces the time source; tests drive window edges with it.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// IsWithinWindow reports whether t falls inside the configured trading
// window. A settings read failure degrades to the full-day default.
func (s *Service) IsWithinWindow(ctx context.Context, t time.Time) bool {
    settings, err := s.store.Settings(ctx)
    if err != nil {
        s.log.Warn().Err(err).Msg("settings read failed, assuming full-day window")
        settings = nil
    }
    return window.FromSettings(settings).Contains(t)
}

// GetCurrentPrices aggregates live quotes for the requested symbols
// (all configured instruments when symbols is empty). The result carries
// no source tag; GetPrices adds provenance.
func (s *Service) GetCurrentPrices(ctx context.Context, symbols []string) map[string]provider.Quote {
    coins := s.coins(ctx, symbols)
    if len(coins) == 0 {
        return map[string]provider.Quote{}
    }
    return s.agg.CurrentPrices(ctx, coins)
}

// GetPrices returns prices respecting the configured trading window.
func (s *Service) GetPrices(ctx context.Context, symbols []string) map[string]provider.Quote {
    now := s.now()
    marketOpen := s.IsWithinWindow(ctx, now)

    // The open→closed edge persists the last live snapshot exactly once.
    if s.state.Observe(marketOpen) {
        s.persistClosing(ctx)
    }

    if marketOpen {
        return s.livePrices(ctx, symbols, now)
    }
    return s.storedPrices(ctx, symbols, now)
}

func (s *Service) livePrices(ctx context.Context, symbols []string, now time.Time) map[string]provider.Quote {
    live := s.GetCurrentPrices(ctx, symbols)
    if len(live) == 0 {
        return live
    }
    today := now.Format(dateLayout)
    tagged := make(map[string]provider.Quote, len(live))
    for sym, q := range live {
        q.Source = provider.SourceLive
        q.PriceDate = today
        tagged[sym] = q
    }
    s.state.RecordLive(tagged, today)
    return tagged
}

func (s *Service) storedPrices(ctx context.Context, symbols []string, now time.Time) map[string]provider.Quote {
    stored, err := s.store.LatestDailyPrices(ctx, symbols)
    if err != nil {
        s.log.Warn().Err(err).Msg("stored prices read failed")
        stored = nil
    }
    formatted := s.formatStored(ctx, stored, symbols)

    // Gap-fill symbols with no stored price via a targeted live fetch.
    target := symbols
    if len(target) == 0 {
        for _, c := range s.coins(ctx, nil) {
            target = append(target, c.Symbol)
        }
    }
    var missing []string
    for _, sym := range target {
        if _, ok := formatted[sym]; !ok {
            missing = append(missing, sym)
        }
    }
    if len(missing) > 0 {
        today := now.Format(dateLayout)
        live := s.GetCurrentPrices(ctx, missing)
        filled := make(map[string]provider.Quote, len(live))
        for sym, q := range live {
            if q.Price <= 0 {
                // unresolved sentinel, not worth persisting as a daily price
                continue
            }
            q.Source = provider.SourceLiveFallback
            q.PriceDate = today
            formatted[sym] = q
            filled[sym] = q
            if err := s.store.UpsertDailyPrice(ctx, sym, q.Price, today); err != nil {
                s.log.Warn().Err(err).Str("symbol", sym).Msg("failed to persist fallback price")
            }
        }
        s.state.MergeLive(filled, today)
    }

    // Never return empty while a previous live snapshot exists.
    if len(formatted) == 0 {
        if snap := s.previousLive(symbols); len(snap) > 0 {
            return snap
        }
    }
    return formatted
}

// formatStored shapes persisted closing prices into Quotes.
func (s *Service) formatStored(ctx context.Context, stored map[string]store.DailyPrice, symbols []string) map[string]provider.Quote {
    coins := s.coins(ctx, nil)
    coinMap := make(map[string]provider.Instrument, len(coins))
    for _, c := range coins { coinMap[c.Symbol] = c }

    target := symbols
    if len(target) == 0 {
        for _, c := range coins {
            target = append(target, c.Symbol)
        }
    }
    if len(target) == 0 {
        for sym := range stored {
            target = append(target, sym)
        }
    }

    formatted := make(map[string]provider.Quote, len(target))
    for _, sym := range target {
        dp, ok := stored[sym]
        if !ok { continue }
        coin := coinMap[sym]
        if coin.Symbol == "" { coin.Symbol = sym }
        formatted[sym] = provider.Quote{
            Symbol:    sym,
            Price:     dp.Price,
            Name:      coin.DisplayName(),
            Exchange:  coin.Exchange,
            Change24h: 0,
            Source:    provider.SourceClosing,
            PriceDate: dp.PriceDate,
        }
    }
    return formatted
}

// previousLive serves the in-memory snapshot as a last resort.
func (s *Service) previousLive(symbols []string) map[string]provider.Quote {
    snap, snapDate := s.state.Snapshot()
    if len(snap) == 0 { return nil }

    want := make(map[string]struct{}, len(symbols))
    for _, sym := range symbols { want[sym] = struct{}{} }

    out := make(map[string]provider.Quote, len(snap))
    for sym, q := range snap {
        if len(want) > 0 {
            if _, ok := want[sym]; !ok { continue }
        }
        if q.Source == "" || q.Source == provider.SourceLive {
            q.Source = provider.SourcePreviousLive
        }
        if q.PriceDate == "" {
            q.PriceDate = snapDate
        }
        out[sym] = q
    }
    return out
}

// persistClosing writes the last live snapshot as today's closing prices.
// Failures are logged and swallowed: persistence never blocks a response.
func (s *Service) persistClosing(ctx context.Context) {
    snap, date := s.state.Snapshot()
    if len(snap) == 0 || date == "" { return }
    for sym, q := range snap {
        if q.Price <= 0 { continue }
        if err := s.store.UpsertDailyPrice(ctx, sym, q.Price, date); err != nil {
            s.log.Warn().Err(err).Str("symbol", sym).Msg("failed to persist closing price")
        }
    }
}

// GetMarketData builds the detailed view for one symbol, or false when
// the symbol is not configured or has no price.
func (s *Service) GetMarketData(ctx context.Context, symbol string) (MarketData, bool) {
    coins := s.coins(ctx, []string{symbol})
    if len(coins) == 0 {
        return MarketData{}, false
    }
    prices := s.GetPrices(ctx, []string{symbol})
    q, ok := prices[symbol]
    if !ok {
        return MarketData{}, false
    }
    return MarketData{CurrentPrice: q.Price, High24h: q.Price, Low24h: q.Price}, true
}

// Coins exposes the configured instrument universe (symbol-filtered when
// symbols is non-empty) for collaborators like the indicator calculator.
func (s *Service) Coins(ctx context.Context, symbols []string) []provider.Instrument {
    return s.coins(ctx, symbols)
}

func (s *Service) coins(ctx context.Context, symbols []string) []provider.Instrument {
    coins, err := s.store.CoinConfigs(ctx)
    if err != nil {
        s.log.Warn().Err(err).Msg("coin configs read failed")
        return nil
    }
    if len(coins) == 0 {
        s.log.Warn().Msg("no coins configured")
        return nil
    }
    if len(symbols) == 0 {
        return coins
    }
    want := make(map[string]struct{}, len(symbols))
    for _, sym := range symbols { want[sym] = struct{}{} }
    out := coins[:0]
    for _, c := range coins {
        if _, ok := want[c.Symbol]; ok {
            out = append(out, c)
        }
    }
    return out
}
