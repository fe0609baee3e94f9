package coingecko

import (
    "context"
    "strings"

    "github.com/rs/zerolog"

    "coindata/internal/provider"
    "coindata/internal/provider/health"
)

type Config struct {
    Name    string // display name, default: coingecko
    Enabled bool
    // IDMap overrides the derived coingecko id per symbol.
    // Unmapped symbols fall back to the lower-cased symbol, which covers
    // the common case poorly enough that configs should set NativeID.
    IDMap map[string]string
}

// Adapter exposes the CoinGecko client as a quote and history provider.
type Adapter struct {
    cfg    Config
    client *CoinGeckoAPIClient
    health *health.Tracker
    log    zerolog.Logger
}

func NewAdapter(cfg Config, client *CoinGeckoAPIClient, ht *health.Tracker, log zerolog.Logger) *Adapter {
    if cfg.Name == "" { cfg.Name = "coingecko" }
    return &Adapter{cfg: cfg, client: client, health: ht, log: log.With().Str("provider", cfg.Name).Logger()}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// ID maps an instrument to its coingecko asset id.
func (a *Adapter) ID(coin provider.Instrument) string {
    if v := a.cfg.IDMap[coin.Symbol]; v != "" { return v }
    if coin.NativeID != "" { return coin.NativeID }
    return strings.ToLower(coin.Symbol)
}

func (a *Adapter) Fetch(ctx context.Context, coins []provider.Instrument) (map[string]provider.Quote, error) {
    prices := make(map[string]provider.Quote, len(coins))
    if !a.cfg.Enabled { return prices, nil }

    ids := make([]string, 0, len(coins))
    for _, coin := range coins { ids = append(ids, a.ID(coin)) }

    data, err := a.client.GetSimplePrice(ctx, ids)
    if err != nil {
        a.health.Record(a.cfg.Name, false)
        a.log.Warn().Err(err).Msg("simple price fetch failed")
        return prices, err
    }
    a.health.Record(a.cfg.Name, true)

    for _, coin := range coins {
        sp, ok := data[a.ID(coin)]
        if !ok { continue }
        prices[coin.Symbol] = provider.Quote{
            Symbol:    coin.Symbol,
            Price:     sp.USD,
            Name:      coin.DisplayName(),
            Exchange:  coin.DisplayExchange(),
            Change24h: sp.USD24hChange,
        }
    }
    return prices, nil
}

// FetchHistory pulls the market chart for one instrument and keeps the
// most recent count points. The chart granularity is hourly below 90 days,
// so count is treated as hours when sizing the requested range.
func (a *Adapter) FetchHistory(ctx context.Context, coin provider.Instrument, count int) ([]provider.PricePoint, error) {
    days := count / 24
    if days < 1 { days = 1 }
    if days > 365 { days = 365 }

    points, err := a.client.GetMarketChart(ctx, a.ID(coin), days)
    if err != nil {
        a.health.Record(a.cfg.Name, false)
        a.log.Warn().Err(err).Str("symbol", coin.Symbol).Msg("market chart fetch failed")
        return nil, err
    }
    a.health.Record(a.cfg.Name, true)

    if len(points) > count {
        points = points[len(points)-count:]
    }
    out := make([]provider.PricePoint, 0, len(points))
    for _, p := range points {
        out = append(out, provider.PricePoint{Timestamp: p.Timestamp, Price: p.Price})
    }
    return out, nil
}
