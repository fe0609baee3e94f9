package binance

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"

    "github.com/rs/zerolog"

    "coindata/internal/httpx"
    "coindata/internal/provider"
    "coindata/internal/provider/health"
)

type Config struct {
    Name    string
    URL     string // API base, default https://api.binance.com/api/v3
    Enabled bool
    // PairMap overrides the derived trading pair per symbol.
    // Unmapped symbols become SYMBOL+"USDT".
    PairMap    map[string]string
    MaxRetries int
}

// Provider fetches quotes from a binance-style 24h ticker endpoint,
// one request per trading pair.
type Provider struct {
    cfg    Config
    client *httpx.Client
    health *health.Tracker
    log    zerolog.Logger
}

func New(cfg Config, hc *httpx.Client, ht *health.Tracker, log zerolog.Logger) *Provider {
    if cfg.Name == "" { cfg.Name = "binance" }
    if cfg.URL == "" { cfg.URL = "https://api.binance.com/api/v3" }
    return &Provider{cfg: cfg, client: hc, health: ht, log: log.With().Str("provider", cfg.Name).Logger()}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Pair maps an instrument to its binance trading pair.
func (p *Provider) Pair(coin provider.Instrument) string {
    if v := p.cfg.PairMap[coin.Symbol]; v != "" { return v }
    return strings.ToUpper(coin.Symbol) + "USDT"
}

func (p *Provider) Fetch(ctx context.Context, coins []provider.Instrument) (map[string]provider.Quote, error) {
    prices := make(map[string]provider.Quote, len(coins))
    if !p.cfg.Enabled { return prices, nil }

    for _, coin := range coins {
        q, err := p.fetchOne(ctx, coin)
        if err != nil {
            p.health.Record(p.cfg.Name, false)
            p.log.Warn().Err(err).Str("symbol", coin.Symbol).Msg("ticker fetch failed")
            if ctx.Err() != nil { break }
            continue
        }
        p.health.Record(p.cfg.Name, true)
        prices[coin.Symbol] = q
    }
    return prices, nil
}

func (p *Provider) fetchOne(ctx context.Context, coin provider.Instrument) (provider.Quote, error) {
    pair := p.Pair(coin)
    u := fmt.Sprintf("%s/ticker/24hr?%s", p.cfg.URL, url.Values{"symbol": {pair}}.Encode())
    resp, err := p.client.DoRetry(ctx, func() (*http.Request, error) {
        return http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
    }, p.cfg.MaxRetries)
    if err != nil { return provider.Quote{}, err }
    defer resp.Body.Close()

    if resp.StatusCode == http.StatusTooManyRequests {
        return provider.Quote{}, fmt.Errorf("rate limited")
    }
    if resp.StatusCode != http.StatusOK {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
        return provider.Quote{}, fmt.Errorf("GET %s -> %d: %s", u, resp.StatusCode, string(b))
    }

    var item tickerResponse
    if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
        return provider.Quote{}, fmt.Errorf("decode: %w", err)
    }
    price, err := strconv.ParseFloat(item.LastPrice, 64)
    if err != nil {
        return provider.Quote{}, fmt.Errorf("lastPrice %q: %w", item.LastPrice, err)
    }
    change, _ := strconv.ParseFloat(item.PriceChangePercent, 64)
    return provider.Quote{
        Symbol:    coin.Symbol,
        Price:     price,
        Name:      coin.DisplayName(),
        Exchange:  coin.DisplayExchange(),
        Change24h: change,
    }, nil
}

// binance returns numeric fields as JSON strings.
type tickerResponse struct {
    Symbol             string `json:"symbol"`
    LastPrice          string `json:"lastPrice"`
    PriceChangePercent string `json:"priceChangePercent"`
}
