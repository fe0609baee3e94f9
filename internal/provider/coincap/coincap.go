package coincap

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"

    "github.com/rs/zerolog"

    "coindata/internal/httpx"
    "coindata/internal/provider"
    "coindata/internal/provider/health"
)

// assetIDs maps common symbols to coincap asset ids. Symbols not listed
// here fall back to the lower-cased symbol as a best guess.
var assetIDs = map[string]string{
    "BTC":   "bitcoin",
    "ETH":   "ethereum",
    "SOL":   "solana",
    "BNB":   "binance-coin",
    "XRP":   "ripple",
    "DOGE":  "dogecoin",
    "ADA":   "cardano",
    "DOT":   "polkadot",
    "MATIC": "polygon",
    "AVAX":  "avalanche",
    "LINK":  "chainlink",
    "UNI":   "uniswap",
}

type Config struct {
    Name       string
    URL        string // API base, default https://api.coincap.io/v2
    Enabled    bool
    MaxRetries int
}

// Provider fetches quotes from a coincap-style asset registry,
// one request per asset.
type Provider struct {
    cfg    Config
    client *httpx.Client
    health *health.Tracker
    log    zerolog.Logger
}

func New(cfg Config, hc *httpx.Client, ht *health.Tracker, log zerolog.Logger) *Provider {
    if cfg.Name == "" { cfg.Name = "coincap" }
    if cfg.URL == "" { cfg.URL = "https://api.coincap.io/v2" }
    return &Provider{cfg: cfg, client: hc, health: ht, log: log.With().Str("provider", cfg.Name).Logger()}
}

func (p *Provider) Name() string { return p.cfg.Name }

// AssetID maps an instrument to its coincap asset id.
func (p *Provider) AssetID(coin provider.Instrument) string {
    sym := strings.ToUpper(coin.Symbol)
    if id, ok := assetIDs[sym]; ok { return id }
    return strings.ToLower(sym)
}

func (p *Provider) Fetch(ctx context.Context, coins []provider.Instrument) (map[string]provider.Quote, error) {
    prices := make(map[string]provider.Quote, len(coins))
    if !p.cfg.Enabled { return prices, nil }

    for _, coin := range coins {
        q, err := p.fetchOne(ctx, coin)
        if err != nil {
            p.health.Record(p.cfg.Name, false)
            p.log.Warn().Err(err).Str("symbol", coin.Symbol).Msg("asset fetch failed")
            if ctx.Err() != nil { break }
            continue
        }
        p.health.Record(p.cfg.Name, true)
        prices[coin.Symbol] = q
    }
    return prices, nil
}

func (p *Provider) fetchOne(ctx context.Context, coin provider.Instrument) (provider.Quote, error) {
    u := fmt.Sprintf("%s/assets/%s", p.cfg.URL, p.AssetID(coin))
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

    var body assetResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return provider.Quote{}, fmt.Errorf("decode: %w", err)
    }
    if body.Data.PriceUsd == "" {
        return provider.Quote{}, fmt.Errorf("no data for %s", p.AssetID(coin))
    }
    price, err := strconv.ParseFloat(body.Data.PriceUsd, 64)
    if err != nil {
        return provider.Quote{}, fmt.Errorf("priceUsd %q: %w", body.Data.PriceUsd, err)
    }
    change, _ := strconv.ParseFloat(body.Data.ChangePercent24Hr, 64)
    return provider.Quote{
        Symbol:    coin.Symbol,
        Price:     price,
        Name:      coin.DisplayName(),
        Exchange:  coin.DisplayExchange(),
        Change24h: change,
    }, nil
}

// coincap returns numeric fields as JSON strings.
type assetResponse struct {
    Data struct {
        ID                string `json:"id"`
        Symbol            string `json:"symbol"`
        PriceUsd          string `json:"priceUsd"`
        ChangePercent24Hr string `json:"changePercent24Hr"`
    } `json:"data"`
}
