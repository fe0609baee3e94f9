package cryptocompare

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"

    "github.com/rs/zerolog"

    "coindata/internal/httpx"
    "coindata/internal/provider"
    "coindata/internal/provider/health"
)

type Config struct {
    Name       string
    URL        string // API base, default https://min-api.cryptocompare.com/data
    Enabled    bool
    APIKey     string
    MaxRetries int
}

// Provider fetches quotes from a cryptocompare-style multi-symbol full
// ticker in a single batch request.
type Provider struct {
    cfg    Config
    client *httpx.Client
    health *health.Tracker
    log    zerolog.Logger
}

func New(cfg Config, hc *httpx.Client, ht *health.Tracker, log zerolog.Logger) *Provider {
    if cfg.Name == "" { cfg.Name = "cryptocompare" }
    if cfg.URL == "" { cfg.URL = "https://min-api.cryptocompare.com/data" }
    return &Provider{cfg: cfg, client: hc, health: ht, log: log.With().Str("provider", cfg.Name).Logger()}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, coins []provider.Instrument) (map[string]provider.Quote, error) {
    prices := make(map[string]provider.Quote, len(coins))
    if !p.cfg.Enabled || len(coins) == 0 { return prices, nil }

    fsyms := make([]string, 0, len(coins))
    for _, coin := range coins { fsyms = append(fsyms, strings.ToUpper(coin.Symbol)) }

    q := url.Values{"fsyms": {strings.Join(fsyms, ",")}, "tsyms": {"USD"}}
    if p.cfg.APIKey != "" { q.Set("api_key", p.cfg.APIKey) }
    u := fmt.Sprintf("%s/pricemultifull?%s", p.cfg.URL, q.Encode())

    resp, err := p.client.DoRetry(ctx, func() (*http.Request, error) {
        return http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
    }, p.cfg.MaxRetries)
    if err != nil {
        p.health.Record(p.cfg.Name, false)
        p.log.Warn().Err(err).Msg("pricemultifull fetch failed")
        return prices, err
    }
    defer resp.Body.Close()

    if resp.StatusCode == http.StatusTooManyRequests {
        p.health.Record(p.cfg.Name, false)
        return prices, fmt.Errorf("rate limited")
    }
    if resp.StatusCode != http.StatusOK {
        p.health.Record(p.cfg.Name, false)
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
        return prices, fmt.Errorf("GET pricemultifull -> %d: %s", resp.StatusCode, string(b))
    }

    var body fullResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        p.health.Record(p.cfg.Name, false)
        return prices, fmt.Errorf("decode: %w", err)
    }
    p.health.Record(p.cfg.Name, true)

    for _, coin := range coins {
        usd, ok := body.Raw[strings.ToUpper(coin.Symbol)]["USD"]
        if !ok { continue }
        prices[coin.Symbol] = provider.Quote{
            Symbol:    coin.Symbol,
            Price:     usd.Price,
            Name:      coin.DisplayName(),
            Exchange:  coin.DisplayExchange(),
            Change24h: usd.ChangePct24Hour,
        }
    }
    return prices, nil
}

// RAW/<SYM>/USD carries the numeric fields; DISPLAY is ignored.
type fullResponse struct {
    Raw map[string]map[string]rawTicker `json:"RAW"`
}

type rawTicker struct {
    Price           float64 `json:"PRICE"`
    ChangePct24Hour float64 `json:"CHANGEPCT24HOUR"`
}
