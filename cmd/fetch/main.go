package main

import (
    "context"
    "encoding/json"
    "flag"
    "os"
    "strings"
    "time"

    "github.com/rs/zerolog"

    "coindata/internal/aggregate"
    "coindata/internal/cache"
    "coindata/internal/config"
    "coindata/internal/httpx"
    "coindata/internal/provider"
    "coindata/internal/provider/binance"
    "coindata/internal/provider/coincap"
    "coindata/internal/provider/coingecko"
    "coindata/internal/provider/cryptocompare"
    "coindata/internal/provider/health"
    "coindata/internal/provider/ratelimit"
)

// one-shot quote fetch, bypassing the store and the trading window:
// useful for checking provider connectivity and symbol mappings.
func main() {
    var symbolsCSV string
    var idsCSV string
    var timeout int
    var configPath string

    flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "BTC,ETH"), "comma-separated symbols")
    flag.StringVar(&idsCSV, "ids", getenv("NATIVE_IDS", ""), "optional symbol=coingecko_id pairs, comma-separated")
    flag.IntVar(&timeout, "timeout", 15, "request timeout seconds")
    flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
    flag.Parse()

    log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

    cfg, err := config.Load(configPath)
    if err != nil { log.Fatal().Err(err).Msg("config") }
    if timeout > 0 { cfg.Server.RequestTimeoutSec = timeout }

    ids := map[string]string{}
    for _, pair := range splitCSV(idsCSV) {
        if k, v, ok := strings.Cut(pair, "="); ok {
            ids[strings.TrimSpace(k)] = strings.TrimSpace(v)
        }
    }
    var coins []provider.Instrument
    for _, sym := range splitCSV(symbolsCSV) {
        coins = append(coins, provider.Instrument{Symbol: sym, NativeID: ids[sym]})
    }
    if len(coins) == 0 { log.Fatal().Msg("no symbols given") }

    tracker := health.New(nil)
    entries := buildEntries(cfg, tracker, log)
    agg := aggregate.New(entries, cache.NewTTL[map[string]provider.Quote](time.Duration(cfg.Cache.QuoteTTLSec)*time.Second), nil, log)

    ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second*4)
    defer cancel()

    prices := agg.CurrentPrices(ctx, coins)

    enc := json.NewEncoder(os.Stdout)
    enc.SetIndent("", "  ")
    enc.Encode(prices)
}

func buildEntries(cfg config.Config, tracker *health.Tracker, log zerolog.Logger) []aggregate.Entry {
    var entries []aggregate.Entry

    add := func(p provider.Provider, pc config.Provider) {
        var wrapped provider.Provider = p
        switch {
        case pc.MaxRPM > 0:
            wrapped = &ratelimit.TokenBucketProvider{P: wrapped, TB: ratelimit.NewTokenBucket(float64(pc.MaxRPM)/60, pc.Burst)}
        case pc.MinIntervalMS > 0:
            wrapped = &ratelimit.MinInterval{P: wrapped, Interval: time.Duration(pc.MinIntervalMS) * time.Millisecond}
        }
        entries = append(entries, aggregate.Entry{Provider: wrapped, Priority: pc.Priority, Enabled: pc.Enabled})
    }
    hc := func(pc config.Provider) *httpx.Client {
        return httpx.New(time.Duration(pc.TimeoutSec)*time.Second, cfg.NoProxy)
    }

    add(binance.New(binance.Config{URL: cfg.Binance.Endpoint, Enabled: cfg.Binance.Enabled, MaxRetries: cfg.Binance.MaxRetries}, hc(cfg.Binance), tracker, log), cfg.Binance)

    cgClient, err := coingecko.NewCoinGeckoAPIClient(
        cfg.Coingecko.APIKey,
        coingecko.WithBaseURL(cfg.Coingecko.Endpoint),
        coingecko.WithHTTPClient(hc(cfg.Coingecko).HTTP),
    )
    if err != nil { log.Fatal().Err(err).Msg("coingecko client") }
    add(coingecko.NewAdapter(coingecko.Config{Enabled: cfg.Coingecko.Enabled}, cgClient, tracker, log), cfg.Coingecko)

    add(coincap.New(coincap.Config{URL: cfg.Coincap.Endpoint, Enabled: cfg.Coincap.Enabled, MaxRetries: cfg.Coincap.MaxRetries}, hc(cfg.Coincap), tracker, log), cfg.Coincap)

    add(cryptocompare.New(cryptocompare.Config{URL: cfg.Cryptocompare.Endpoint, Enabled: cfg.Cryptocompare.Enabled, APIKey: cfg.Cryptocompare.APIKey, MaxRetries: cfg.Cryptocompare.MaxRetries}, hc(cfg.Cryptocompare), tracker, log), cfg.Cryptocompare)

    return entries
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
