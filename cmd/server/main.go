package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "io"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "sync"
    "syscall"
    "time"

    "github.com/go-redis/redis/v8"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/zerolog"

    "coindata/internal/aggregate"
    "coindata/internal/cache"
    "coindata/internal/config"
    "coindata/internal/httpx"
    "coindata/internal/indicator"
    "coindata/internal/marketdata"
    "coindata/internal/provider"
    "coindata/internal/provider/binance"
    "coindata/internal/provider/coincap"
    "coindata/internal/provider/coingecko"
    "coindata/internal/provider/cryptocompare"
    "coindata/internal/provider/health"
    "coindata/internal/provider/ratelimit"
    sqlitestore "coindata/internal/store/sqlite"
    "coindata/internal/window"
)

func main() {
    cfgPath := os.Getenv("CONFIG_FILE")
    cfg, err := config.Load(cfgPath)
    if err != nil {
        l := zerolog.New(os.Stderr)
        l.Fatal().Err(err).Msg("config")
    }

    level, err := zerolog.ParseLevel(cfg.LogLevel)
    if err != nil { level = zerolog.InfoLevel }
    log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

    st, err := sqlitestore.Open(cfg.Store.Path)
    if err != nil {
        log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("store open failed")
    }
    defer st.Close()

    tracker := health.New(prometheus.DefaultRegisterer)
    state := window.NewState()

    quoteCache, histCache := buildCaches(cfg.Cache, log)
    entries, history := buildProviders(cfg, tracker, log)

    agg := aggregate.New(entries, quoteCache, state.LastLive, log)
    svc := marketdata.New(st, agg, state, log)
    calc := indicator.NewCalculator(history, histCache, log)

    api := http.NewServeMux()
    api.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "providers": tracker.Snapshot()})
    })
    api.HandleFunc("/api/prices", func(w http.ResponseWriter, r *http.Request) {
        handleGetPrices(w, r, svc)
    })
    api.HandleFunc("/api/prices/current", func(w http.ResponseWriter, r *http.Request) {
        handleGetCurrentPrices(w, r, svc)
    })
    api.HandleFunc("/api/market", func(w http.ResponseWriter, r *http.Request) {
        handleGetMarketData(w, r, svc)
    })
    api.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
        handleGetHistory(w, r, svc, calc)
    })
    api.HandleFunc("/api/indicators", func(w http.ResponseWriter, r *http.Request) {
        handleGetIndicators(w, r, svc, calc)
    })

    // /metrics stays outside the middleware chain: promhttp negotiates
    // its own content type and compression.
    root := http.NewServeMux()
    root.Handle("/metrics", promhttp.Handler())
    root.Handle("/", withJSONHeaders(withGzip(recoverPanic(limitBody(api)))))

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           root,
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      60 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Info().Str("port", cfg.Server.Port).Msg("server listening")
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("server")
        }
    }()

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}

// buildCaches selects the cache backend: redis when configured, else the
// in-memory TTL caches.
func buildCaches(cfg config.Cache, log zerolog.Logger) (cache.Cache[map[string]provider.Quote], cache.Cache[[]provider.PricePoint]) {
    quoteTTL := time.Duration(cfg.QuoteTTLSec) * time.Second
    histTTL := time.Duration(cfg.HistoryTTLSec) * time.Second
    if cfg.RedisAddr != "" {
        client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
        if err := client.Ping(context.Background()).Err(); err != nil {
            log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, falling back to in-memory caches")
        } else {
            return cache.NewRedis[map[string]provider.Quote](client, quoteTTL, "coindata:quotes:"),
                cache.NewRedis[[]provider.PricePoint](client, histTTL, "coindata:history:")
        }
    }
    return cache.NewTTL[map[string]provider.Quote](quoteTTL), cache.NewTTL[[]provider.PricePoint](histTTL)
}

// buildProviders assembles the fallback chain. Each provider gets its own
// HTTP client (timeouts differ) and a rate gate: a token bucket when the
// config caps requests per minute, else the min-interval spacer.
func buildProviders(cfg config.Config, tracker *health.Tracker, log zerolog.Logger) ([]aggregate.Entry, provider.HistoryProvider) {
    var entries []aggregate.Entry

    add := func(p provider.Provider, pc config.Provider) {
        entries = append(entries, aggregate.Entry{Provider: rateLimited(p, pc), Priority: pc.Priority, Enabled: pc.Enabled})
    }

    hc := func(pc config.Provider) *httpx.Client {
        return httpx.New(time.Duration(pc.TimeoutSec)*time.Second, cfg.NoProxy)
    }

    add(binance.New(binance.Config{
        URL:        cfg.Binance.Endpoint,
        Enabled:    cfg.Binance.Enabled,
        MaxRetries: cfg.Binance.MaxRetries,
    }, hc(cfg.Binance), tracker, log), cfg.Binance)

    cgClient, err := coingecko.NewCoinGeckoAPIClient(
        cfg.Coingecko.APIKey,
        coingecko.WithBaseURL(cfg.Coingecko.Endpoint),
        coingecko.WithHTTPClient(hc(cfg.Coingecko).HTTP),
    )
    if err != nil {
        log.Fatal().Err(err).Msg("coingecko client")
    }
    cg := coingecko.NewAdapter(coingecko.Config{Enabled: cfg.Coingecko.Enabled}, cgClient, tracker, log)
    add(cg, cfg.Coingecko)

    add(coincap.New(coincap.Config{
        URL:        cfg.Coincap.Endpoint,
        Enabled:    cfg.Coincap.Enabled,
        MaxRetries: cfg.Coincap.MaxRetries,
    }, hc(cfg.Coincap), tracker, log), cfg.Coincap)

    add(cryptocompare.New(cryptocompare.Config{
        URL:        cfg.Cryptocompare.Endpoint,
        Enabled:    cfg.Cryptocompare.Enabled,
        APIKey:     cfg.Cryptocompare.APIKey,
        MaxRetries: cfg.Cryptocompare.MaxRetries,
    }, hc(cfg.Cryptocompare), tracker, log), cfg.Cryptocompare)

    // the coingecko adapter doubles as the historical-series provider
    return entries, cg
}

// rateLimited picks the gate for one provider: MaxRPM engages the token
// bucket, otherwise MinIntervalMS spaces calls evenly.
func rateLimited(p provider.Provider, pc config.Provider) provider.Provider {
    switch {
    case pc.MaxRPM > 0:
        return &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(float64(pc.MaxRPM)/60, pc.Burst)}
    case pc.MinIntervalMS > 0:
        return &ratelimit.MinInterval{P: p, Interval: time.Duration(pc.MinIntervalMS) * time.Millisecond}
    }
    return p
}

type pricesResponse struct {
    Prices map[string]provider.Quote `json:"prices"`
}

func handleGetPrices(w http.ResponseWriter, r *http.Request, svc *marketdata.Service) {
    if r.Method != http.MethodGet {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    symbols := splitCSV(r.URL.Query().Get("symbols"))
    writeJSON(w, http.StatusOK, pricesResponse{Prices: svc.GetPrices(r.Context(), symbols)})
}

func handleGetCurrentPrices(w http.ResponseWriter, r *http.Request, svc *marketdata.Service) {
    if r.Method != http.MethodGet {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    symbols := splitCSV(r.URL.Query().Get("symbols"))
    writeJSON(w, http.StatusOK, pricesResponse{Prices: svc.GetCurrentPrices(r.Context(), symbols)})
}

func handleGetMarketData(w http.ResponseWriter, r *http.Request, svc *marketdata.Service) {
    symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
    if symbol == "" {
        http.Error(w, "missing symbol query param", http.StatusBadRequest)
        return
    }
    md, ok := svc.GetMarketData(r.Context(), symbol)
    if !ok {
        http.Error(w, "unknown symbol", http.StatusNotFound)
        return
    }
    writeJSON(w, http.StatusOK, md)
}

type historyResponse struct {
    Symbol string               `json:"symbol"`
    Prices []provider.PricePoint `json:"prices"`
}

func handleGetHistory(w http.ResponseWriter, r *http.Request, svc *marketdata.Service, calc *indicator.Calculator) {
    symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
    if symbol == "" {
        http.Error(w, "missing symbol query param", http.StatusBadRequest)
        return
    }
    count := indicator.HistoryCount
    if v := r.URL.Query().Get("count"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n <= 0 {
            http.Error(w, "invalid count", http.StatusBadRequest)
            return
        }
        count = n
    }
    coins := svc.Coins(r.Context(), []string{symbol})
    if len(coins) == 0 {
        http.Error(w, "unknown symbol", http.StatusNotFound)
        return
    }
    points := calc.HistoricalPrices(r.Context(), coins[0], count)
    writeJSON(w, http.StatusOK, historyResponse{Symbol: symbol, Prices: points})
}

func handleGetIndicators(w http.ResponseWriter, r *http.Request, svc *marketdata.Service, calc *indicator.Calculator) {
    symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
    if symbol == "" {
        http.Error(w, "missing symbol query param", http.StatusBadRequest)
        return
    }
    coins := svc.Coins(r.Context(), []string{symbol})
    if len(coins) == 0 {
        http.Error(w, "unknown symbol", http.StatusNotFound)
        return
    }
    writeJSON(w, http.StatusOK, calc.Calculate(r.Context(), coins[0]))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.WriteHeader(code)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    enc.Encode(v)
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for browser usage; adjust as needed.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        // Prefer best speed to reduce CPU usage since payloads are JSON
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 1 << 20 // 1MB
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Method == http.MethodPost && r.Body != nil {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                http.Error(w, "internal server error", http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}

func splitCSV(s string) []string {
    if strings.TrimSpace(s) == "" { return nil }
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
