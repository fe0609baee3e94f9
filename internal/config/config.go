package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "strings"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
}

// Provider is the static per-upstream configuration. Priority orders the
// fallback chain (lower = tried first). MinIntervalMS spaces requests to
// the same upstream; a non-zero MaxRPM switches to a token bucket
// (MaxRPM sustained, Burst at once) instead.
type Provider struct {
    Enabled       bool   `json:"enabled"`
    Endpoint      string `json:"endpoint"`
    APIKey        string `json:"api_key"`
    Priority      int    `json:"priority"`
    MinIntervalMS int    `json:"min_interval_ms"`
    MaxRPM        int    `json:"max_rpm"`
    Burst         int    `json:"burst"`
    TimeoutSec    int    `json:"timeout_sec"`
    MaxRetries    int    `json:"max_retries"`
}

type Cache struct {
    QuoteTTLSec   int    `json:"quote_ttl_sec"`
    HistoryTTLSec int    `json:"history_ttl_sec"`
    // RedisAddr switches the quote cache to redis when set; the in-memory
    // TTL cache is the default.
    RedisAddr     string `json:"redis_addr"`
    RedisPassword string `json:"redis_password"`
    RedisDB       int    `json:"redis_db"`
}

type Store struct {
    Path string `json:"path"`
}

type Config struct {
    Server        Server   `json:"server"`
    Binance       Provider `json:"binance"`
    Coingecko     Provider `json:"coingecko"`
    Coincap       Provider `json:"coincap"`
    Cryptocompare Provider `json:"cryptocompare"`
    Cache         Cache    `json:"cache"`
    Store         Store    `json:"store"`
    NoProxy       bool     `json:"no_proxy"`
    LogLevel      string   `json:"log_level"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 20},
        Binance: Provider{
            Enabled:       true,
            Endpoint:      "https://api.binance.com/api/v3",
            Priority:      1,
            MinIntervalMS: 100,
            TimeoutSec:    8,
            MaxRetries:    2,
        },
        Coingecko: Provider{
            Enabled:       true,
            Endpoint:      "https://api.coingecko.com/api/v3",
            Priority:      2,
            MinIntervalMS: 1500, // free tier is ~40 req/min
            TimeoutSec:    15,
            MaxRetries:    2,
        },
        Coincap: Provider{
            Enabled:       true,
            Endpoint:      "https://api.coincap.io/v2",
            Priority:      3,
            MinIntervalMS: 500,
            TimeoutSec:    10,
            MaxRetries:    2,
        },
        Cryptocompare: Provider{
            Enabled:       true,
            Endpoint:      "https://min-api.cryptocompare.com/data",
            Priority:      4,
            MinIntervalMS: 200,
            TimeoutSec:    10,
            MaxRetries:    2,
        },
        Cache: Cache{QuoteTTLSec: 5, HistoryTTLSec: 300},
        Store: Store{Path: "data/coindata.db"},
        NoProxy: true,
        LogLevel: "info",
    }
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := json.Unmarshal(b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("STORE_PATH"); v != "" { cfg.Store.Path = v }
    if v := os.Getenv("REDIS_ADDR"); v != "" { cfg.Cache.RedisAddr = v }
    if v := os.Getenv("REDIS_PASSWORD"); v != "" { cfg.Cache.RedisPassword = v }
    if v := os.Getenv("REDIS_DB"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Cache.RedisDB = x }
    }
    if v := os.Getenv("QUOTE_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.QuoteTTLSec = x }
    }
    if v := os.Getenv("HISTORY_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Cache.HistoryTTLSec = x }
    }
    if v := os.Getenv("LOG_LEVEL"); v != "" { cfg.LogLevel = v }
    if v := os.Getenv("NO_PROXY_UPSTREAM"); v != "" { cfg.NoProxy = envBool(v, cfg.NoProxy) }

    applyProviderEnv("BINANCE", &cfg.Binance)
    applyProviderEnv("COINGECKO", &cfg.Coingecko)
    applyProviderEnv("COINCAP", &cfg.Coincap)
    applyProviderEnv("CRYPTOCOMPARE", &cfg.Cryptocompare)
}

func applyProviderEnv(prefix string, p *Provider) {
    if v := os.Getenv(prefix + "_ENABLED"); v != "" { p.Enabled = envBool(v, p.Enabled) }
    if v := os.Getenv(prefix + "_ENDPOINT"); v != "" { p.Endpoint = v }
    if v := os.Getenv(prefix + "_API_KEY"); v != "" { p.APIKey = v }
    if v := os.Getenv(prefix + "_PRIORITY"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { p.Priority = x }
    }
    if v := os.Getenv(prefix + "_MIN_INTERVAL_MS"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { p.MinIntervalMS = x }
    }
    if v := os.Getenv(prefix + "_MAX_RPM"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { p.MaxRPM = x }
    }
    if v := os.Getenv(prefix + "_BURST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { p.Burst = x }
    }
    if v := os.Getenv(prefix + "_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { p.TimeoutSec = x }
    }
    if v := os.Getenv(prefix + "_MAX_RETRIES"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { p.MaxRetries = x }
    }
}

func envBool(v string, def bool) bool {
    switch strings.ToLower(v) {
    case "1", "true", "yes", "y":
        return true
    case "0", "false", "no", "n":
        return false
    }
    return def
}
