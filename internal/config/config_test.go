package config

import (
    "os"
    "path/filepath"
    "testing"
)

func TestLoadDefaults(t *testing.T) {
    cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
    if err != nil {
        t.Fatalf("Load: %v", err)
    }
    if cfg.Server.Port != "8080" || !cfg.Binance.Enabled || cfg.Coingecko.Priority != 2 {
        t.Fatalf("unexpected defaults: %+v", cfg)
    }
    if cfg.Cache.QuoteTTLSec != 5 || cfg.Cache.HistoryTTLSec != 300 {
        t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
    }
}

func TestLoadFileOverridesDefaults(t *testing.T) {
    path := filepath.Join(t.TempDir(), "config.json")
    body := `{
        "server": {"port": "9090"},
        "binance": {"enabled": false, "priority": 5},
        "cache": {"quote_ttl_sec": 30, "redis_addr": "localhost:6379"}
    }`
    if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
        t.Fatal(err)
    }

    cfg, err := Load(path)
    if err != nil {
        t.Fatalf("Load: %v", err)
    }
    if cfg.Server.Port != "9090" || cfg.Binance.Enabled || cfg.Binance.Priority != 5 {
        t.Fatalf("file values not applied: %+v", cfg)
    }
    if cfg.Cache.QuoteTTLSec != 30 || cfg.Cache.RedisAddr != "localhost:6379" {
        t.Fatalf("cache values not applied: %+v", cfg.Cache)
    }
}

func TestLoadBadJSON(t *testing.T) {
    path := filepath.Join(t.TempDir(), "config.json")
    if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
        t.Fatal(err)
    }
    if _, err := Load(path); err == nil {
        t.Fatal("malformed config must error")
    }
}

func TestEnvOverrides(t *testing.T) {
    t.Setenv("PORT", "7070")
    t.Setenv("COINGECKO_API_KEY", "secret")
    t.Setenv("COINGECKO_ENABLED", "false")
    t.Setenv("BINANCE_PRIORITY", "9")
    t.Setenv("BINANCE_MIN_INTERVAL_MS", "0")
    t.Setenv("BINANCE_MAX_RPM", "120")
    t.Setenv("BINANCE_BURST", "5")
    t.Setenv("QUOTE_CACHE_TTL_SEC", "not-a-number")

    cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
    if err != nil {
        t.Fatalf("Load: %v", err)
    }
    if cfg.Server.Port != "7070" {
        t.Errorf("PORT override lost: %+v", cfg.Server)
    }
    if cfg.Coingecko.APIKey != "secret" || cfg.Coingecko.Enabled {
        t.Errorf("coingecko overrides lost: %+v", cfg.Coingecko)
    }
    if cfg.Binance.Priority != 9 || cfg.Binance.MinIntervalMS != 0 {
        t.Errorf("binance overrides lost: %+v", cfg.Binance)
    }
    if cfg.Binance.MaxRPM != 120 || cfg.Binance.Burst != 5 {
        t.Errorf("binance rate overrides lost: %+v", cfg.Binance)
    }
    // garbage numeric values keep the default
    if cfg.Cache.QuoteTTLSec != 5 {
        t.Errorf("bad numeric env should keep default: %+v", cfg.Cache)
    }
}

func TestEnvBool(t *testing.T) {
    cases := []struct {
        in   string
        def  bool
        want bool
    }{
        {"1", false, true},
        {"true", false, true},
        {"YES", false, true},
        {"0", true, false},
        {"no", true, false},
        {"maybe", true, true},
        {"maybe", false, false},
    }
    for _, tc := range cases {
        if got := envBool(tc.in, tc.def); got != tc.want {
            t.Errorf("envBool(%q, %v) = %v, want %v", tc.in, tc.def, got, tc.want)
        }
    }
}
