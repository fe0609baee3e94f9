package main

import (
    "context"
    "flag"
    "os"
    "strings"

    "github.com/rs/zerolog"

    "coindata/internal/provider"
    sqlitestore "coindata/internal/store/sqlite"
    "coindata/internal/window"
)

// seeds coin configs and the trading-window settings into the sqlite
// store. Coins are given as symbol[=coingecko_id] pairs.
func main() {
    var dbPath string
    var coinsCSV string
    var start string
    var end string

    flag.StringVar(&dbPath, "db", getenv("STORE_PATH", "data/coindata.db"), "sqlite database path")
    flag.StringVar(&coinsCSV, "coins", "BTC=bitcoin,ETH=ethereum,SOL=solana", "comma-separated symbol[=coingecko_id] pairs")
    flag.StringVar(&start, "start", "", "auto_trading_start (HH:MM:SS), empty leaves unset")
    flag.StringVar(&end, "end", "", "auto_trading_end (HH:MM:SS), empty leaves unset")
    flag.Parse()

    log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

    st, err := sqlitestore.Open(dbPath)
    if err != nil { log.Fatal().Err(err).Str("path", dbPath).Msg("store open failed") }
    defer st.Close()

    ctx := context.Background()
    for _, pair := range strings.Split(coinsCSV, ",") {
        pair = strings.TrimSpace(pair)
        if pair == "" { continue }
        sym, id, _ := strings.Cut(pair, "=")
        coin := provider.Instrument{Symbol: strings.TrimSpace(sym), NativeID: strings.TrimSpace(id)}
        if err := st.UpsertCoinConfig(ctx, coin, true); err != nil {
            log.Fatal().Err(err).Str("symbol", coin.Symbol).Msg("seed coin failed")
        }
        log.Info().Str("symbol", coin.Symbol).Str("native_id", coin.NativeID).Msg("seeded coin")
    }

    if start != "" {
        if err := st.SetSetting(ctx, window.SettingStart, start); err != nil {
            log.Fatal().Err(err).Msg("seed start setting failed")
        }
    }
    if end != "" {
        if err := st.SetSetting(ctx, window.SettingEnd, end); err != nil {
            log.Fatal().Err(err).Msg("seed end setting failed")
        }
    }
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
