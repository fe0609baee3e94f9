package indicator

import (
    "context"
    "fmt"

    "github.com/rs/zerolog"

    "coindata/internal/cache"
    "coindata/internal/provider"
)

// HistoryCount is how many hourly points Calculate pulls: two weeks.
const HistoryCount = 336

// minPoints is the floor below which no indicators are reported.
const minPoints = 14

// Calculator derives simple technical indicators from a cached
// historical series.
type Calculator struct {
    history provider.HistoryProvider
    cache   cache.Cache[[]provider.PricePoint]
    log     zerolog.Logger
}

func NewCalculator(h provider.HistoryProvider, c cache.Cache[[]provider.PricePoint], log zerolog.Logger) *Calculator {
    return &Calculator{history: h, cache: c, log: log}
}

// HistoricalPrices returns the most recent count points for a symbol,
// cache-first with at most one upstream request. On upstream failure a
// stale cached series is preferred over an empty result: indicator
// continuity matters more than freshness here.
func (c *Calculator) HistoricalPrices(ctx context.Context, coin provider.Instrument, count int) []provider.PricePoint {
    key := fmt.Sprintf("%s_%d", coin.Symbol, count)
    if points, ok := c.cache.Get(key); ok {
        return points
    }

    points, err := c.history.FetchHistory(ctx, coin, count)
    if err != nil {
        if stale, ok := c.cache.GetStale(key); ok {
            c.log.Warn().Err(err).Str("symbol", coin.Symbol).Msg("history fetch failed, serving stale series")
            return stale
        }
        c.log.Warn().Err(err).Str("symbol", coin.Symbol).Msg("history fetch failed")
        return nil
    }
    if len(points) > count {
        points = points[len(points)-count:]
    }
    c.cache.Put(key, points)
    return points
}

// Calculate computes the indicator set for one instrument. Fewer than 14
// historical points yields an empty map.
func (c *Calculator) Calculate(ctx context.Context, coin provider.Instrument) map[string]float64 {
    history := c.HistoricalPrices(ctx, coin, HistoryCount)
    prices := make([]float64, 0, len(history))
    for _, p := range history { prices = append(prices, p.Price) }
    return Indicators(prices)
}

// Indicators derives SMA/RSI/percentage-change from an ordered price
// series (oldest first). Returns an empty map below 14 points.
func Indicators(prices []float64) map[string]float64 {
    if len(prices) < minPoints {
        return map[string]float64{}
    }

    changes := make([]float64, 0, len(prices)-1)
    for i := 1; i < len(prices); i++ {
        changes = append(changes, prices[i]-prices[i-1])
    }
    gains := make([]float64, len(changes))
    losses := make([]float64, len(changes))
    for i, ch := range changes {
        if ch > 0 {
            gains[i] = ch
        } else {
            losses[i] = -ch
        }
    }
    avgGain := tailMean(gains, 14)
    avgLoss := tailMean(losses, 14)

    rsi := 100.0
    if avgLoss != 0 {
        rs := avgGain / avgLoss
        rsi = 100 - 100/(1+rs)
    }

    return map[string]float64{
        "sma_5":         tailMean(prices, 5),
        "sma_20":        tailMean(prices, 20),
        "rsi_14":        rsi,
        "change_5d":     pctChange(prices, 5),
        "change_20d":    pctChange(prices, 20),
        "current_price": prices[len(prices)-1],
    }
}

// tailMean averages the last n values, or all of them when fewer exist.
func tailMean(vals []float64, n int) float64 {
    if len(vals) == 0 { return 0 }
    if len(vals) > n {
        vals = vals[len(vals)-n:]
    }
    sum := 0.0
    for _, v := range vals { sum += v }
    return sum / float64(len(vals))
}

// pctChange is the percentage change against the price n points back,
// 0 when the reference is missing or zero.
func pctChange(prices []float64, n int) float64 {
    if len(prices) < n { return 0 }
    ref := prices[len(prices)-n]
    if ref == 0 { return 0 }
    last := prices[len(prices)-1]
    return (last - ref) / ref * 100
}
