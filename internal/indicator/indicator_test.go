package indicator

import (
    "context"
    "fmt"
    "math"
    "testing"
    "time"

    "github.com/rs/zerolog"

    "coindata/internal/cache"
    "coindata/internal/provider"
)

type fakeHistory struct {
    points []provider.PricePoint
    err    error
    calls  int
}

func (f *fakeHistory) FetchHistory(_ context.Context, _ provider.Instrument, _ int) ([]provider.PricePoint, error) {
    f.calls++
    return f.points, f.err
}

func series(prices ...float64) []provider.PricePoint {
    base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
    out := make([]provider.PricePoint, len(prices))
    for i, p := range prices {
        out[i] = provider.PricePoint{Timestamp: base + int64(i)*time.Hour.Milliseconds(), Price: p}
    }
    return out
}

func ramp(n int, start, step float64) []float64 {
    out := make([]float64, n)
    for i := range out { out[i] = start + float64(i)*step }
    return out
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestIndicators_TooFewPoints(t *testing.T) {
    got := Indicators(ramp(13, 100, 1))
    if len(got) != 0 {
        t.Fatalf("13 points must yield no indicators, got %v", got)
    }
}

func TestIndicators_MonotonicRiseIsRSI100(t *testing.T) {
    got := Indicators(ramp(30, 100, 1))
    if !almostEqual(got["rsi_14"], 100) {
        t.Fatalf("no losses means RSI 100, got %v", got["rsi_14"])
    }
}

func TestIndicators_FlatSeriesIsRSI100(t *testing.T) {
    // zero gains and zero losses: the avg-loss guard pins RSI at 100
    got := Indicators(ramp(20, 100, 0))
    if !almostEqual(got["rsi_14"], 100) {
        t.Fatalf("flat series RSI = %v, want 100", got["rsi_14"])
    }
}

func TestIndicators_KnownValues(t *testing.T) {
    // 100..123, step 1: every tail mean and change is hand-computable
    prices := ramp(24, 100, 1)
    got := Indicators(prices)

    if !almostEqual(got["current_price"], 123) {
        t.Errorf("current_price = %v, want 123", got["current_price"])
    }
    if !almostEqual(got["sma_5"], 121) { // mean of 119..123
        t.Errorf("sma_5 = %v, want 121", got["sma_5"])
    }
    if !almostEqual(got["sma_20"], 113.5) { // mean of 104..123
        t.Errorf("sma_20 = %v, want 113.5", got["sma_20"])
    }
    if !almostEqual(got["change_5d"], (123.0-119.0)/119.0*100) {
        t.Errorf("change_5d = %v", got["change_5d"])
    }
    if !almostEqual(got["change_20d"], (123.0-104.0)/104.0*100) {
        t.Errorf("change_20d = %v", got["change_20d"])
    }
}

func TestIndicators_MixedRSI(t *testing.T) {
    // 14 alternating +2/-1 deltas: avgGain = 1, avgLoss = 0.5, RS = 2
    prices := []float64{100}
    for i := 0; i < 7; i++ {
        prices = append(prices, prices[len(prices)-1]+2)
        prices = append(prices, prices[len(prices)-1]-1)
    }
    got := Indicators(prices)
    want := 100 - 100/(1+2.0)
    if !almostEqual(got["rsi_14"], want) {
        t.Fatalf("rsi_14 = %v, want %v", got["rsi_14"], want)
    }
}

func TestPctChange_Guards(t *testing.T) {
    if pctChange([]float64{1, 2}, 5) != 0 {
        t.Error("short series must report 0")
    }
    if pctChange([]float64{0, 0, 0, 0, 5}, 5) != 0 {
        t.Error("zero reference must report 0")
    }
}

func TestHistoricalPrices_CacheFirst(t *testing.T) {
    h := &fakeHistory{points: series(1, 2, 3)}
    calc := NewCalculator(h, cache.NewTTL[[]provider.PricePoint](time.Minute), zerolog.Nop())
    coin := provider.Instrument{Symbol: "BTC"}

    first := calc.HistoricalPrices(context.Background(), coin, 3)
    second := calc.HistoricalPrices(context.Background(), coin, 3)
    if h.calls != 1 {
        t.Fatalf("second lookup must come from cache, calls=%d", h.calls)
    }
    if len(first) != 3 || len(second) != 3 {
        t.Fatalf("unexpected series lengths %d/%d", len(first), len(second))
    }
}

func TestHistoricalPrices_TrimsToCount(t *testing.T) {
    h := &fakeHistory{points: series(1, 2, 3, 4, 5)}
    calc := NewCalculator(h, cache.NewTTL[[]provider.PricePoint](time.Minute), zerolog.Nop())

    got := calc.HistoricalPrices(context.Background(), provider.Instrument{Symbol: "BTC"}, 3)
    if len(got) != 3 || got[0].Price != 3 || got[2].Price != 5 {
        t.Fatalf("want the newest 3 points, got %v", got)
    }
}

func TestHistoricalPrices_StaleOnFailure(t *testing.T) {
    h := &fakeHistory{points: series(1, 2, 3)}
    c := cache.NewTTL[[]provider.PricePoint](time.Minute)
    now := time.Now()
    c.SetClock(func() time.Time { return now })
    calc := NewCalculator(h, c, zerolog.Nop())
    coin := provider.Instrument{Symbol: "BTC"}

    calc.HistoricalPrices(context.Background(), coin, 3) // primes the cache

    now = now.Add(2 * time.Minute) // entry expires
    h.err = fmt.Errorf("upstream down")

    got := calc.HistoricalPrices(context.Background(), coin, 3)
    if len(got) != 3 {
        t.Fatalf("stale series should be served on failure, got %v", got)
    }
    if h.calls != 2 {
        t.Fatalf("expired entry must trigger a refetch attempt, calls=%d", h.calls)
    }
}

func TestHistoricalPrices_FailureWithoutCache(t *testing.T) {
    h := &fakeHistory{err: fmt.Errorf("upstream down")}
    calc := NewCalculator(h, cache.NewTTL[[]provider.PricePoint](time.Minute), zerolog.Nop())

    got := calc.HistoricalPrices(context.Background(), provider.Instrument{Symbol: "BTC"}, 3)
    if got != nil {
        t.Fatalf("no cache, no upstream: want nil, got %v", got)
    }
}

func TestCalculate_EmptyHistory(t *testing.T) {
    h := &fakeHistory{}
    calc := NewCalculator(h, cache.NewTTL[[]provider.PricePoint](time.Minute), zerolog.Nop())

    got := calc.Calculate(context.Background(), provider.Instrument{Symbol: "BTC"})
    if len(got) != 0 {
        t.Fatalf("empty history must yield no indicators, got %v", got)
    }
}
