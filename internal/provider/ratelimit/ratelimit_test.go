package ratelimit

import (
    "context"
    "testing"
    "time"

    "coindata/internal/provider"
)

type countingProvider struct {
    calls int
    times []time.Time
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Fetch(_ context.Context, coins []provider.Instrument) (map[string]provider.Quote, error) {
    c.calls++
    c.times = append(c.times, time.Now())
    out := make(map[string]provider.Quote, len(coins))
    for _, coin := range coins {
        out[coin.Symbol] = provider.Quote{Symbol: coin.Symbol, Price: 1}
    }
    return out, nil
}

func TestMinInterval_SpacesCalls(t *testing.T) {
    inner := &countingProvider{}
    m := &MinInterval{P: inner, Interval: 50 * time.Millisecond}
    coins := []provider.Instrument{{Symbol: "BTC"}}

    for i := 0; i < 3; i++ {
        if _, err := m.Fetch(context.Background(), coins); err != nil {
            t.Fatalf("fetch %d: %v", i, err)
        }
    }
    if inner.calls != 3 {
        t.Fatalf("want 3 calls, got %d", inner.calls)
    }
    for i := 1; i < len(inner.times); i++ {
        gap := inner.times[i].Sub(inner.times[i-1])
        if gap < 45*time.Millisecond { // small tolerance for timer skew
            t.Fatalf("calls %d and %d only %v apart", i-1, i, gap)
        }
    }
}

func TestMinInterval_ContextCancelWhileWaiting(t *testing.T) {
    inner := &countingProvider{}
    m := &MinInterval{P: inner, Interval: time.Hour}
    coins := []provider.Instrument{{Symbol: "BTC"}}

    if _, err := m.Fetch(context.Background(), coins); err != nil {
        t.Fatalf("first fetch: %v", err)
    }

    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
    defer cancel()
    _, err := m.Fetch(ctx, coins)
    if err != context.DeadlineExceeded {
        t.Fatalf("want DeadlineExceeded, got %v", err)
    }
    if inner.calls != 1 {
        t.Fatalf("canceled wait must not reach the provider, calls=%d", inner.calls)
    }
}

func TestMinInterval_ZeroIntervalPassesThrough(t *testing.T) {
    inner := &countingProvider{}
    m := &MinInterval{P: inner}
    for i := 0; i < 5; i++ {
        if _, err := m.Fetch(context.Background(), []provider.Instrument{{Symbol: "BTC"}}); err != nil {
            t.Fatalf("fetch: %v", err)
        }
    }
    if inner.calls != 5 {
        t.Fatalf("want 5 calls, got %d", inner.calls)
    }
}

func TestTokenBucket_BurstThenBlocks(t *testing.T) {
    inner := &countingProvider{}
    tb := &TokenBucketProvider{P: inner, TB: NewTokenBucket(0.001, 2)}
    coins := []provider.Instrument{{Symbol: "BTC"}}

    // burst capacity of 2 is immediately available
    for i := 0; i < 2; i++ {
        if _, err := tb.Fetch(context.Background(), coins); err != nil {
            t.Fatalf("burst fetch %d: %v", i, err)
        }
    }

    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
    defer cancel()
    if _, err := tb.Fetch(ctx, coins); err != context.DeadlineExceeded {
        t.Fatalf("third call should block until deadline, got %v", err)
    }
    if inner.calls != 2 {
        t.Fatalf("want 2 calls, got %d", inner.calls)
    }
}
