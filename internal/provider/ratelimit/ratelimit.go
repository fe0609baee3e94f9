package ratelimit

import (
    "context"
    "sync"
    "time"

    "coindata/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last
// request was stamped, or return early if the context is canceled.
// The stamp is taken when the request is allowed to fire, not when it
// completes, so a slow upstream does not stretch the interval.
type MinInterval struct {
    P        provider.Provider
    Interval time.Duration

    mu   sync.Mutex
    last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, coins []provider.Instrument) (map[string]provider.Quote, error) {
    if m.Interval > 0 {
        if err := m.wait(ctx); err != nil { return nil, err }
    }
    return m.P.Fetch(ctx, coins)
}

func (m *MinInterval) wait(ctx context.Context) error {
    for {
        m.mu.Lock()
        wait := time.Until(m.last.Add(m.Interval))
        if wait <= 0 {
            m.last = time.Now()
            m.mu.Unlock()
            return nil
        }
        m.mu.Unlock()
        t := time.NewTimer(wait)
        select {
        case <-ctx.Done():
            t.Stop()
            return ctx.Err()
        case <-t.C:
        }
    }
}
